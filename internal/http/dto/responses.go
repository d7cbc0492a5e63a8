package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Ledger   string `json:"ledger"`
	Verifier string `json:"verifier"`
	Oracle   string `json:"oracle_id,omitempty"`
}
