package dto

type AuthTokenRequest struct {
	APIKey   string `json:"api_key"`
	ClientID string `json:"client_id"`
}

type RelayRequest struct {
	PostURL       string `json:"post_url"`
	Scenario      string `json:"scenario,omitempty"`
	EscrowAddress string `json:"escrow_address,omitempty"`
}
