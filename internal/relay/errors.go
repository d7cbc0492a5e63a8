package relay

import "fmt"

// Kind classifies why a relay attempt failed. The distinction matters for
// callers: validation never retries as-is, transport retries locally,
// confirm_timeout is ambiguous (the transaction may still land) and should
// be re-checked before a blind retry.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindVerifier       Kind = "verifier"
	KindTransport      Kind = "transport"
	KindConfirmTimeout Kind = "confirm_timeout"
	KindRejected       Kind = "rejected"
)

// Error is the structured failure surfaced by a relay attempt. It never
// masks a transport failure as success.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func errf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from a relay error, or empty for foreign errors.
func KindOf(err error) Kind {
	if re, ok := err.(*Error); ok {
		return re.Kind
	}
	return ""
}
