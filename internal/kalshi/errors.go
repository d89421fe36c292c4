package kalshi

import "fmt"

// AuthError indicates the private key could not be loaded or used. It is
// fatal at startup; once the key is parsed, signing does not fail in practice.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("kalshi auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError carries a non-2xx response from the trading API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kalshi api: status %d: %s", e.Status, e.Body)
}

// ValidationError rejects malformed order parameters before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order parameter %s: %s", e.Field, e.Reason)
}
