package opensky

import "fmt"

// AuthError indicates the OAuth2 session could not be established or
// re-established: a failed grant, or a 401 that persisted after one refresh.
// The fetch cycle aborts on it; it is never surfaced to HTTP clients as a
// hard failure.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed during %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UpstreamError is a non-2xx response (or transport failure) from the
// position feed. StatusCode is zero for transport-level failures.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream request failed: %s", e.Message)
}

// IsAuthError checks whether an error is an AuthError.
func IsAuthError(err error) bool {
	_, ok := err.(*AuthError)
	return ok
}
