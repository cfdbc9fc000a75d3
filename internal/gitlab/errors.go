package gitlab

import "fmt"

// The API reports failures in three shapes: transport errors, OAuth
// bodies ({"error": ..., "error_description": ...}) and message bodies
// ({"message": ...}). Each gets its own type so callers can map them
// to distinct exit codes.

// ConnectError is a transport-level failure: refused, DNS, timeout.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TokenError is an OAuth-style rejection, typically a revoked or
// expired token.
type TokenError struct {
	Description string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("api token rejected: %s", e.Description)
}

// RequestError is a rejected request, such as an invalid token or a
// group the token cannot see.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("api request rejected: %s", e.Message)
}

// UnexpectedError covers every response that is neither a list nor a
// recognized error body.
type UnexpectedError struct {
	Body string
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected api response: %s", e.Body)
}
