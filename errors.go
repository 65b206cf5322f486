package allegro

import "fmt"

// TransportError reports a request that never produced an HTTP response:
// DNS, connection or TLS failures, or a cancelled context.
//
// Non-2xx responses are not errors; they are returned as a *Response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying client error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
