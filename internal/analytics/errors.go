package analytics

import "fmt"

// ConnectionError means the engine could not be reached at all.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to analytics engine at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError means the request exceeded the client timeout.
type TimeoutError struct {
	Timeout string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analytics request timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ServiceUnavailableError means the engine answered 503.
type ServiceUnavailableError struct{}

func (e *ServiceUnavailableError) Error() string {
	return "analytics engine is unavailable (503)"
}

// HTTPError is any other non-2xx engine response. Not retried: the engine
// made a decision about the request and will make it again.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("analytics engine returned HTTP %d", e.Status)
}

// TooLargeError means the query asked for more rows than the configured
// ceiling. Rejected before any bytes hit the wire.
type TooLargeError struct {
	Limit   int
	MaxRows int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("query limit (%d) exceeds maximum allowed (%d)", e.Limit, e.MaxRows)
}
