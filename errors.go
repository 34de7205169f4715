package gradio

import "fmt"

// UnknownEndpointError is returned by Submit/Predict when the endpoint
// cannot be resolved against the session's api map.
type UnknownEndpointError struct {
	Endpoint string
}

func (e *UnknownEndpointError) Error() string {
	return fmt.Sprintf("gradio: unknown endpoint %q", e.Endpoint)
}

// NoAPIError is returned when Submit is called before the client has
// successfully discovered the server's api map.
type NoAPIError struct{}

func (e *NoAPIError) Error() string {
	return "gradio: no api info available for this session"
}

// BrokenConnectionError models a transport that closed uncleanly or a
// queue/data POST that failed outright. Surfaced as a status{error} event,
// never returned from Submit itself.
type BrokenConnectionError struct {
	Cause error
}

func (e *BrokenConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", brokenConnectionMsg, e.Cause)
	}
	return brokenConnectionMsg
}

func (e *BrokenConnectionError) Unwrap() error { return e.Cause }

// QueueFullError models a 503 from /queue/join.
type QueueFullError struct{}

func (e *QueueFullError) Error() string { return queueFullMsg }

// ServerError wraps a non-200 direct run response or an unexpected_error
// frame from the server.
type ServerError struct {
	Message    string
	StatusCode int
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "gradio: server error"
}

// ClientException models a failure while interpreting a frame — a bug in
// this library or a frame shape it doesn't understand, never a server-side
// condition.
type ClientException struct {
	Cause error
}

func (e *ClientException) Error() string { return unexpectedErrorMsg }

func (e *ClientException) Unwrap() error { return e.Cause }

const (
	brokenConnectionMsg = "Connection errored out."
	queueFullMsg        = "Queue is full! Please try again."
	unexpectedErrorMsg  = "An Unexpected Error Occurred!"
)
