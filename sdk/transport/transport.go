package transport

import (
	"context"
)

// Transport defines the common interface for all transport protocols
type Transport interface {
	// Send sends a request and returns a fully read response
	Send(ctx context.Context, req *Request) (*Response, error)

	// Close releases idle connections
	Close() error

	// Protocol returns the transport protocol type
	Protocol() ProtocolType
}

// Request represents a generic transport request. URL is absolute.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response represents a generic transport response
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type ProtocolType string

const (
	HTTP1 ProtocolType = "http1.1"
)
