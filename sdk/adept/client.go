// Package adept speaks the Adobe ADEPT activation and fulfillment protocol.
// Each exchange is an Operation value run through Execute.
package adept

import (
	"context"
	"errors"
	"net/http"
	"path"

	"go.uber.org/zap"

	"github.com/libreadept/adl/sdk/transport"
)

// DefaultBaseURL is Adobe's activation service.
const DefaultBaseURL = "http://adeactivate.adobe.com/adept"

// Operation is one ADEPT request/reply exchange.
type Operation[T any] interface {
	Build() ([]byte, error)
	URL() string
	Method() string
	Parse(reply []byte) (T, error)
}

type Client struct {
	transport transport.Transport
	baseURL   string
	log       *zap.SugaredLogger
}

type ClientOption = func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithTransport(t transport.Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

func WithLogger(log *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = transport.NewHTTP1Transport(transport.DefaultTimeout, 0, c.log)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send performs one HTTP exchange. The boolean is false when no usable reply
// was obtained; the target URL is logged in that case.
func (c *Client) Send(ctx context.Context, method, url string, body []byte) ([]byte, bool) {
	if len(body) > 0 {
		c.log.Debugw("sending request", "method", method, "url", url, "body", string(body))
	}

	resp, err := c.transport.Send(ctx, &transport.Request{Method: method, URL: url, Body: body})
	if err != nil {
		c.log.Errorw("Error when targeting url", "url", url, "error", err)
		return nil, false
	}
	if !resp.OK() {
		c.log.Errorw("Error when targeting url", "url", url, "status", resp.StatusCode)
		return nil, false
	}

	c.log.Debugw("received reply", "url", url, "size", len(resp.Body))
	return resp.Body, true
}

// Download fetches a resource with a plain GET.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	data, ok := c.Send(ctx, http.MethodGet, url, nil)
	if !ok {
		return nil, &ProtocolError{Kind: KindTransport, Operation: "Download", Message: "no reply from " + url}
	}
	return data, nil
}

// Execute builds, sends and parses op.
func Execute[T any](ctx context.Context, c *Client, op Operation[T]) (T, error) {
	var zero T
	name := path.Base(op.URL())

	body, err := op.Build()
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			return zero, err
		}
		return zero, &ProtocolError{Kind: KindCrypto, Operation: name, Message: "failed to build request", Err: err}
	}

	reply, ok := c.Send(ctx, op.Method(), op.URL(), body)
	if !ok {
		return zero, &ProtocolError{Kind: KindTransport, Operation: name, Message: "no reply from " + op.URL()}
	}

	result, err := op.Parse(reply)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			return zero, err
		}
		return zero, &ProtocolError{Kind: KindParse, Operation: name, Err: err}
	}
	return result, nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
