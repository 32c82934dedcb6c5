package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	sharedhttp "github.com/libreadept/adl/shared-lib/http"
)

type HTTP1Transport struct {
	client  *http.Client
	retry   *retryablehttp.Client
	timeout time.Duration
}

// NewHTTP1Transport builds a transport whose calls are bounded by timeout.
// GET requests are retried up to retries times; other methods are sent once.
func NewHTTP1Transport(timeout time.Duration, retries int, log *zap.SugaredLogger) *HTTP1Transport {
	t := &HTTP1Transport{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:              http.ProxyFromEnvironment,
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: false,
			},
		},
		timeout: timeout,
	}
	if retries > 0 {
		t.retry = sharedhttp.NewRetryClient(retries, timeout, log)
	}
	return t
}

func (h *HTTP1Transport) Send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := sharedhttp.NewRequest(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, err
	}

	// Set headers
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := h.do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	headers := make(map[string]string)
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}

func (h *HTTP1Transport) do(req *http.Request) (*http.Response, error) {
	if h.retry == nil || req.Method != http.MethodGet {
		return h.client.Do(req)
	}
	retryReq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, err
	}
	return h.retry.Do(retryReq)
}

func (h *HTTP1Transport) Close() error {
	h.client.CloseIdleConnections()
	if h.retry != nil {
		h.retry.HTTPClient.CloseIdleConnections()
	}
	return nil
}

func (h *HTTP1Transport) Protocol() ProtocolType {
	return HTTP1
}
