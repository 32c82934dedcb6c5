package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
)

const (
	// ContentTypeADEPT is sent on every ADEPT POST body.
	ContentTypeADEPT = "application/vnd.adobe.adept+xml"

	UserAgent = "adl/1.0"
)

// NewGetRequest creates a new GET HTTP request
func NewGetRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}

	setDefaultHeaders(req)

	return req, nil
}

// NewPostRequest creates a new POST HTTP request carrying body as is
func NewPostRequest(ctx context.Context, url string, body []byte, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}

	if contentType == "" {
		contentType = ContentTypeADEPT
	}
	req.Header.Set("Content-Type", contentType)

	setDefaultHeaders(req)

	return req, nil
}

// NewRequest dispatches on method.
func NewRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	switch method {
	case http.MethodGet:
		return NewGetRequest(ctx, url)
	case http.MethodPost:
		return NewPostRequest(ctx, url, body, ContentTypeADEPT)
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
}

func setDefaultHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "*/*")
}
