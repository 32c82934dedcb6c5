package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRequest(t *testing.T) {
	ctx := context.Background()

	get, err := NewRequest(ctx, http.MethodGet, "http://example.com/adept/ActivationServiceInfo", nil)
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, get.Method)
	require.Equal(t, UserAgent, get.Header.Get("User-Agent"))
	require.Empty(t, get.Header.Get("Content-Type"))

	post, err := NewRequest(ctx, http.MethodPost, "http://example.com/adept/Activate", []byte("<activate/>"))
	require.NoError(t, err)
	require.Equal(t, ContentTypeADEPT, post.Header.Get("Content-Type"))
	body, err := io.ReadAll(post.Body)
	require.NoError(t, err)
	require.Equal(t, "<activate/>", string(body))

	_, err = NewRequest(ctx, http.MethodDelete, "http://example.com", nil)
	require.Error(t, err)
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, service, want string
	}{
		{"http://adeactivate.adobe.com/adept", "Activate", "http://adeactivate.adobe.com/adept/Activate"},
		{"http://adeactivate.adobe.com/adept/", "Activate", "http://adeactivate.adobe.com/adept/Activate"},
		{"https://acs4.kobo.com/fulfillment", "/Fulfill", "https://acs4.kobo.com/fulfillment/Fulfill"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, JoinURL(tt.base, tt.service))
		})
	}
}

func TestValidateBaseURL(t *testing.T) {
	require.NoError(t, ValidateBaseURL("http://adeactivate.adobe.com/adept"))
	require.Error(t, ValidateBaseURL("ftp://adeactivate.adobe.com"))
	require.Error(t, ValidateBaseURL("http://"))
	require.Error(t, ValidateBaseURL("::"))
}

func TestRetryClient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewRetryClient(2, 5*time.Second, zap.NewNop().Sugar())
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = 5 * time.Millisecond

	req, err := retryablehttp.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.Equal(t, int32(3), calls.Load())
}

func TestRetryClientGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewRetryClient(1, 5*time.Second, nil)
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = 5 * time.Millisecond

	req, err := retryablehttp.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)
	require.Equal(t, int32(2), calls.Load())
}
