package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport(Config{Protocol: HTTP1})
	require.NoError(t, err)
	require.Equal(t, HTTP1, tr.Protocol())
	require.Equal(t, DefaultTimeout, tr.(*HTTP1Transport).timeout)
	require.NoError(t, tr.Close())

	_, err = NewTransport(Config{Protocol: "http3.0"})
	require.Error(t, err)
}

func TestSendPost(t *testing.T) {
	var gotBody string
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotType = r.Header.Get("Content-Type")
		w.Header().Set("X-Test", "1")
		_, _ = w.Write([]byte("<success/>"))
	}))
	defer srv.Close()

	tr := NewHTTP1Transport(time.Second, 0, zap.NewNop().Sugar())
	resp, err := tr.Send(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL, Body: []byte("<x/>")})
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Equal(t, "<success/>", string(resp.Body))
	require.Equal(t, "1", resp.Headers["X-Test"])
	require.Equal(t, "<x/>", gotBody)
	require.Equal(t, "application/vnd.adobe.adept+xml", gotType)
}

func TestPostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewHTTP1Transport(time.Second, 3, nil)
	resp, err := tr.Send(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL})
	require.NoError(t, err)
	require.False(t, resp.OK())
	require.Equal(t, int32(1), calls.Load())
}

func TestGetIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("book"))
	}))
	defer srv.Close()

	tr := NewHTTP1Transport(time.Second, 2, nil)
	tr.retry.RetryWaitMin = time.Millisecond
	tr.retry.RetryWaitMax = 2 * time.Millisecond

	resp, err := tr.Send(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, "book", string(resp.Body))
	require.Equal(t, int32(2), calls.Load())
}

func TestSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tr := NewHTTP1Transport(20*time.Millisecond, 0, nil)
	_, err := tr.Send(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL})
	require.Error(t, err)
}
