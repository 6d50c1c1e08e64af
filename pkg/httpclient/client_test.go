package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryStrategy(t *testing.T) {
	tests := []struct {
		status int
		want   RetryStrategy
	}{
		{http.StatusTooManyRequests, BackoffRetry},
		{http.StatusServiceUnavailable, BackoffRetry},
		{http.StatusRequestTimeout, ConservativeRetry},
		{http.StatusInternalServerError, ConservativeRetry},
		{http.StatusBadGateway, ConservativeRetry},
		{http.StatusGatewayTimeout, ConservativeRetry},
		{http.StatusBadRequest, NoRetry},
		{http.StatusUnauthorized, NoRetry},
		{http.StatusNotFound, NoRetry},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultRetryStrategy(tt.status), "status %d", tt.status)
	}
}

func TestPostJSONRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "ping", in["message"])

		if attempts.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "pong"})
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))

	var out map[string]string
	err := client.PostJSON(context.Background(), server.URL, nil, map[string]string{"message": "ping"}, &out)
	require.NoError(t, err)

	// The body was replayed on every attempt.
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, "pong", out["message"])
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))

	var out map[string]string
	err := client.GetJSON(context.Background(), server.URL, nil, &out)

	require.Error(t, err)
	var retryable *RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.Equal(t, http.StatusBadRequest, retryable.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

type countingBody struct {
	io.ReadCloser
	closed *atomic.Int32
}

func (b *countingBody) Close() error {
	b.closed.Add(1)
	return b.ReadCloser.Close()
}

// countingTransport wraps every response body so tests can assert that the
// client closes bodies it does not hand to the caller.
type countingTransport struct {
	base   http.RoundTripper
	opened atomic.Int32
	closed atomic.Int32
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		t.opened.Add(1)
		resp.Body = &countingBody{ReadCloser: resp.Body, closed: &t.closed}
	}
	return resp, err
}

func TestErrorResponsesCloseBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	transport := &countingTransport{base: http.DefaultTransport}
	client := New(WithHTTPClient(&http.Client{Transport: transport}), WithBaseDelay(time.Millisecond))

	var out map[string]string
	err := client.GetJSON(context.Background(), server.URL, nil, &out)

	require.Error(t, err)
	assert.Equal(t, int32(1), transport.opened.Load())
	assert.Equal(t, int32(1), transport.closed.Load())
}

func TestExhaustedRetriesCloseEveryBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	transport := &countingTransport{base: http.DefaultTransport}
	client := New(
		WithHTTPClient(&http.Client{Transport: transport}),
		WithMaxRetries(2),
		WithBaseDelay(time.Millisecond),
	)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.Error(t, err)
	assert.Nil(t, resp)

	assert.Equal(t, int32(3), transport.opened.Load())
	assert.Equal(t, transport.opened.Load(), transport.closed.Load())
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))

	var out map[string]string
	err := client.GetJSON(context.Background(), server.URL, nil, &out)

	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDoHonorsContextCancellationDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "5")
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out map[string]string
	err := client.GetJSON(ctx, server.URL, nil, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
