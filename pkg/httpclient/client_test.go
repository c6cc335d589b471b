package httpclient

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRetriesOnRateLimit(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithBaseDelay(time.Millisecond))

	req, err := http.NewRequest(http.MethodPost, server.URL, bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte("payload"))), nil
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// The retried request re-created its body from GetBody.
	assert.Equal(t, int32(2), attempts.Load())
}

func TestDoNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(WithBaseDelay(time.Millisecond))

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestDoExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(WithBaseDelay(time.Millisecond), WithMaxRetries(2))

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.Error(t, err)
	defer resp.Body.Close()

	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, http.StatusServiceUnavailable, retryErr.StatusCode)
}

func TestCalculateDelayHonorsRetryAfter(t *testing.T) {
	client := New(WithBaseDelay(time.Second))

	delay := client.calculateDelay(SmartRetry, 0, RateLimitInfo{RetryAfter: 5 * time.Second})
	assert.Equal(t, 5*time.Second, delay)

	// Without headers, exponential backoff with jitter.
	delay = client.calculateDelay(SmartRetry, 1, RateLimitInfo{})
	assert.GreaterOrEqual(t, delay, 2*time.Second)
	assert.LessOrEqual(t, delay, 2200*time.Millisecond)
}

func TestParseOpenAIHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "7")
	headers.Set("x-ratelimit-remaining-requests", "12")

	info := ParseOpenAIHeaders(headers)
	assert.Equal(t, 7*time.Second, info.RetryAfter)
	assert.Equal(t, 12, info.RequestsRemaining)
}
