package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_NoRetries(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestDo_RetriesServerErrorsAndRewindsBody(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"n":1}`, string(body))
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(Config{Timeout: 5 * time.Second, MaxRetries: 3, RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond, MaxConnsPerHost: 5})
	req, err := NewJSONRequest(context.Background(), server.URL, map[string]int{"n": 1})
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDo_NoRetryReturnsServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	req, err := NewJSONRequest(context.Background(), server.URL, struct{}{})
	require.NoError(t, err)

	resp, err := New(DefaultConfig()).Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := New(Config{Timeout: time.Second, MaxRetries: 3, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond})
	req, _ := NewJSONRequest(context.Background(), server.URL, struct{}{})

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), attempts.Load())
}

func TestDo_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req, _ := NewJSONRequest(ctx, server.URL, struct{}{})
	_, err := New(DefaultConfig()).Do(ctx, req)
	assert.Error(t, err)
}

func TestNewJSONRequest(t *testing.T) {
	req, err := NewJSONRequest(context.Background(), "http://bot.local/sendMessage", map[string]string{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)

	var got map[string]string
	require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
	assert.Equal(t, "hi", got["text"])

	_, err = NewJSONRequest(context.Background(), "http://bot.local", make(chan int))
	assert.Error(t, err)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	assert.True(t, isRetryableError(&net.OpError{Op: "dial", Err: io.EOF}))
}
