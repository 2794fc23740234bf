package httputil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/pkg/logger"
)

func TestNew(t *testing.T) {
	client := New(logger.NewNop())

	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 3, client.retryPolicy.MaxRetries)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.True(t, client.retryEnabled)
}

func TestBuilderOptions(t *testing.T) {
	client := New(logger.NewNop()).
		WithTimeout(5*time.Second).
		WithRetry(5, 2*time.Second).
		WithUserAgent("trifund-test")

	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 5, client.retryPolicy.MaxRetries)
	assert.Equal(t, 2*time.Second, client.retryPolicy.InitialDelay)
	assert.Equal(t, "trifund-test", client.userAgent)

	assert.False(t, client.DisableRetry().retryEnabled)
}

func TestGetBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "trifund-test", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html>ok</html>`))
	}))
	defer server.Close()

	body, err := New(logger.NewNop()).WithUserAgent("trifund-test").GetBody(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
}

func TestGetBody_RetryOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	body, err := New(logger.NewNop()).WithRetry(3, time.Millisecond).GetBody(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestGetBody_NoRetryOn404(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(logger.NewNop()).WithRetry(3, time.Millisecond).GetBody(context.Background(), server.URL)
	require.Error(t, err)

	var se *StatusError
	require.True(t, asStatus(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		statusCode int
		want       bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.statusCode))
		})
	}
}
