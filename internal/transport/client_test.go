package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/logging"
)

func testClient(opts ...Option) *Client {
	base := []Option{
		WithRate(0),
		WithBackoff(time.Millisecond, 5*time.Millisecond),
		WithLogger(logging.NewNopLogger()),
	}
	return New(append(base, opts...)...)
}

func TestGetAppliesAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := testClient(WithAuth(&BearerAuth{}, "secret"))
	resp, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)

	var body struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, DecodeResponse(resp, &body))
	assert.True(t, body.OK)
}

func TestGetRetriesThrottledResponses(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	resp, err := testClient().Get(context.Background(), server.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetLogsRateLimiting(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tl := logging.NewTestLogger(t)
	resp, err := testClient(WithLogger(tl.Logger)).Get(context.Background(), server.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	tl.AssertContains(t, "rate limited by inspection source")

	calls.Store(0)
	unavailable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer unavailable.Close()

	quiet := logging.NewTestLogger(t)
	resp, err = testClient(WithLogger(quiet.Logger)).Get(context.Background(), unavailable.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.False(t, quiet.Contains("rate limited"))
	quiet.AssertContains(t, "retrying request")
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(WithRetries(2), WithSourceName("inspections-api")).Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.ErrorIs(t, err, errors.ErrSourceUnavailable)

	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "inspections-api", apiErr.Source)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := testClient().Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "bad token")
	assert.Contains(t, err.Error(), "401")
}

func TestGetHonoursCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := testClient(WithBackoff(time.Millisecond, time.Minute))
	start := time.Now()
	_, err := c.Get(ctx, server.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDelay(t *testing.T) {
	c := New(WithBackoff(time.Second, 5*time.Second))
	assert.Equal(t, time.Second, c.delay(1, 0))
	assert.Equal(t, 2*time.Second, c.delay(2, 0))
	assert.Equal(t, 4*time.Second, c.delay(3, 0))
	assert.Equal(t, 5*time.Second, c.delay(4, 0))
	assert.Equal(t, 3*time.Second, c.delay(1, 3*time.Second))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 7*time.Second, parseRetryAfter("7"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.Greater(t, parseRetryAfter(future), 50*time.Minute)
}

func TestRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := testClient(WithRate(20))
	start := time.Now()
	for range 3 {
		resp, err := c.Get(context.Background(), server.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	// Burst of one: the second and third requests wait ~50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
