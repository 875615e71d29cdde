package retryhttp_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgeprobe/edgedns/utils/retryhttp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fastPolicy(maxAttempts int) retryhttp.Policy {
	return retryhttp.Policy{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		Multiplier:        2,
		RetryableStatuses: []int{500, 502, 503, 504},
	}
}

func newTestClient(t *testing.T, policy retryhttp.Policy) *http.Client {
	client, err := retryhttp.NewClient(&retryhttp.ClientOptions{
		Logger: zaptest.NewLogger(t),
		Policy: policy,
	})
	require.NoError(t, err)
	return client
}

func TestRetriesTransientStatusThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, fastPolicy(5)).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
	require.EqualValues(t, 4, atomic.LoadInt32(&hits))
}

func TestRetriesExhausted(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, fastPolicy(5)).Get(srv.URL)
	require.Error(t, err)

	var exhaustedErr *retryhttp.RetriesExhaustedError
	require.True(t, errors.As(err, &exhaustedErr))
	assert.Equal(t, http.StatusBadGateway, exhaustedErr.StatusCode)
	assert.Equal(t, 5, exhaustedErr.Attempts)
	assert.EqualValues(t, 5, atomic.LoadInt32(&hits))
}

func TestNonRetryableStatusPassesThrough(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, fastPolicy(5)).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestReplaysRequestBody(t *testing.T) {
	var hits int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, fastPolicy(3)).Post(srv.URL, "text/plain", strings.NewReader("payload"))
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, []string{"payload", "payload"}, bodies)
}

func TestSingleAttemptPolicy(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, fastPolicy(1)).Get(srv.URL)
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestPolicySchedule(t *testing.T) {
	policy := retryhttp.DefaultPolicy()
	require.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}, policy.Schedule())

	policy.MaxBackoff = 3 * time.Second
	require.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		3 * time.Second,
		3 * time.Second,
	}, policy.Schedule())
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, retryhttp.DefaultPolicy().Validate())
	require.Error(t, retryhttp.Policy{MaxAttempts: 0}.Validate())
	require.Error(t, retryhttp.Policy{MaxAttempts: 2, Multiplier: 0.5}.Validate())
}
