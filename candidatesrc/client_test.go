package candidatesrc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgeprobe/edgedns/candidatesrc"
	"github.com/edgeprobe/edgedns/utils/retryhttp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newClient(t *testing.T) *candidatesrc.Client {
	httpClient, err := retryhttp.NewClient(&retryhttp.ClientOptions{
		Policy: retryhttp.Policy{
			MaxAttempts:       5,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        2 * time.Millisecond,
			Multiplier:        2,
			RetryableStatuses: []int{500, 502, 503, 504},
		},
	})
	require.NoError(t, err)

	return candidatesrc.NewClient(&candidatesrc.ClientOptions{
		Logger:     zaptest.NewLogger(t),
		HttpClient: httpClient,
	})
}

func serveBody(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestFetchSuccess(t *testing.T) {
	srv := serveBody(`{"status":"success","proxies":[
		{"ip":"1.1.1.1","port":443},
		{"ip":" 2.2.2.2 "},
		{"ip":"not-an-ip"},
		{"ip":"1.1.1.1"},
		{"ip":"2606:4700::1"}
	]}`)
	defer srv.Close()

	candidates, err := newClient(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	require.Equal(t, []netip.Addr{
		netip.MustParseAddr("1.1.1.1"),
		netip.MustParseAddr("2.2.2.2"),
		netip.MustParseAddr("2606:4700::1"),
	}, candidatesrc.Addrs(candidates))
}

func TestFetchEmptyList(t *testing.T) {
	srv := serveBody(`{"status":"success","proxies":[]}`)
	defer srv.Close()

	candidates, err := newClient(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	srv := serveBody(`{"status":"error","message":"unknown region"}`)
	defer srv.Close()

	_, err := newClient(t).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var sourceErr *candidatesrc.SourceError
	require.True(t, errors.As(err, &sourceErr))
	assert.Equal(t, "error", sourceErr.Status)
	assert.Equal(t, "unknown region", sourceErr.Message)
}

func TestFetchMalformedJSON(t *testing.T) {
	srv := serveBody(`{"status":`)
	defer srv.Close()

	_, err := newClient(t).Fetch(context.Background(), srv.URL)

	var sourceErr *candidatesrc.SourceError
	require.True(t, errors.As(err, &sourceErr))
	assert.Contains(t, sourceErr.Message, "malformed")
}

func TestFetchClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newClient(t).Fetch(context.Background(), srv.URL)

	var sourceErr *candidatesrc.SourceError
	require.True(t, errors.As(err, &sourceErr))
	assert.Equal(t, http.StatusForbidden, sourceErr.StatusCode)
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","proxies":[{"ip":"3.3.3.3"}]}`))
	}))
	defer srv.Close()

	candidates, err := newClient(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.EqualValues(t, 4, atomic.LoadInt32(&hits))
}

func TestFetchUnavailable(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, errors.Is(err, candidatesrc.ErrSourceUnavailable))
	require.EqualValues(t, 5, atomic.LoadInt32(&hits))
}
