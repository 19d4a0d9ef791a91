package query

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kimconv/internal/config"
)

func testOptions(url string) Options {
	return Options{
		URL:      url,
		Database: "data",
		Timeout:  5 * time.Second,
		Breaker: BreakerSettings{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: 0.6,
			MinRequests:      3,
		},
	}
}

func TestQuerySendsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, `{"species.source-value":"Ag"}`, r.PostForm.Get("query"))
		assert.Equal(t, "{}", r.PostForm.Get("fields"))
		assert.Equal(t, "data", r.PostForm.Get("database"))
		assert.Equal(t, "0", r.PostForm.Get("limit"))
		assert.Equal(t, "on", r.PostForm.Get("flat"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"meta.uuid": "abc", "a.si-value": 4e-10}, {"property-id": "tag:p"}]`))
	}))
	defer srv.Close()

	records, err := NewClient(testOptions(srv.URL)).Query(context.Background(), "Ag")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "abc", records[0]["meta.uuid"])
}

func TestQueryRejectsEmptyElement(t *testing.T) {
	_, err := NewClient(testOptions("http://unused.invalid")).Query(context.Background(), "")
	assert.Error(t, err)
}

func TestQueryStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(testOptions(srv.URL)).Query(context.Background(), "Ag")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "bad query", se.Body)
}

func TestQueryMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"}`))
	}))
	defer srv.Close()

	_, err := NewClient(testOptions(srv.URL)).Query(context.Background(), "Ag")
	assert.Error(t, err)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL))
	for i := 0; i < 3; i++ {
		_, err := c.Query(context.Background(), "Ag")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	_, err := c.Query(context.Background(), "Ag")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), hits.Load(), "open breaker does not reach the server")
}

func TestBreakerStaysClosedBelowMinRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL))
	for i := 0; i < 2; i++ {
		_, _ = c.Query(context.Background(), "Ag")
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := OptionsFromConfig(cfg)

	assert.Equal(t, cfg.Query.URL, opts.URL)
	assert.Equal(t, "data", opts.Database)
	assert.Equal(t, 60*time.Second, opts.Timeout)
	assert.Equal(t, 30*time.Second, opts.Breaker.Timeout)
	assert.Equal(t, uint32(3), opts.Breaker.MinRequests)
	assert.InDelta(t, 0.6, opts.Breaker.FailureThreshold, 1e-12)
}

func TestQueryWithCustomHTTPClient(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"meta.uuid": "tls"}]`))
	}))
	defer srv.Close()

	_, err := NewClient(testOptions(srv.URL)).Query(context.Background(), "Ag")
	require.Error(t, err, "default client does not trust the test certificate")

	records, err := NewClient(testOptions(srv.URL), WithHTTPClient(srv.Client())).Query(context.Background(), "Ag")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tls", records[0]["meta.uuid"])
}
