package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CacheLookup(CacheHit)
	m.CacheWrite(nil)
	m.CacheEvicted()
	m.ModelRequest("extract_location", time.Now(), nil)
	m.SocialFetch(time.Now(), 0, nil)
	m.EventPublished("disaster_created")
	m.WebsocketConnected(1)
	m.HTTPRequest("GET", "/health", 200, time.Millisecond)
}

func TestRecorders(t *testing.T) {
	m := NewMetricsForTesting()

	m.CacheLookup(CacheHit)
	m.CacheLookup(CacheHit)
	m.CacheLookup(CacheExpired)
	m.SocialFetch(time.Now(), 0, nil)
	m.SocialFetch(time.Now(), 3, errors.New("502"))
	m.HTTPRequest("GET", "/api/disasters/{id}", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(CacheHit)); got != 2 {
		t.Fatalf("cache hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(CacheExpired)); got != 1 {
		t.Fatalf("cache expired = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SocialFetches.WithLabelValues(OutcomeEmpty)); got != 1 {
		t.Fatalf("social empty = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SocialFetches.WithLabelValues(OutcomeError)); got != 1 {
		t.Fatalf("social error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/disasters/{id}", "404")); got != 1 {
		t.Fatalf("http requests = %v, want 1", got)
	}
}
