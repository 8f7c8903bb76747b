package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/groups", "/api/v1/groups"},
		{"/api/v1/objects", "/api/v1/objects"},
		{"/api/v1/terminator", "/api/v1/terminator"},

		// Parameterized routes collapse to one label.
		{"/api/v1/groups/0/select", "/api/v1/groups/{index}/select"},
		{"/api/v1/groups/12/deselect", "/api/v1/groups/{index}/deselect"},
		{"/api/v1/objects/7", "/api/v1/objects/{index}"},
		{"/api/v1/objects/250", "/api/v1/objects/{index}"},
		{"/api/v1/objects/3/ground-track", "/api/v1/objects/{index}/ground-track"},
		{"/api/v1/objects/3/visibility", "/api/v1/objects/{index}/visibility"},
		{"/api/v1/objects/3/sky-track", "/api/v1/objects/{index}/sky-track"},
		{"/api/v1/objects/3/passes", "/api/v1/objects/{index}/passes"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/api/v1/objects/abc", "other"},
		{"/api/v1/objects/3/unknown", "other"},
		{"/api/v1/groups/1/toggle", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 object indices produce exactly 1
// distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[normalizeRoute("/api/v1/objects/"+strconv.Itoa(i))] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/v1/objects/{index}", http.MethodGet, "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/objects/42", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/v1/objects/{index}", http.MethodGet, "418"))

	if after-before != 1 {
		t.Errorf("request counter delta = %v, want 1", after-before)
	}
}

func TestCacheLookupCounter(t *testing.T) {
	before := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	IncCacheLookup("hit")
	if got := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")) - before; got != 1 {
		t.Errorf("hit counter delta = %v, want 1", got)
	}
}
