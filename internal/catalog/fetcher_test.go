package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const issJSON = `[{"OBJECT_NAME":"ISS (ZARYA)","OBJECT_ID":"1998-067A","EPOCH":"2008-09-20T12:25:40.104192",` +
	`"MEAN_MOTION":15.72125391,"ECCENTRICITY":0.0006703,"INCLINATION":51.6416,"RA_OF_ASC_NODE":247.4627,` +
	`"ARG_OF_PERICENTER":130.536,"MEAN_ANOMALY":325.0288,"EPHEMERIS_TYPE":0,"CLASSIFICATION_TYPE":"U",` +
	`"NORAD_CAT_ID":25544,"ELEMENT_SET_NO":292,"REV_AT_EPOCH":56353,"BSTAR":-1.1606e-5,` +
	`"MEAN_MOTION_DOT":-2.182e-5,"MEAN_MOTION_DDOT":0}]`

// TestFetcherBodyLimit verifies that responses exceeding the 50 MB limit
// return an error instead of consuming unbounded memory.
func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		chunk := strings.Repeat("A", 1024*1024)
		for i := 0; i < 52; i++ {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return // Client closed connection.
			}
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(testLogger, WithBaseURL(server.URL))
	_, err := fetcher.Fetch(context.Background(), Designator("1998-067A"))
	if err == nil {
		t.Fatal("expected error for oversized response, got nil")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("expected body limit error, got: %v", err)
	}
}

// TestFetcherSuccess verifies the query and decoding of a designator fetch.
func TestFetcherSuccess(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(issJSON))
	}))
	defer server.Close()

	fetcher := NewFetcher(testLogger, WithBaseURL(server.URL))
	sets, err := fetcher.Fetch(context.Background(), Designator("1998-067A"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if query != "FORMAT=json&INTDES=1998-067A" {
		t.Errorf("query = %q", query)
	}
	if len(sets) != 1 {
		t.Fatalf("got %d records, want 1", len(sets))
	}
	if sets[0].NoradCatID != 25544 || sets[0].ObjectName != "ISS (ZARYA)" {
		t.Errorf("unexpected record: %+v", sets[0])
	}
	want := time.Date(2008, 9, 20, 12, 25, 40, 104192000, time.UTC)
	if !sets[0].Epoch.Equal(want) {
		t.Errorf("epoch = %v, want %v", sets[0].Epoch, want)
	}
}

func TestFetcherCollectionQuery(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(issJSON))
	}))
	defer server.Close()

	fetcher := NewFetcher(testLogger, WithBaseURL(server.URL))
	if _, err := fetcher.Fetch(context.Background(), Collection("weather")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "FORMAT=json&GROUP=weather" {
		t.Errorf("query = %q", query)
	}
}

func TestFetcherNoData(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"text marker", "No GP data found"},
		{"empty array", "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			fetcher := NewFetcher(testLogger, WithBaseURL(server.URL))
			_, err := fetcher.Fetch(context.Background(), Designator("2099-001A"))
			if !errors.Is(err, ErrNoData) {
				t.Fatalf("err = %v, want ErrNoData", err)
			}
		})
	}
}

// TestFetcherHTTPError verifies error handling for non-200 responses.
func TestFetcherHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := NewFetcher(testLogger, WithBaseURL(server.URL))
	_, err := fetcher.Fetch(context.Background(), Collection("noaa"))
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
}

func TestFetcherMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"OBJECT_NAME": 12`))
	}))
	defer server.Close()

	fetcher := NewFetcher(testLogger, WithBaseURL(server.URL))
	_, err := fetcher.Fetch(context.Background(), Collection("noaa"))
	if err == nil || !strings.Contains(err.Error(), "decoding") {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestFetcherInvalidIdentifier(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	fetcher := NewFetcher(testLogger, WithBaseURL(server.URL))
	for _, id := range []Identifier{{}, {Designator: "1998-067A", Collection: "stations"}} {
		if _, err := fetcher.Fetch(context.Background(), id); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("Fetch(%+v) err = %v, want ErrInvalidIdentifier", id, err)
		}
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times for invalid identifiers", hits.Load())
	}
}

func TestFetcherCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	fetcher := NewFetcher(testLogger, WithBaseURL(server.URL))
	_, err := fetcher.Fetch(ctx, Collection("gps-ops"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	fetcher := NewFetcher(testLogger, WithBaseURL(server.URL), WithTimeout(50*time.Millisecond))
	start := time.Now()
	if _, err := fetcher.Fetch(context.Background(), Collection("gps-ops")); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestFetcherRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(issJSON))
	}))
	defer server.Close()

	fetcher := NewFetcher(testLogger, WithBaseURL(server.URL), WithRateLimit(0.1, 1))
	if _, err := fetcher.Fetch(context.Background(), Designator("1998-067A")); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	// The burst is spent; the next token is 10 s away.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := fetcher.Fetch(ctx, Designator("1998-067A")); err == nil {
		t.Fatal("expected rate limiter to reject the second fetch")
	}
}
