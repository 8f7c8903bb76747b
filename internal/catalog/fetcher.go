package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/star/orbtrack/internal/metrics"
)

const (
	// DefaultBaseURL is the CelesTrak GP query endpoint.
	DefaultBaseURL = "https://celestrak.org/NORAD/elements/gp.php"

	defaultTimeout = 10 * time.Second

	// maxBodyBytes caps a single response; the largest CelesTrak collections
	// are a few MB of JSON.
	maxBodyBytes = 50 << 20
)

// ErrNoData is returned when the catalog has no records for an identifier.
var ErrNoData = errors.New("no GP data found")

var noDataBody = []byte("No GP data found")

// Fetcher retrieves element sets from the GP catalog over HTTP.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithBaseURL overrides the catalog endpoint.
func WithBaseURL(u string) FetcherOption {
	return func(f *Fetcher) {
		if u != "" {
			f.baseURL = u
		}
	}
}

// WithHTTPClient replaces the HTTP client; its timeout applies as configured.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.httpClient.Timeout = d
		}
	}
}

// WithRateLimit limits outbound requests to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) FetcherOption {
	return func(f *Fetcher) {
		if perSecond <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewFetcher creates a Fetcher. By default it queries DefaultBaseURL with a
// 10 second timeout and no rate limit.
func NewFetcher(logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BaseURL returns the configured endpoint.
func (f *Fetcher) BaseURL() string {
	return f.baseURL
}

// Fetch queries the catalog for id and decodes the JSON response.
// Individual records are not validated here.
func (f *Fetcher) Fetch(ctx context.Context, id Identifier) ([]ElementSet, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	start := time.Now()
	sets, err := f.fetch(ctx, id)
	result := "success"
	switch {
	case err != nil && ctx.Err() != nil:
		result = "cancelled"
	case err != nil:
		result = "error"
	}
	metrics.ObserveCatalogFetch(result, time.Since(start))

	if err != nil {
		return nil, err
	}

	f.logger.Debug("catalog fetched",
		"query", id.String(),
		"records", len(sets),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sets, nil
}

func (f *Fetcher) fetch(ctx context.Context, id Identifier) ([]ElementSet, error) {
	reqURL := f.baseURL + "?" + id.query().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.baseURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", f.baseURL, maxBodyBytes)
	}

	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, noDataBody) {
		return nil, fmt.Errorf("%s: %w", id, ErrNoData)
	}

	var sets []ElementSet
	if err := json.Unmarshal(trimmed, &sets); err != nil {
		return nil, fmt.Errorf("decoding response for %s: %w", id, err)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrNoData)
	}
	return sets, nil
}
