// Package geocode turns free-text addresses into coordinate candidates via
// a Nominatim-compatible geocoding service, with persisted result caching.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Nominatim search endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org/search"

const userAgent = "opportunity-cli/1.0"

// Candidate is one geocoding result: a [lon, lat] center plus a display
// name. The first candidate in a result list is authoritative.
type Candidate struct {
	Lon         float64 `json:"lon"`
	Lat         float64 `json:"lat"`
	DisplayName string  `json:"display_name"`
}

// Client resolves a free-text query to candidate locations.
type Client interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// HTTPClient is the Nominatim-backed Client.
type HTTPClient struct {
	httpClient  *http.Client
	baseURL     string
	countryCode string
	userAgent   string
	limiter     *rate.Limiter
}

// Option configures the HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithBaseURL overrides the search endpoint.
func WithBaseURL(u string) Option {
	return func(c *HTTPClient) { c.baseURL = u }
}

// WithCountry restricts results to an ISO country code.
func WithCountry(code string) Option {
	return func(c *HTTPClient) { c.countryCode = code }
}

// WithUserAgent overrides the User-Agent header. Nominatim requires an
// identifying agent string.
func WithUserAgent(ua string) Option {
	return func(c *HTTPClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *HTTPClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates a geocoding client. The default rate limit follows the
// public Nominatim usage policy of one request per second.
func NewClient(opts ...Option) *HTTPClient {
	c := &HTTPClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     DefaultBaseURL,
		countryCode: "us",
		userAgent:   userAgent,
		limiter:     rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nominatimPlace is the wire shape of one search result. Coordinates come
// back as strings; both are required for the result to count.
type nominatimPlace struct {
	Lat         *string `json:"lat"`
	Lon         *string `json:"lon"`
	DisplayName string  `json:"display_name"`
}

// Search queries the geocoding service. An empty candidate list is not an
// error; the caller decides whether a miss is terminal.
func (c *HTTPClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"5"},
	}
	if c.countryCode != "" {
		params.Set("countrycodes", c.countryCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read response")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	candidates := make([]Candidate, 0, len(places))
	for _, p := range places {
		if p.Lat == nil || p.Lon == nil {
			zap.L().Warn("geocode: result missing coordinates", zap.String("name", p.DisplayName))
			continue
		}
		lat, latErr := strconv.ParseFloat(*p.Lat, 64)
		lon, lonErr := strconv.ParseFloat(*p.Lon, 64)
		if latErr != nil || lonErr != nil {
			zap.L().Warn("geocode: unparseable coordinates", zap.String("name", p.DisplayName))
			continue
		}
		candidates = append(candidates, Candidate{Lon: lon, Lat: lat, DisplayName: p.DisplayName})
	}
	return candidates, nil
}
