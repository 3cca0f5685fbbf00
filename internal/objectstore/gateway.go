// Package objectstore fetches reference datasets from an S3-compatible
// bucket store with multi-region fallback and a short-lived server-side
// cache.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Format identifies the payload shape of a stored object.
type Format string

const (
	// FormatTabular is a CSV metric dataset.
	FormatTabular Format = "csv"
	// FormatFeatureCollection is a GeoJSON feature collection.
	FormatFeatureCollection Format = "json"
)

// ParseFormat validates a format string from the query surface.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTabular:
		return FormatTabular, nil
	case FormatFeatureCollection, "":
		return FormatFeatureCollection, nil
	default:
		return "", eris.Errorf("objectstore: unknown format %q", s)
	}
}

// ContentType returns the HTTP content type for the format.
func (f Format) ContentType() string {
	if f == FormatTabular {
		return "text/csv"
	}
	return "application/json"
}

// regionHeader is the redirect header naming the bucket's true region.
const regionHeader = "x-amz-bucket-region"

// Gateway fetches objects trying the preferred region first, then a fixed
// list of fallback regions. A redirect that names the bucket's true region
// short-circuits the fallback walk.
type Gateway struct {
	client          *http.Client
	endpoint        string
	preferredRegion string
	fallbackRegions []string
	cache           *Cache
	urlFunc         func(region, bucket, key string) string
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *Gateway) { g.client = hc }
}

// WithCache attaches the server-side cache.
func WithCache(c *Cache) Option {
	return func(g *Gateway) { g.cache = c }
}

// WithURLFunc overrides object URL construction (used by tests).
func WithURLFunc(fn func(region, bucket, key string) string) Option {
	return func(g *Gateway) { g.urlFunc = fn }
}

// NewGateway creates a Gateway for the given endpoint domain and regions.
func NewGateway(endpoint, preferredRegion string, fallbackRegions []string, opts ...Option) *Gateway {
	g := &Gateway{
		client:          &http.Client{Timeout: 30 * time.Second},
		endpoint:        endpoint,
		preferredRegion: preferredRegion,
		fallbackRegions: fallbackRegions,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.urlFunc == nil {
		g.urlFunc = func(region, bucket, key string) string {
			return fmt.Sprintf("https://%s.s3.%s.%s/%s", bucket, region, g.endpoint, key)
		}
	}
	return g
}

// Fetch retrieves an object, consulting the server-side cache unless
// useCache is false. Returns the payload, its content type, and whether the
// response came from cache.
func (g *Gateway) Fetch(ctx context.Context, bucket, key string, format Format, useCache bool) ([]byte, string, bool, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, "", false, eris.New("objectstore: bucket is required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, "", false, eris.New("objectstore: key is required")
	}

	if useCache && g.cache != nil {
		if payload, contentType := g.cache.Get(bucket, key, format); payload != nil {
			return payload, contentType, true, nil
		}
	}

	payload, contentType, err := g.fetchAnyRegion(ctx, bucket, key)
	if err != nil {
		return nil, "", false, err
	}
	if contentType == "" {
		contentType = format.ContentType()
	}

	if g.cache != nil {
		g.cache.Put(bucket, key, format, payload, contentType)
	}
	return payload, contentType, false, nil
}

// fetchAnyRegion walks the region list. A redirect naming the true region is
// followed immediately; all other failures fall through to the next region.
// The aggregated error covers every region tried.
func (g *Gateway) fetchAnyRegion(ctx context.Context, bucket, key string) ([]byte, string, error) {
	regions := append([]string{g.preferredRegion}, g.fallbackRegions...)
	tried := make(map[string]bool, len(regions)+1)
	var failures []string

	for i := 0; i < len(regions); i++ {
		region := regions[i]
		if tried[region] {
			continue
		}
		tried[region] = true

		payload, contentType, trueRegion, err := g.fetchRegion(ctx, region, bucket, key)
		if err == nil {
			if i > 0 {
				zap.L().Info("objectstore: fetched from fallback region",
					zap.String("bucket", bucket),
					zap.String("key", key),
					zap.String("region", region),
				)
			}
			return payload, contentType, nil
		}

		failures = append(failures, fmt.Sprintf("%s: %v", region, err))

		// A redirect told us where the bucket actually lives; try there next.
		if trueRegion != "" && !tried[trueRegion] {
			zap.L().Debug("objectstore: redirected to bucket region",
				zap.String("bucket", bucket),
				zap.String("from", region),
				zap.String("to", trueRegion),
			)
			regions = append(regions[:i+1], append([]string{trueRegion}, regions[i+1:]...)...)
		}
	}

	return nil, "", eris.Errorf("objectstore: all regions failed for %s/%s: %s",
		bucket, key, strings.Join(failures, "; "))
}

// fetchRegion performs one GET. On a redirect-class response it returns the
// bucket's reported region alongside the error.
func (g *Gateway) fetchRegion(ctx context.Context, region, bucket, key string) (payload []byte, contentType, trueRegion string, err error) {
	url := g.urlFunc(region, bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", "", eris.Wrap(err, "build request")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", "", eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusTemporaryRedirect {
		return nil, "", resp.Header.Get(regionHeader), eris.Errorf("redirected (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", "", eris.Errorf("status %d", resp.StatusCode)
	}

	payload, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", eris.Wrap(err, "read body")
	}
	return payload, resp.Header.Get("Content-Type"), "", nil
}
