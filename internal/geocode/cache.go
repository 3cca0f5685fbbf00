package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/movewise/opportunity-cli/internal/store"
)

// DefaultCacheTTL keeps geocode results for 30 days; street addresses move
// rarely and the upstream service is rate-limited.
const DefaultCacheTTL = 30 * 24 * time.Hour

// CachedClient wraps a Client with a persisted result cache keyed by the
// normalized query.
type CachedClient struct {
	inner Client
	store store.Store
	ttl   time.Duration
}

// CacheOption configures the CachedClient.
type CacheOption func(*CachedClient)

// WithCacheTTL overrides the result TTL.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CachedClient) { c.ttl = ttl }
}

// NewCachedClient wraps client with st. A nil store disables caching.
func NewCachedClient(client Client, st store.Store, opts ...CacheOption) *CachedClient {
	c := &CachedClient{inner: client, store: st, ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeQuery folds an address to a canonical cache form: diacritics
// stripped, lowercased, punctuation dropped, whitespace collapsed.
func normalizeQuery(query string) string {
	folded, _, err := transform.String(stripMarks, query)
	if err != nil {
		folded = query
	}

	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// cacheKey is the SHA-256 hex of the normalized query.
func cacheKey(query string) string {
	h := sha256.Sum256([]byte(normalizeQuery(query)))
	return fmt.Sprintf("%x", h)
}

// Search consults the persisted cache before the upstream client. Cached
// empty candidate lists are returned as-is so repeated misses skip the
// network too. Cache failures fall through to the upstream; store write
// failures are logged, never surfaced.
func (c *CachedClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	if c.store == nil {
		return c.inner.Search(ctx, query)
	}

	key := cacheKey(query)
	if rec, err := c.store.GetGeocode(ctx, key); err != nil {
		zap.L().Warn("geocode: cache read failed", zap.Error(err))
	} else if rec != nil {
		var candidates []Candidate
		if err := json.Unmarshal(rec.Candidates, &candidates); err == nil {
			zap.L().Debug("geocode: cache hit", zap.String("key", key[:12]))
			return candidates, nil
		}
		zap.L().Warn("geocode: discarding corrupt cached result", zap.String("key", key[:12]))
	}

	candidates, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(candidates)
	if err != nil {
		zap.L().Warn("geocode: marshal candidates failed", zap.Error(err))
		return candidates, nil
	}
	if err := c.store.SetGeocode(ctx, key, query, data, c.ttl); err != nil {
		zap.L().Warn("geocode: cache write failed", zap.Error(err))
	}
	return candidates, nil
}
