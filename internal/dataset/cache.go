package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/feature"
	"github.com/movewise/opportunity-cli/internal/kv"
	"github.com/movewise/opportunity-cli/internal/objectstore"
)

// DefaultTTL is how long a cached dataset stays valid in both cache levels.
const DefaultTTL = 24 * time.Hour

// Cache is the two-level client data cache: an in-process map backed by a
// persisted key-value store, both in front of the object store gateway.
// Entries are content-addressed by (bucket, key, format) and immutable
// within their TTL window, so writes are last-write-wins.
type Cache struct {
	mu      sync.Mutex
	mem     map[string]memEntry
	store   kv.Store
	gateway *objectstore.Gateway
	ttl     time.Duration
	now     func() time.Time
}

type memEntry struct {
	value     any
	timestamp time.Time
}

// CacheOption configures the Cache.
type CacheOption func(*Cache)

// WithTTL overrides the cache TTL.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock injects a clock for deterministic TTL tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a Cache. store may be nil, in which case only the memory
// level is used.
func NewCache(gateway *objectstore.Gateway, store kv.Store, opts ...CacheOption) *Cache {
	c := &Cache{
		mem:     make(map[string]memEntry),
		store:   store,
		gateway: gateway,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(bucket, key string, format objectstore.Format) string {
	return fmt.Sprintf("%s:%s:%s", format, bucket, key)
}

// Table returns the parsed tabular dataset at (bucket, key). With useCache
// it checks memory, then the persisted store, before fetching through the
// gateway; parse failures propagate to the caller.
func (c *Cache) Table(ctx context.Context, bucket, key string, useCache bool) (*Table, error) {
	return get(ctx, c, bucket, key, objectstore.FormatTabular, useCache,
		func(payload []byte) (*Table, error) {
			return ParseTable(bytes.NewReader(payload))
		},
		func(t *Table) ([]byte, error) { return json.Marshal(t) },
		func(data []byte) (*Table, error) {
			var t Table
			if err := json.Unmarshal(data, &t); err != nil {
				return nil, eris.Wrap(err, "dataset: decode cached table")
			}
			return &t, nil
		},
	)
}

// FeatureCollection returns the parsed feature collection at (bucket, key).
func (c *Cache) FeatureCollection(ctx context.Context, bucket, key string, useCache bool) (*feature.Collection, error) {
	parse := func(payload []byte) (*feature.Collection, error) {
		return feature.ParseCollection(payload)
	}
	return get(ctx, c, bucket, key, objectstore.FormatFeatureCollection, useCache,
		parse,
		// The raw GeoJSON is its own persisted form.
		nil,
		parse,
	)
}

// Preload warms both cache levels for the dataset and discards the result.
// Errors are swallowed; preloading is purely advisory.
func (c *Cache) Preload(ctx context.Context, bucket, key string, format objectstore.Format) {
	var err error
	switch format {
	case objectstore.FormatTabular:
		_, err = c.Table(ctx, bucket, key, true)
	default:
		_, err = c.FeatureCollection(ctx, bucket, key, true)
	}
	if err != nil {
		zap.L().Debug("dataset: preload failed",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.String("format", string(format)),
			zap.Error(err),
		)
	}
}

// get implements the two-level lookup. encode serializes the parsed value
// for the persisted level; when nil, the raw payload is persisted as-is and
// decodePersisted must accept it.
func get[T any](
	ctx context.Context,
	c *Cache,
	bucket, key string,
	format objectstore.Format,
	useCache bool,
	parse func([]byte) (T, error),
	encode func(T) ([]byte, error),
	decodePersisted func([]byte) (T, error),
) (T, error) {
	var zero T
	ck := cacheKey(bucket, key, format)

	if useCache {
		if v, ok := c.memGet(ck); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
		if typed, ok := persistedGet(c, ck, decodePersisted); ok {
			c.memPut(ck, typed)
			return typed, nil
		}
	}

	payload, _, _, err := c.gateway.Fetch(ctx, bucket, key, format, useCache)
	if err != nil {
		return zero, err
	}

	value, err := parse(payload)
	if err != nil {
		return zero, err
	}

	c.memPut(ck, value)
	persistedPut(c, ck, value, payload, encode)
	return value, nil
}

func (c *Cache) memGet(ck string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.mem[ck]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.timestamp) >= c.ttl {
		delete(c.mem, ck)
		return nil, false
	}
	return entry.value, true
}

func (c *Cache) memPut(ck string, value any) {
	c.mu.Lock()
	c.mem[ck] = memEntry{value: value, timestamp: c.now()}
	c.mu.Unlock()
}

// persistedGet validates TTL and deletes expired or corrupt entries before
// reporting a miss, so the caller falls through to the network.
func persistedGet[T any](c *Cache, ck string, decode func([]byte) (T, error)) (T, bool) {
	var zero T
	if c.store == nil {
		return zero, false
	}

	entry, err := c.store.Get(ck)
	if err != nil {
		if !eris.Is(err, kv.ErrNotFound) {
			zap.L().Warn("dataset: persisted cache read failed", zap.String("key", ck), zap.Error(err))
			_ = c.store.Delete(ck)
		}
		return zero, false
	}

	if c.now().Sub(entry.Timestamp) >= c.ttl {
		_ = c.store.Delete(ck)
		return zero, false
	}

	value, err := decode(entry.Data)
	if err != nil {
		zap.L().Warn("dataset: discarding corrupt persisted entry", zap.String("key", ck), zap.Error(err))
		_ = c.store.Delete(ck)
		return zero, false
	}
	return value, true
}

// persistedPut writes the persisted level best-effort; failures are logged
// and never fail the overall call.
func persistedPut[T any](c *Cache, ck string, value T, rawPayload []byte, encode func(T) ([]byte, error)) {
	if c.store == nil {
		return
	}

	data := rawPayload
	if encode != nil {
		encoded, err := encode(value)
		if err != nil {
			zap.L().Warn("dataset: encode for persisted cache failed", zap.String("key", ck), zap.Error(err))
			return
		}
		data = encoded
	}

	if err := c.store.Put(ck, &kv.Entry{Data: data, Timestamp: c.now()}); err != nil {
		zap.L().Warn("dataset: persisted cache write failed", zap.String("key", ck), zap.Error(err))
	}
}
