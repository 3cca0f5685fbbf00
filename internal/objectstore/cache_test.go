package objectstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Put("data", "metrics.csv", FormatTabular, []byte("a,b"), "text/csv")

	payload, contentType := c.Get("data", "metrics.csv", FormatTabular)
	require.NotNil(t, payload)
	assert.Equal(t, "a,b", string(payload))
	assert.Equal(t, "text/csv", contentType)

	// Same key, different format is a distinct entry.
	payload, _ = c.Get("data", "metrics.csv", FormatFeatureCollection)
	assert.Nil(t, payload)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("data", "k", FormatFeatureCollection, []byte("{}"), "application/json")

	now = now.Add(59 * time.Second)
	payload, _ := c.Get("data", "k", FormatFeatureCollection)
	assert.NotNil(t, payload)

	now = now.Add(2 * time.Second)
	payload, _ = c.Get("data", "k", FormatFeatureCollection)
	assert.Nil(t, payload, "entry past TTL must not be returned")

	// Expired entry was removed, not just hidden.
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Put("b", "k1", FormatTabular, []byte("1"), "text/csv")
	c.Put("b", "k2", FormatTabular, []byte("2"), "text/csv")

	// Touch k1 so k2 becomes the eviction candidate.
	_, _ = c.Get("b", "k1", FormatTabular)

	c.Put("b", "k3", FormatTabular, []byte("3"), "text/csv")

	p1, _ := c.Get("b", "k1", FormatTabular)
	p2, _ := c.Get("b", "k2", FormatTabular)
	p3, _ := c.Get("b", "k3", FormatTabular)
	assert.NotNil(t, p1)
	assert.Nil(t, p2)
	assert.NotNil(t, p3)
}

func TestCacheStats(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Put("b", "k", FormatTabular, []byte("x"), "text/csv")

	_, _ = c.Get("b", "k", FormatTabular)
	_, _ = c.Get("b", "missing", FormatTabular)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestObjectKeyShape(t *testing.T) {
	assert.Equal(t, fmt.Sprintf("%s:%s:%s", "csv", "b", "k"), objectKey("b", "k", FormatTabular))
}
