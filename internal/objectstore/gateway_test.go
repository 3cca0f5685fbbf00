package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// regionMux routes requests to per-region handlers based on a path prefix,
// standing in for per-region bucket hosts.
func newRegionGateway(t *testing.T, handlers map[string]http.HandlerFunc, opts ...Option) (*Gateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for region, h := range handlers {
			if r.URL.Query().Get("region") == region {
				h(w, r)
				return
			}
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	opts = append(opts, WithURLFunc(func(region, bucket, key string) string {
		return fmt.Sprintf("%s/%s/%s?region=%s", srv.URL, bucket, key, region)
	}))
	return NewGateway("amazonaws.com", "us-east-1", []string{"us-east-2", "us-west-2"}, opts...), srv
}

func TestFetchPreferredRegion(t *testing.T) {
	g, _ := newRegionGateway(t, map[string]http.HandlerFunc{
		"us-east-1": func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
		},
	})

	payload, contentType, cached, err := g.Fetch(context.Background(), "data", "tracts.geojson", FormatFeatureCollection, true)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "application/json", contentType)
	assert.Contains(t, string(payload), "FeatureCollection")
}

func TestFetchFollowsRegionRedirect(t *testing.T) {
	var westCalls atomic.Int32
	g, _ := newRegionGateway(t, map[string]http.HandlerFunc{
		"us-east-1": func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set(regionHeader, "eu-central-1")
			w.WriteHeader(http.StatusMovedPermanently)
		},
		// The redirect target is not in the fallback list at all.
		"eu-central-1": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("found it"))
		},
		"us-east-2": func(w http.ResponseWriter, _ *http.Request) {
			westCalls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		},
	})

	payload, _, _, err := g.Fetch(context.Background(), "data", "k", FormatTabular, true)
	require.NoError(t, err)
	assert.Equal(t, "found it", string(payload))
	assert.Equal(t, int32(0), westCalls.Load(), "redirect region must be tried before fallbacks")
}

func TestFetchWalksFallbackRegions(t *testing.T) {
	g, _ := newRegionGateway(t, map[string]http.HandlerFunc{
		"us-east-1": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
		"us-east-2": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		"us-west-2": func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("third time lucky")) },
	})

	payload, _, _, err := g.Fetch(context.Background(), "data", "k", FormatTabular, true)
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", string(payload))
}

func TestFetchAggregatesAllRegionFailures(t *testing.T) {
	fail := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }
	g, _ := newRegionGateway(t, map[string]http.HandlerFunc{
		"us-east-1": fail, "us-east-2": fail, "us-west-2": fail,
	})

	_, _, _, err := g.Fetch(context.Background(), "data", "k", FormatTabular, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all regions failed")
	assert.Contains(t, err.Error(), "us-east-1")
	assert.Contains(t, err.Error(), "us-west-2")
}

func TestFetchValidatesBucketAndKey(t *testing.T) {
	g := NewGateway("amazonaws.com", "us-east-1", nil)

	_, _, _, err := g.Fetch(context.Background(), "", "k", FormatTabular, true)
	require.Error(t, err)
	_, _, _, err = g.Fetch(context.Background(), "b", "  ", FormatTabular, true)
	require.Error(t, err)
}

func TestFetchPopulatesAndUsesCache(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(8, time.Minute)
	g, _ := newRegionGateway(t, map[string]http.HandlerFunc{
		"us-east-1": func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte("payload"))
		},
	}, WithCache(cache))

	_, _, cached, err := g.Fetch(context.Background(), "b", "k", FormatTabular, true)
	require.NoError(t, err)
	assert.False(t, cached)

	_, _, cached, err = g.Fetch(context.Background(), "b", "k", FormatTabular, true)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, int32(1), calls.Load())

	// Bypass flag forces a refetch.
	_, _, cached, err = g.Fetch(context.Background(), "b", "k", FormatTabular, false)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int32(2), calls.Load())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatTabular, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatFeatureCollection, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}
