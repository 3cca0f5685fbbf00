package maprender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movewise/opportunity-cli/internal/feature"
)

const sourceJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"GEOID":"29165030210"},"geometry":{"type":"Polygon","coordinates":[[[-94.5,39.2],[-94.4,39.2],[-94.4,39.3],[-94.5,39.3],[-94.5,39.2]]]}},
{"type":"Feature","properties":{"GEOID":"29095008900"},"geometry":{"type":"Polygon","coordinates":[[[-94.4,39.2],[-94.3,39.2],[-94.3,39.3],[-94.4,39.3],[-94.4,39.2]]]}}
]}`

func loadSource(t *testing.T) *feature.Collection {
	t.Helper()
	fc, err := feature.ParseCollection([]byte(sourceJSON))
	require.NoError(t, err)
	return fc
}

func TestEaseToFiresMoveEnd(t *testing.T) {
	h := NewHeadless(WithMoveDelay(0))

	done := make(chan struct{})
	remove := h.OnMoveEnd(func() { close(done) })
	defer remove()

	h.EaseTo(Point{Lon: -94.45, Lat: 39.25}, 12)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("move-end never fired")
	}
	assert.Equal(t, Point{Lon: -94.45, Lat: 39.25}, h.Center())
	assert.Equal(t, 12.0, h.Zoom())
}

func TestRemovedListenerDoesNotFire(t *testing.T) {
	h := NewHeadless(WithMoveDelay(0))

	fired := make(chan struct{}, 2)
	remove := h.OnMoveEnd(func() { fired <- struct{}{} })
	remove()

	done := make(chan struct{})
	removeSecond := h.OnMoveEnd(func() { close(done) })
	defer removeSecond()

	h.EaseTo(Point{}, 10)
	<-done
	assert.Empty(t, fired)
}

func TestLayerLifecycle(t *testing.T) {
	h := NewHeadless()
	require.NoError(t, h.AddSource("tracts", loadSource(t)))

	require.NoError(t, h.AddLayer(Layer{ID: "tracts-fill", Source: "tracts", Type: "fill"}))
	assert.True(t, h.HasLayer("tracts-fill"))

	// Duplicate layer ids and dangling sources are rejected.
	require.Error(t, h.AddLayer(Layer{ID: "tracts-fill", Source: "tracts"}))
	require.Error(t, h.AddLayer(Layer{ID: "orphan", Source: "missing"}))

	h.RemoveLayer("tracts-fill")
	assert.False(t, h.HasLayer("tracts-fill"))
	h.RemoveLayer("tracts-fill") // no-op
}

func TestMoveLayerToTop(t *testing.T) {
	h := NewHeadless()
	require.NoError(t, h.AddSource("tracts", loadSource(t)))
	require.NoError(t, h.AddLayer(Layer{ID: "a", Source: "tracts"}))
	require.NoError(t, h.AddLayer(Layer{ID: "b", Source: "tracts"}))
	require.NoError(t, h.AddLayer(Layer{ID: "c", Source: "tracts"}))

	h.MoveLayerToTop("a")
	assert.Equal(t, []string{"b", "c", "a"}, h.LayerOrder())

	h.MoveLayerToTop("unknown") // logged, ignored
	assert.Equal(t, []string{"b", "c", "a"}, h.LayerOrder())
}

func TestQueryRenderedFeatures(t *testing.T) {
	h := NewHeadless()
	require.NoError(t, h.AddSource("tracts", loadSource(t)))
	require.NoError(t, h.AddLayer(Layer{ID: "tracts-fill", Source: "tracts", Type: "fill"}))

	hits := h.QueryRenderedFeatures(Point{Lon: -94.45, Lat: 39.25})
	require.Len(t, hits, 1)
	assert.Equal(t, "29165030210", hits[0].TractID)

	// Restricting to an absent layer yields nothing.
	assert.Empty(t, h.QueryRenderedFeatures(Point{Lon: -94.45, Lat: 39.25}, "other-layer"))
	// A point outside every polygon yields nothing.
	assert.Empty(t, h.QueryRenderedFeatures(Point{Lon: -90.0, Lat: 30.0}))
}

func TestNotReadyRejectsCommands(t *testing.T) {
	h := NewHeadless(WithNotReady())

	require.Error(t, h.AddSource("tracts", loadSource(t)))
	assert.False(t, h.Ready())

	h.SetReady(true)
	require.NoError(t, h.AddSource("tracts", loadSource(t)))
}
