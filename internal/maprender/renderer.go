// Package maprender defines the command surface a map renderer exposes to
// the resolver and overlay manager, plus a headless in-process
// implementation used by the CLI and tests. Callers only issue commands
// against the viewport; they never read renderer internals directly.
package maprender

import (
	"github.com/movewise/opportunity-cli/internal/feature"
)

// Point is a [lon, lat] coordinate.
type Point struct {
	Lon float64
	Lat float64
}

// Layer describes one styled rendering layer bound to a source.
type Layer struct {
	ID     string
	Source string
	Type   string // "fill" or "line"
	Paint  map[string]any
}

// Renderer is the viewport command interface. Implementations own the
// viewport state exclusively.
type Renderer interface {
	// Ready reports whether the style has loaded and commands will stick.
	Ready() bool

	// EaseTo animates the viewport to a new center and zoom. Completion is
	// signaled through move-end listeners, never synchronously.
	EaseTo(center Point, zoom float64)

	// OnMoveEnd registers a listener for move completion and returns its
	// removal function. Listeners must be detached on teardown.
	OnMoveEnd(fn func()) (remove func())

	AddSource(id string, fc *feature.Collection) error
	RemoveSource(id string)
	HasSource(id string) bool

	AddLayer(layer Layer) error
	RemoveLayer(id string)
	HasLayer(id string) bool

	// MoveLayerToTop re-orders a layer above every other layer.
	MoveLayerToTop(id string)

	// QueryRenderedFeatures returns the features painted at a coordinate,
	// topmost layer first, optionally restricted to the given layer IDs.
	QueryRenderedFeatures(p Point, layerIDs ...string) []*feature.Feature
}
