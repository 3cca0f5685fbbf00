package maprender

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/feature"
)

// Headless is an in-process Renderer. It keeps real viewport and layer
// state and answers rendered-feature queries by point-in-polygon tests
// against its sources, so spatial code paths behave as they would against
// a tile renderer.
type Headless struct {
	mu        sync.Mutex
	ready     bool
	center    Point
	zoom      float64
	sources   map[string]*feature.Collection
	layers    map[string]Layer
	order     []string // bottom to top
	listeners map[int]func()
	nextID    int

	moveDelay time.Duration
}

// HeadlessOption configures a Headless renderer.
type HeadlessOption func(*Headless)

// WithMoveDelay sets how long a programmatic move takes before move-end
// fires. Tests use zero.
func WithMoveDelay(d time.Duration) HeadlessOption {
	return func(h *Headless) { h.moveDelay = d }
}

// WithNotReady starts the renderer in a not-ready state.
func WithNotReady() HeadlessOption {
	return func(h *Headless) { h.ready = false }
}

// NewHeadless creates a ready Headless renderer.
func NewHeadless(opts ...HeadlessOption) *Headless {
	h := &Headless{
		ready:     true,
		sources:   make(map[string]*feature.Collection),
		layers:    make(map[string]Layer),
		listeners: make(map[int]func()),
		moveDelay: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Ready reports whether commands will stick.
func (h *Headless) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// SetReady flips readiness; used to simulate style load completing.
func (h *Headless) SetReady(ready bool) {
	h.mu.Lock()
	h.ready = ready
	h.mu.Unlock()
}

// Center returns the current viewport center.
func (h *Headless) Center() Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.center
}

// Zoom returns the current viewport zoom.
func (h *Headless) Zoom() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.zoom
}

// EaseTo starts an asynchronous move. The viewport updates and move-end
// listeners fire after the configured delay, mirroring animated easing.
func (h *Headless) EaseTo(center Point, zoom float64) {
	go func() {
		if h.moveDelay > 0 {
			time.Sleep(h.moveDelay)
		}
		h.mu.Lock()
		h.center = center
		h.zoom = zoom
		fns := make([]func(), 0, len(h.listeners))
		for _, fn := range h.listeners {
			fns = append(fns, fn)
		}
		h.mu.Unlock()

		for _, fn := range fns {
			fn()
		}
	}()
}

// OnMoveEnd registers a move completion listener.
func (h *Headless) OnMoveEnd(fn func()) (remove func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// AddSource registers a feature collection under an id.
func (h *Headless) AddSource(id string, fc *feature.Collection) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return eris.Errorf("maprender: renderer not ready for source %s", id)
	}
	h.sources[id] = fc
	return nil
}

// RemoveSource drops a source. Removing an absent source is a no-op.
func (h *Headless) RemoveSource(id string) {
	h.mu.Lock()
	delete(h.sources, id)
	h.mu.Unlock()
}

// HasSource reports whether a source id is registered.
func (h *Headless) HasSource(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sources[id]
	return ok
}

// AddLayer appends a layer at the top of the draw order. The layer's
// source must exist.
func (h *Headless) AddLayer(layer Layer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return eris.Errorf("maprender: renderer not ready for layer %s", layer.ID)
	}
	if _, ok := h.sources[layer.Source]; !ok {
		return eris.Errorf("maprender: layer %s references missing source %s", layer.ID, layer.Source)
	}
	if _, ok := h.layers[layer.ID]; ok {
		return eris.Errorf("maprender: layer %s already exists", layer.ID)
	}
	h.layers[layer.ID] = layer
	h.order = append(h.order, layer.ID)
	return nil
}

// RemoveLayer drops a layer. Removing an absent layer is a no-op.
func (h *Headless) RemoveLayer(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.layers[id]; !ok {
		return
	}
	delete(h.layers, id)
	for i, lid := range h.order {
		if lid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// HasLayer reports whether a layer id is present.
func (h *Headless) HasLayer(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.layers[id]
	return ok
}

// MoveLayerToTop re-orders a layer above all others. Unknown ids are
// logged and ignored.
func (h *Headless) MoveLayerToTop(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.layers[id]; !ok {
		zap.L().Warn("maprender: move-to-top on unknown layer", zap.String("layer", id))
		return
	}
	for i, lid := range h.order {
		if lid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.order = append(h.order, id)
}

// LayerOrder returns the draw order, bottom to top.
func (h *Headless) LayerOrder() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// QueryRenderedFeatures walks layers top-down and returns the features
// whose geometry contains the point.
func (h *Headless) QueryRenderedFeatures(p Point, layerIDs ...string) []*feature.Feature {
	h.mu.Lock()
	defer h.mu.Unlock()

	wanted := make(map[string]bool, len(layerIDs))
	for _, id := range layerIDs {
		wanted[id] = true
	}

	var out []*feature.Feature
	for i := len(h.order) - 1; i >= 0; i-- {
		layer := h.layers[h.order[i]]
		if len(wanted) > 0 && !wanted[layer.ID] {
			continue
		}
		src, ok := h.sources[layer.Source]
		if !ok {
			continue
		}
		for _, f := range src.Features {
			if f.HasGeometry() && f.ContainsPoint(p.Lon, p.Lat) {
				out = append(out, f)
			}
		}
	}
	return out
}
