// Package overlay keeps exactly one highlight rendered for the current
// selection, replacing it atomically on every new selection.
package overlay

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/feature"
	"github.com/movewise/opportunity-cli/internal/maprender"
)

// Fixed ids for the highlight source/layer pair.
const (
	SourceID = "selection-highlight-source"
	LayerID  = "selection-highlight-layer"
)

// retryDelay is the wait before re-attempting a highlight against a
// renderer that has not finished initializing.
const retryDelay = 200 * time.Millisecond

// maxRetries bounds the not-ready retry loop.
const maxRetries = 10

// Manager owns the highlight overlay. All operations are serialized; the
// invariant is at most one highlight at any time, never zero-or-many
// mid-replacement as observed by the renderer's layer set.
type Manager struct {
	mu       sync.Mutex
	renderer maprender.Renderer
	delay    time.Duration
	paint    map[string]any
}

// Option configures the Manager.
type Option func(*Manager)

// WithRetryDelay overrides the not-ready retry delay; tests use zero.
func WithRetryDelay(d time.Duration) Option {
	return func(m *Manager) { m.delay = d }
}

// WithPaint overrides the highlight layer paint properties.
func WithPaint(paint map[string]any) Option {
	return func(m *Manager) { m.paint = paint }
}

// NewManager creates a Manager driving the given renderer.
func NewManager(renderer maprender.Renderer, opts ...Option) *Manager {
	m := &Manager{
		renderer: renderer,
		delay:    retryDelay,
		paint: map[string]any{
			"line-color": "#1d4ed8",
			"line-width": 3,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Highlight replaces the current highlight with one for f. Features
// without a usable geometry are skipped with a log line and leave the
// existing highlight in place. A not-ready renderer is retried on a fixed
// delay before giving up.
func (m *Manager) Highlight(f *feature.Feature) error {
	if f == nil || !f.HasGeometry() {
		zap.L().Warn("overlay: skipping highlight for feature without geometry")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt := 0; ; attempt++ {
		if m.renderer.Ready() {
			break
		}
		if attempt >= maxRetries {
			return eris.Errorf("overlay: renderer not ready after %d attempts", attempt)
		}
		zap.L().Debug("overlay: renderer not ready, retrying", zap.Int("attempt", attempt+1))
		time.Sleep(m.delay)
	}

	m.removeLocked()

	fc := &feature.Collection{Features: []*feature.Feature{f}}
	if err := m.renderer.AddSource(SourceID, fc); err != nil {
		return eris.Wrap(err, "overlay: add source")
	}
	if err := m.renderer.AddLayer(maprender.Layer{
		ID:     LayerID,
		Source: SourceID,
		Type:   "line",
		Paint:  m.paint,
	}); err != nil {
		m.renderer.RemoveSource(SourceID)
		return eris.Wrap(err, "overlay: add layer")
	}

	// Layers added since the last highlight may sit above it.
	m.renderer.MoveLayerToTop(LayerID)
	return nil
}

// Raise re-asserts the highlight's top z-order; call after adding other
// layers.
func (m *Manager) Raise() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renderer.HasLayer(LayerID) {
		m.renderer.MoveLayerToTop(LayerID)
	}
}

// Clear removes the highlight if present.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked()
}

// Active reports whether a highlight is currently rendered.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renderer.HasLayer(LayerID)
}

func (m *Manager) removeLocked() {
	m.renderer.RemoveLayer(LayerID)
	m.renderer.RemoveSource(SourceID)
}
