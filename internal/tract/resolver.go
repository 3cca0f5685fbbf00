package tract

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/dataset"
	"github.com/movewise/opportunity-cli/internal/enrich"
	"github.com/movewise/opportunity-cli/internal/feature"
	"github.com/movewise/opportunity-cli/internal/geocode"
	"github.com/movewise/opportunity-cli/internal/maprender"
)

// State is a resolver lifecycle phase.
type State string

const (
	StateIdle             State = "idle"
	StateGeocoding        State = "geocoding"
	StateAwaitingViewport State = "awaiting-viewport"
	StateMatching         State = "matching"
	StateResolved         State = "resolved"
	StateFailed           State = "failed"
)

// renderSettleDelay is how long to wait after move-end before querying
// rendered features. The renderer's source-feature query is not guaranteed
// complete for freshly rendered tiles the moment move-end fires.
const renderSettleDelay = 500 * time.Millisecond

// defaultMoveTimeout bounds the move-end wait so matching always proceeds
// even if the event never fires.
const defaultMoveTimeout = 5 * time.Second

const defaultZoom = 12

// ErrNoLocation is the terminal geocoding-miss failure.
var ErrNoLocation = eris.New("tract: no location found")

// ErrSuperseded is returned to an invocation overtaken by a newer one.
// The newer invocation owns the selection; the stale one must not touch it.
var ErrSuperseded = eris.New("tract: resolution superseded")

// SelectionState is the single active selection. It is replaced wholesale
// on each new selection, never merged.
type SelectionState struct {
	ID         string     `json:"id"`
	TractID    string     `json:"tractId"`
	Score      int        `json:"score"`
	SubFactors SubFactors `json:"subFactors"`
	Label      string     `json:"label"`
	Source     string     `json:"source"`
}

// Resolver drives the address-to-tract state machine. Concurrent
// invocations race by design; a generation token makes the newest one win
// and turns the rest into no-ops.
type Resolver struct {
	geocoder geocode.Client
	data     *dataset.Cache
	renderer maprender.Renderer
	scale    *enrich.ColorScale

	bucket    string
	tractsKey string
	layerIDs  []string

	zoom        float64
	settleDelay time.Duration
	moveTimeout time.Duration
	rng         *rand.Rand

	generation atomic.Int64

	mu        sync.Mutex
	state     State
	selection *SelectionState
}

// ResolverOption configures the Resolver.
type ResolverOption func(*Resolver)

// WithSettleDelay overrides the post-move settle delay; tests use zero.
func WithSettleDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.settleDelay = d }
}

// WithMoveTimeout overrides the bounded move-end wait.
func WithMoveTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.moveTimeout = d }
}

// WithZoom sets the zoom level used when re-centering on a geocoded point.
func WithZoom(zoom float64) ResolverOption {
	return func(r *Resolver) { r.zoom = zoom }
}

// WithLayerIDs restricts rendered-feature queries to the given layers.
func WithLayerIDs(ids ...string) ResolverOption {
	return func(r *Resolver) { r.layerIDs = ids }
}

// WithRand injects the random source for sub-factor noise.
func WithRand(rng *rand.Rand) ResolverOption {
	return func(r *Resolver) { r.rng = rng }
}

// NewResolver creates a Resolver over the given collaborators. bucket and
// tractsKey locate the enriched tract feature collection in the data cache.
func NewResolver(
	geocoder geocode.Client,
	data *dataset.Cache,
	renderer maprender.Renderer,
	scale *enrich.ColorScale,
	bucket, tractsKey string,
	opts ...ResolverOption,
) *Resolver {
	r := &Resolver{
		geocoder:    geocoder,
		data:        data,
		renderer:    renderer,
		scale:       scale,
		bucket:      bucket,
		tractsKey:   tractsKey,
		zoom:        defaultZoom,
		settleDelay: renderSettleDelay,
		moveTimeout: defaultMoveTimeout,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle phase.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Selection returns the active selection, or nil when none exists.
func (r *Resolver) Selection() *SelectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection
}

// Clear drops the selection and returns to idle; called on navigation away
// from the map. It also invalidates any in-flight resolution.
func (r *Resolver) Clear() {
	r.generation.Add(1)
	r.mu.Lock()
	r.selection = nil
	r.state = StateIdle
	r.mu.Unlock()
}

func (r *Resolver) setState(gen int64, s State) bool {
	if gen != r.generation.Load() {
		return false
	}
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	zap.L().Debug("tract: state change", zap.String("state", string(s)))
	return true
}

// ResolveAddress runs the full pipeline: geocode, re-center, settle,
// match, score. Empty or whitespace-only addresses are rejected without a
// state transition. A zero-candidate geocode is terminal; a spatial miss
// never is.
func (r *Resolver) ResolveAddress(ctx context.Context, address string) (*SelectionState, error) {
	if strings.TrimSpace(address) == "" {
		return nil, nil
	}

	gen := r.generation.Add(1)
	r.setState(gen, StateGeocoding)

	candidates, err := r.geocoder.Search(ctx, address)
	if err != nil {
		r.setState(gen, StateFailed)
		return nil, eris.Wrap(err, "tract: geocode")
	}
	if len(candidates) == 0 {
		r.setState(gen, StateFailed)
		return nil, ErrNoLocation
	}
	target := candidates[0]
	point := maprender.Point{Lon: target.Lon, Lat: target.Lat}

	if !r.setState(gen, StateAwaitingViewport) {
		return nil, ErrSuperseded
	}
	if err := r.awaitViewport(ctx, point); err != nil {
		r.setState(gen, StateFailed)
		return nil, err
	}

	return r.finish(ctx, gen, point, target.DisplayName)
}

// ResolveClick resolves a direct map click: no geocoding and no viewport
// move, straight to matching.
func (r *Resolver) ResolveClick(ctx context.Context, point maprender.Point, label string) (*SelectionState, error) {
	gen := r.generation.Add(1)
	return r.finish(ctx, gen, point, label)
}

// awaitViewport commands the re-center and blocks until move-end plus the
// settle delay, bounded by the move timeout.
func (r *Resolver) awaitViewport(ctx context.Context, point maprender.Point) error {
	moveDone := make(chan struct{}, 1)
	remove := r.renderer.OnMoveEnd(func() {
		select {
		case moveDone <- struct{}{}:
		default:
		}
	})
	defer remove()

	r.renderer.EaseTo(point, r.zoom)

	select {
	case <-moveDone:
	case <-time.After(r.moveTimeout):
		zap.L().Warn("tract: move-end never fired, proceeding", zap.Duration("timeout", r.moveTimeout))
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "tract: await viewport")
	}

	if r.settleDelay > 0 {
		select {
		case <-time.After(r.settleDelay):
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "tract: settle")
		}
	}
	return nil
}

// finish runs matching and scoring, committing the selection only if this
// invocation is still the newest.
func (r *Resolver) finish(ctx context.Context, gen int64, point maprender.Point, label string) (*SelectionState, error) {
	if !r.setState(gen, StateMatching) {
		return nil, ErrSuperseded
	}

	// A cache or fetch failure here is not terminal: the rendered query
	// and synthetic tiers still apply.
	fc, err := r.data.FeatureCollection(ctx, r.bucket, r.tractsKey, true)
	if err != nil {
		zap.L().Warn("tract: feature collection unavailable, relying on fallback tiers", zap.Error(err))
		fc = nil
	}

	midValue := (r.scale.Min() + r.scale.Max()) / 2
	result := match(fc, r.renderer, point, r.layerIDs, midValue)

	value, ok := enrich.Value(result.Feature)
	if !ok {
		zap.L().Warn("tract: matched feature missing metric value",
			zap.String("source", result.Source))
		value = midValue
	}

	tractID := featureTractID(result.Feature)
	score := r.scale.Score(value)

	r.mu.Lock()
	sub := deriveSubFactors(score, r.rng)
	r.mu.Unlock()

	selection := &SelectionState{
		ID:         uuid.New().String(),
		TractID:    tractID,
		Score:      score,
		SubFactors: sub,
		Label:      label,
		Source:     result.Source,
	}

	if gen != r.generation.Load() {
		return nil, ErrSuperseded
	}
	r.mu.Lock()
	r.selection = selection
	r.state = StateResolved
	r.mu.Unlock()

	zap.L().Info("tract: resolved",
		zap.String("tract", tractID),
		zap.Int("score", score),
		zap.String("source", result.Source),
	)
	return selection, nil
}

func featureTractID(f *feature.Feature) string {
	if v, ok := f.Properties[enrich.TractIDProperty].(string); ok && v != "" {
		return v
	}
	if id := enrich.CanonicalTractID(f.Properties); id != "" {
		return id
	}
	return f.TractID
}
