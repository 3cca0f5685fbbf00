package enrich

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/dataset"
	"github.com/movewise/opportunity-cli/internal/feature"
)

// Property keys written onto each feature during enrichment.
const (
	ValueProperty   = "value"
	TractIDProperty = "tractId"
)

// Enricher joins a metric table onto a feature collection and synthesizes
// regionally coherent values for tracts with no record.
type Enricher struct {
	cfg   *Config
	scale *ColorScale
	rng   *rand.Rand
}

// Option configures the Enricher.
type Option func(*Enricher)

// WithRand injects the random source used for synthetic values.
func WithRand(rng *rand.Rand) Option {
	return func(e *Enricher) { e.rng = rng }
}

// NewEnricher builds an Enricher from config. Returns an error only when
// the color stops are malformed.
func NewEnricher(cfg *Config, opts ...Option) (*Enricher, error) {
	scale, err := NewColorScale(cfg.Scale)
	if err != nil {
		return nil, err
	}
	e := &Enricher{
		cfg:   cfg,
		scale: scale,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Scale exposes the color scale for rendering and scoring.
func (e *Enricher) Scale() *ColorScale { return e.scale }

// Result summarizes one enrichment pass.
type Result struct {
	Matched     int
	Synthesized int
	Skipped     int
}

// MetricIndex is a metric table keyed for variant-tolerant tract lookup.
type MetricIndex map[string]float64

// BuildIndex indexes the metric table by every identifier variant of the
// id column, so any variant of a feature's identifier finds the record.
// Rows missing either column are logged and skipped.
func BuildIndex(table *dataset.Table, idColumn, valueColumn string) MetricIndex {
	index := make(MetricIndex, len(table.Rows))
	for i := range table.Rows {
		id := table.String(i, idColumn)
		value, ok := table.Float(i, valueColumn)
		if id == "" || !ok {
			zap.L().Warn("enrich: metric row missing id or value",
				zap.Int("row", i),
				zap.String("id_column", idColumn),
				zap.String("value_column", valueColumn),
			)
			continue
		}
		for _, variant := range Variants(id) {
			if _, exists := index[variant]; !exists {
				index[variant] = value
			}
		}
	}
	return index
}

// Lookup finds the metric for a tract identifier, trying as-is, padded,
// and integer-normalized forms in order.
func (idx MetricIndex) Lookup(id string) (float64, bool) {
	for _, variant := range Variants(id) {
		if value, ok := idx[variant]; ok {
			return value, true
		}
	}
	return 0, false
}

// Enrich writes a metric value and canonical tract id onto every feature's
// property bag. Features with no metric record get a synthesized value;
// that path is logged per feature so callers can tell real from synthetic.
func (e *Enricher) Enrich(fc *feature.Collection, index MetricIndex) Result {
	var res Result
	for _, f := range fc.Features {
		id := CanonicalTractID(f.Properties)
		if id == "" {
			id = f.TractID
		}
		if id == "" {
			res.Skipped++
			zap.L().Warn("enrich: feature has no tract identifier")
			continue
		}

		value, ok := index.Lookup(id)
		if ok {
			res.Matched++
		} else {
			value = e.syntheticValue(f)
			res.Synthesized++
			zap.L().Debug("enrich: synthesized metric value",
				zap.String("tract", id),
				zap.Float64("value", value),
			)
		}

		if f.Properties == nil {
			f.Properties = make(map[string]any, 2)
		}
		f.Properties[ValueProperty] = value
		f.Properties[TractIDProperty] = id
	}

	zap.L().Info("enrich: pass complete",
		zap.Int("matched", res.Matched),
		zap.Int("synthesized", res.Synthesized),
		zap.Int("skipped", res.Skipped),
	)
	return res
}

// Value reads the enriched metric back off a feature.
func Value(f *feature.Feature) (float64, bool) {
	v, ok := f.Properties[ValueProperty]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// syntheticValue picks a plausible metric for an unmatched feature: a
// uniform draw from the band of the first region containing the feature's
// center, with a small chance of an extreme nudge toward either end of the
// display range so synthetic areas are not visually flat.
func (e *Enricher) syntheticValue(f *feature.Feature) float64 {
	band := e.cfg.DefaultBand
	if f.HasGeometry() {
		bounds := f.Bounds()
		lon := (bounds.Min(0) + bounds.Max(0)) / 2
		lat := (bounds.Min(1) + bounds.Max(1)) / 2
		for _, region := range e.cfg.Regions {
			if region.contains(lon, lat) {
				band = region.Band
				break
			}
		}
	}

	if e.rng.Float64() < e.cfg.OutlierChance {
		span := e.scale.Max() - e.scale.Min()
		if e.rng.Intn(2) == 0 {
			return e.scale.Min() + e.rng.Float64()*0.1*span
		}
		return e.scale.Max() - e.rng.Float64()*0.1*span
	}

	return band.Low + e.rng.Float64()*(band.High-band.Low)
}
