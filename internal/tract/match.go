// Package tract resolves a coordinate (from a geocoded address or a map
// click) to the census tract containing it, producing the selection the
// overlay and scoring consume.
package tract

import (
	"math"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/enrich"
	"github.com/movewise/opportunity-cli/internal/feature"
	"github.com/movewise/opportunity-cli/internal/maprender"
)

// Match strategy names, reported on every result so callers and tests can
// tell real matches from fabricated ones.
const (
	SourceBBox      = "bbox"
	SourceRendered  = "rendered"
	SourceSynthetic = "synthetic"
)

// bboxBuffer is the half-width in degrees of the intersection box built
// around the target point for the first match strategy.
const bboxBuffer = 0.01

// syntheticRadius is the radius in degrees of the fabricated polygon.
const syntheticRadius = 0.005

// syntheticPoints is the vertex count of the circular approximation.
const syntheticPoints = 16

// MatchResult is a matched feature plus the strategy that produced it.
type MatchResult struct {
	Feature *feature.Feature
	Source  string
}

// Synthetic reports whether the feature was fabricated rather than found.
func (m *MatchResult) Synthetic() bool {
	return m.Source == SourceSynthetic
}

// matchBBox tests a small buffer around the point against each feature's
// own bounding box and returns the first intersecting feature.
func matchBBox(fc *feature.Collection, p maprender.Point) *feature.Feature {
	box := geom.NewBounds(geom.XY)
	box.Set(p.Lon-bboxBuffer, p.Lat-bboxBuffer, p.Lon+bboxBuffer, p.Lat+bboxBuffer)

	for _, f := range fc.Features {
		if !f.HasGeometry() {
			continue
		}
		if f.Bounds().Overlaps(geom.XY, box) {
			return f
		}
	}
	return nil
}

// matchRendered asks the renderer which feature is painted at the point.
func matchRendered(r maprender.Renderer, p maprender.Point, layerIDs []string) *feature.Feature {
	hits := r.QueryRenderedFeatures(p, layerIDs...)
	if len(hits) == 0 {
		return nil
	}
	return hits[0]
}

// syntheticFeature fabricates a small circular polygon centered on the
// point with a fixed mid-range metric value, so the UI always has a
// feature to highlight and score.
func syntheticFeature(p maprender.Point, value float64) *feature.Feature {
	coords := make([]geom.Coord, 0, syntheticPoints+1)
	for i := 0; i < syntheticPoints; i++ {
		angle := 2 * math.Pi * float64(i) / syntheticPoints
		coords = append(coords, geom.Coord{
			p.Lon + syntheticRadius*math.Cos(angle),
			p.Lat + syntheticRadius*math.Sin(angle),
		})
	}
	coords = append(coords, coords[0])

	poly := geom.NewPolygon(geom.XY)
	poly.MustSetCoords([][]geom.Coord{coords})

	return &feature.Feature{
		Geometry: poly,
		Properties: map[string]any{
			enrich.ValueProperty:   value,
			enrich.TractIDProperty: "",
		},
	}
}

// match runs the three strategies in order, each only when the previous
// yields nothing. It never fails; the synthetic tier always produces a
// feature.
func match(fc *feature.Collection, r maprender.Renderer, p maprender.Point, layerIDs []string, midValue float64) *MatchResult {
	if fc != nil {
		if f := matchBBox(fc, p); f != nil {
			return &MatchResult{Feature: f, Source: SourceBBox}
		}
	}
	if f := matchRendered(r, p, layerIDs); f != nil {
		return &MatchResult{Feature: f, Source: SourceRendered}
	}

	zap.L().Info("tract: no feature matched, fabricating synthetic polygon",
		zap.Float64("lon", p.Lon),
		zap.Float64("lat", p.Lat),
	)
	return &MatchResult{Feature: syntheticFeature(p, midValue), Source: SourceSynthetic}
}
