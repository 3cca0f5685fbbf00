// Package feature models the geographic feature collection the engine
// renders and matches against: census tract polygons with a mutable
// property bag.
package feature

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// Feature is one geographic area: a polygon or multi-polygon boundary plus
// provider properties. TractID is set during enrichment once the canonical
// identifier has been derived; Properties are read-only after enrichment.
type Feature struct {
	TractID    string
	Geometry   geom.T
	Properties map[string]any
}

// Collection is an ordered set of features from one provider dataset.
type Collection struct {
	Features []*Feature
}

// ParseCollection decodes a GeoJSON feature collection. Features with a
// missing or non-areal geometry are skipped with a warning rather than
// failing the whole dataset.
func ParseCollection(data []byte) (*Collection, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "feature: decode collection")
	}

	col := &Collection{Features: make([]*Feature, 0, len(fc.Features))}
	var skipped int
	for _, raw := range fc.Features {
		if raw == nil || raw.Geometry == nil {
			skipped++
			continue
		}
		switch raw.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
		default:
			skipped++
			continue
		}
		props := raw.Properties
		if props == nil {
			props = map[string]any{}
		}
		col.Features = append(col.Features, &Feature{
			Geometry:   raw.Geometry,
			Properties: props,
		})
	}

	if skipped > 0 {
		zap.L().Warn("feature: skipped features without usable geometry",
			zap.Int("skipped", skipped),
			zap.Int("kept", len(col.Features)),
		)
	}
	return col, nil
}

// Bounds returns the axis-aligned bounding box of the feature geometry.
func (f *Feature) Bounds() *geom.Bounds {
	if f.Geometry == nil {
		return nil
	}
	return f.Geometry.Bounds()
}

// HasGeometry reports whether the feature carries an areal geometry with at
// least one non-empty ring.
func (f *Feature) HasGeometry() bool {
	switch g := f.Geometry.(type) {
	case *geom.Polygon:
		return g.NumLinearRings() > 0 && g.LinearRing(0).NumCoords() >= 3
	case *geom.MultiPolygon:
		return g.NumPolygons() > 0 && g.Polygon(0).NumLinearRings() > 0
	default:
		return false
	}
}

// ContainsPoint reports whether the point lies inside the feature boundary.
// A point inside a hole ring does not count as contained.
func (f *Feature) ContainsPoint(lng, lat float64) bool {
	p := geom.Coord{lng, lat}
	switch g := f.Geometry.(type) {
	case *geom.Polygon:
		return polygonContains(g, p)
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			if polygonContains(g.Polygon(i), p) {
				return true
			}
		}
	}
	return false
}

func polygonContains(g *geom.Polygon, p geom.Coord) bool {
	if g.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(g.Layout(), p, g.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < g.NumLinearRings(); i++ {
		if xy.IsPointInRing(g.Layout(), p, g.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// MarshalGeoJSON encodes the feature back to a GeoJSON feature, carrying the
// current property bag. Used by the overlay manager and the CLI output.
func (f *Feature) MarshalGeoJSON() ([]byte, error) {
	gf := geojson.Feature{Geometry: f.Geometry, Properties: f.Properties}
	data, err := gf.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "feature: encode geojson")
	}
	return data, nil
}
