package enrich

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movewise/opportunity-cli/internal/dataset"
	"github.com/movewise/opportunity-cli/internal/feature"
)

const tractFixture = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"STATEFP":"29","COUNTYFP":"165","TRACTCE":"030210"},"geometry":{"type":"Polygon","coordinates":[[[-94.7,39.1],[-94.6,39.1],[-94.6,39.2],[-94.7,39.2],[-94.7,39.1]]]}},
{"type":"Feature","properties":{"GEOID":"29095008900"},"geometry":{"type":"Polygon","coordinates":[[[-94.6,39.0],[-94.5,39.0],[-94.5,39.1],[-94.6,39.1],[-94.6,39.0]]]}},
{"type":"Feature","properties":{"GEOID":"29510124600"},"geometry":{"type":"Polygon","coordinates":[[[-90.3,38.6],[-90.2,38.6],[-90.2,38.7],[-90.3,38.7],[-90.3,38.6]]]}}
]}`

func newTestEnricher(t *testing.T) *Enricher {
	t.Helper()
	e, err := NewEnricher(DefaultConfig(), WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)
	return e
}

func loadFixture(t *testing.T) *feature.Collection {
	t.Helper()
	fc, err := feature.ParseCollection([]byte(tractFixture))
	require.NoError(t, err)
	return fc
}

func metricIndex(t *testing.T, csv string) MetricIndex {
	t.Helper()
	table, err := dataset.ParseTable(strings.NewReader(csv))
	require.NoError(t, err)
	return BuildIndex(table, "tract", "income")
}

func TestEnrichJoinsMetricOntoFeatures(t *testing.T) {
	e := newTestEnricher(t)
	fc := loadFixture(t)
	index := metricIndex(t, "tract,income\n29165030210,105732\n29095008900,41500\n")

	res := e.Enrich(fc, index)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 1, res.Synthesized)
	assert.Equal(t, 0, res.Skipped)

	// Structured triple beats any other key.
	assert.Equal(t, "29165030210", fc.Features[0].Properties[TractIDProperty])
	v, ok := Value(fc.Features[0])
	require.True(t, ok)
	assert.Equal(t, 105732.0, v)

	v, ok = Value(fc.Features[1])
	require.True(t, ok)
	assert.Equal(t, 41500.0, v)
}

func TestEnrichVariantsResolveSameRecord(t *testing.T) {
	// The record is stored integer-normalized with its leading zero gone.
	index := metricIndex(t, "tract,income\n9003505200,38000\n")

	for _, id := range []string{"09003505200", "9003505200"} {
		v, ok := index.Lookup(id)
		require.True(t, ok, "id %s", id)
		assert.Equal(t, 38000.0, v, "id %s", id)
	}
}

func TestEnrichPaddedRecordFoundByUnpaddedID(t *testing.T) {
	index := metricIndex(t, "tract,income\n09003505200,38000\n")

	v, ok := index.Lookup("9003505200")
	require.True(t, ok)
	assert.Equal(t, 38000.0, v)
}

func TestEnrichSyntheticValueIsRegional(t *testing.T) {
	e := newTestEnricher(t)
	fc := loadFixture(t)

	// Empty index: everything synthesizes.
	res := e.Enrich(fc, MetricIndex{})
	assert.Equal(t, 0, res.Matched)
	assert.Equal(t, 3, res.Synthesized)

	for _, f := range fc.Features {
		v, ok := Value(f)
		require.True(t, ok)
		assert.GreaterOrEqual(t, v, e.Scale().Min())
		assert.LessOrEqual(t, v, e.Scale().Max())
	}
}

func TestSyntheticOutlierNudgeOccurs(t *testing.T) {
	cfg := DefaultConfig()
	e, err := NewEnricher(cfg, WithRand(rand.New(rand.NewSource(7))))
	require.NoError(t, err)

	fc := loadFixture(t)
	span := cfg.Scale.Max - cfg.Scale.Min
	var extremes int
	for i := 0; i < 200; i++ {
		v := e.syntheticValue(fc.Features[0])
		if v < cfg.Scale.Min+0.1*span || v > cfg.Scale.Max-0.1*span {
			extremes++
		}
	}
	// Roughly 15% of draws should land in the extreme tails.
	assert.Greater(t, extremes, 10)
	assert.Less(t, extremes, 90)
}

func TestEnrichSkipsFeatureWithoutIdentifier(t *testing.T) {
	e := newTestEnricher(t)
	fc := &feature.Collection{Features: []*feature.Feature{
		{Properties: map[string]any{"name": "nameless"}},
	}}

	res := e.Enrich(fc, MetricIndex{})
	assert.Equal(t, 1, res.Skipped)
	_, ok := Value(fc.Features[0])
	assert.False(t, ok)
}

func TestBuildIndexSkipsBadRows(t *testing.T) {
	index := metricIndex(t, "tract,income\n29165030210,105732\n,99\n29095008900,\n")
	_, ok := index.Lookup("29165030210")
	assert.True(t, ok)
	assert.Len(t, index, 1)
}
