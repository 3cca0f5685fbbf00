package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultScale(t *testing.T) *ColorScale {
	t.Helper()
	s, err := NewColorScale(DefaultConfig().Scale)
	require.NoError(t, err)
	return s
}

func TestColorForRangeEdgesExact(t *testing.T) {
	cfg := DefaultConfig()
	s := defaultScale(t)

	first := cfg.Scale.Stops[0]
	last := cfg.Scale.Stops[len(cfg.Scale.Stops)-1]

	assert.Equal(t, first.Color, s.ColorFor(first.Value).Hex())
	assert.Equal(t, last.Color, s.ColorFor(last.Value).Hex())

	// Out-of-range values clamp to the edge colors.
	assert.Equal(t, first.Color, s.ColorFor(first.Value-50000).Hex())
	assert.Equal(t, last.Color, s.ColorFor(last.Value+50000).Hex())
}

func TestColorForControlPointsExact(t *testing.T) {
	cfg := DefaultConfig()
	s := defaultScale(t)

	for _, stop := range cfg.Scale.Stops {
		assert.Equal(t, stop.Color, s.ColorFor(stop.Value).Hex(), "stop %v", stop.Value)
	}
}

func TestColorForInterpolatesBetweenStops(t *testing.T) {
	s, err := NewColorScale(ScaleConfig{
		Min: 0, Max: 100,
		Stops: []Stop{
			{Value: 0, Color: "#000000"},
			{Value: 100, Color: "#ff00ff"},
		},
	})
	require.NoError(t, err)

	mid := s.ColorFor(50)
	assert.Equal(t, RGB{R: 0x80, G: 0, B: 0x80}, mid)
}

func TestScoreNormalization(t *testing.T) {
	s := defaultScale(t)

	// Value above the range clamps to 100.
	assert.Equal(t, 100, s.Score(105732))
	assert.Equal(t, 0, s.Score(20000))
	assert.Equal(t, 100, s.Score(55500))
	assert.Equal(t, 0, s.Score(5000))

	mid := s.Score((20000 + 55500) / 2)
	assert.Equal(t, 50, mid)
}

func TestParseHexColorRejectsJunk(t *testing.T) {
	_, err := parseHexColor("#12345")
	require.Error(t, err)
	_, err = parseHexColor("zzzzzz")
	require.Error(t, err)

	c, err := parseHexColor(" #A50026 ")
	require.NoError(t, err)
	assert.Equal(t, "#a50026", c.Hex())
}

func TestConfigValidation(t *testing.T) {
	_, err := parseConfig([]byte("scale:\n  min: 10\n  max: 5\n  stops:\n    - {value: 1, color: '#000000'}\n    - {value: 2, color: '#ffffff'}\n"))
	require.Error(t, err)

	_, err = parseConfig([]byte("scale:\n  min: 0\n  max: 10\n  stops:\n    - {value: 2, color: '#000000'}\n    - {value: 1, color: '#ffffff'}\n"))
	require.Error(t, err)

	_, err = parseConfig([]byte("scale:\n  min: 0\n  max: 10\n  stops:\n    - {value: 1, color: '#000000'}\n"))
	require.Error(t, err)
}
