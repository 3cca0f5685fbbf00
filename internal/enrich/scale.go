package enrich

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// RGB is a color in 8-bit channels.
type RGB struct {
	R, G, B uint8
}

// Hex renders the color as a lowercase "#rrggbb" string.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ColorScale interpolates colors across fixed (value, color) control
// points.
type ColorScale struct {
	min, max float64
	values   []float64
	colors   []RGB
}

// NewColorScale builds a scale from config control points.
func NewColorScale(cfg ScaleConfig) (*ColorScale, error) {
	s := &ColorScale{
		min:    cfg.Min,
		max:    cfg.Max,
		values: make([]float64, len(cfg.Stops)),
		colors: make([]RGB, len(cfg.Stops)),
	}
	for i, stop := range cfg.Stops {
		c, err := parseHexColor(stop.Color)
		if err != nil {
			return nil, eris.Wrapf(err, "enrich: stop %d", i)
		}
		s.values[i] = stop.Value
		s.colors[i] = c
	}
	return s, nil
}

// Min returns the bottom of the display range.
func (s *ColorScale) Min() float64 { return s.min }

// Max returns the top of the display range.
func (s *ColorScale) Max() float64 { return s.max }

// Clamp bounds a value to the display range.
func (s *ColorScale) Clamp(value float64) float64 {
	if value < s.min {
		return s.min
	}
	if value > s.max {
		return s.max
	}
	return value
}

// ColorFor maps a metric value to its interpolated color. Values at or
// beyond the range edges take the first or last control point exactly.
func (s *ColorScale) ColorFor(value float64) RGB {
	value = s.Clamp(value)
	if value <= s.values[0] {
		return s.colors[0]
	}
	last := len(s.values) - 1
	if value >= s.values[last] {
		return s.colors[last]
	}

	// Find the segment [i, i+1] containing the value.
	i := 0
	for i < last-1 && value > s.values[i+1] {
		i++
	}
	t := (value - s.values[i]) / (s.values[i+1] - s.values[i])
	return RGB{
		R: lerpChannel(s.colors[i].R, s.colors[i+1].R, t),
		G: lerpChannel(s.colors[i].G, s.colors[i+1].G, t),
		B: lerpChannel(s.colors[i].B, s.colors[i+1].B, t),
	}
}

// Score normalizes a metric value to an integer in [0, 100] against the
// fixed display range. The fixed range, not the dataset's actual extent,
// keeps a single outlier tract from skewing every other score.
func (s *ColorScale) Score(value float64) int {
	score := int(math.Round((value - s.min) / (s.max - s.min) * 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Stops returns the control points as (value, hex) pairs in scale order,
// the shape a renderer's interpolate expression wants.
func (s *ColorScale) Stops() []Stop {
	out := make([]Stop, len(s.values))
	for i := range s.values {
		out[i] = Stop{Value: s.values[i], Color: s.colors[i].Hex()}
	}
	return out
}

func lerpChannel(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

func parseHexColor(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return RGB{}, eris.Errorf("enrich: bad hex color %q", s)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, eris.Wrapf(err, "enrich: bad hex color %q", s)
	}
	return RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}
