// Package enrich joins the tabular opportunity metric onto the tract
// feature collection and maps metric values to choropleth colors.
package enrich

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed bands.yaml
var defaultConfigYAML []byte

// Config holds the color scale and the synthetic-value band table.
type Config struct {
	Scale         ScaleConfig  `yaml:"scale"`
	Regions       []RegionBand `yaml:"regions"`
	DefaultBand   Band         `yaml:"default_band"`
	OutlierChance float64      `yaml:"outlier_chance"`
}

// ScaleConfig is the fixed display range and its color control points.
type ScaleConfig struct {
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Stops []Stop  `yaml:"stops"`
}

// Stop is one (value, color) control point.
type Stop struct {
	Value float64 `yaml:"value"`
	Color string  `yaml:"color"`
}

// RegionBand is a coordinate bounding box with the value band used when
// synthesizing a metric inside it.
type RegionBand struct {
	Name   string  `yaml:"name"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	Band   `yaml:",inline"`
}

// Band is an inclusive value range.
type Band struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

func (r RegionBand) contains(lon, lat float64) bool {
	return lon >= r.MinLon && lon <= r.MaxLon && lat >= r.MinLat && lat <= r.MaxLat
}

// DefaultConfig returns the built-in scale and band table.
func DefaultConfig() *Config {
	cfg, err := parseConfig(defaultConfigYAML)
	if err != nil {
		// The embedded file is validated by tests; failing here means a
		// broken build, not a runtime condition.
		panic(err)
	}
	return cfg
}

// LoadConfig reads a scale/band configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read config %s", path)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "enrich: parse config")
	}
	if len(cfg.Scale.Stops) < 2 {
		return nil, eris.New("enrich: scale needs at least two color stops")
	}
	if cfg.Scale.Max <= cfg.Scale.Min {
		return nil, eris.Errorf("enrich: invalid display range [%v, %v]", cfg.Scale.Min, cfg.Scale.Max)
	}
	for i := 1; i < len(cfg.Scale.Stops); i++ {
		if cfg.Scale.Stops[i].Value <= cfg.Scale.Stops[i-1].Value {
			return nil, eris.Errorf("enrich: color stops must be strictly increasing at index %d", i)
		}
	}
	return &cfg, nil
}
