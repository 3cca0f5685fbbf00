package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	ObjectStore ObjectStoreConfig `yaml:"object_store" mapstructure:"object_store"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Geocode     GeocodeConfig     `yaml:"geocode" mapstructure:"geocode"`
	Datasets    DatasetsConfig    `yaml:"datasets" mapstructure:"datasets"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the geocode-cache database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ObjectStoreConfig configures the remote dataset bucket gateway.
// Endpoint is the base domain of the S3-compatible store; object URLs are
// built as https://<bucket>.s3.<region>.<endpoint>/<key>.
type ObjectStoreConfig struct {
	Endpoint        string   `yaml:"endpoint" mapstructure:"endpoint"`
	PreferredRegion string   `yaml:"preferred_region" mapstructure:"preferred_region"`
	FallbackRegions []string `yaml:"fallback_regions" mapstructure:"fallback_regions"`
	CacheTTLSecs    int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	CacheMaxEntries int      `yaml:"cache_max_entries" mapstructure:"cache_max_entries"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig configures the client-side dataset cache.
type CacheConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// GeocodeConfig configures the forward geocoding client.
type GeocodeConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	CountryCodes string  `yaml:"country_codes" mapstructure:"country_codes"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CacheTTLDays int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// DatasetsConfig names the reference datasets the engine loads.
type DatasetsConfig struct {
	Bucket     string `yaml:"bucket" mapstructure:"bucket"`
	TractsKey  string `yaml:"tracts_key" mapstructure:"tracts_key"`
	MetricsKey string `yaml:"metrics_key" mapstructure:"metrics_key"`
}

// AnthropicConfig holds the recommendation proxy model settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MOVEWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "movewise.db")
	v.SetDefault("object_store.endpoint", "amazonaws.com")
	v.SetDefault("object_store.preferred_region", "us-east-1")
	v.SetDefault("object_store.fallback_regions", []string{"us-east-2", "us-west-2", "eu-west-1"})
	v.SetDefault("object_store.cache_ttl_secs", 300)
	v.SetDefault("object_store.cache_max_entries", 256)
	v.SetDefault("object_store.timeout_secs", 30)
	v.SetDefault("cache.dir", ".movewise-cache")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.country_codes", "us")
	v.SetDefault("geocode.rate_limit", 1)
	v.SetDefault("geocode.cache_ttl_days", 30)
	v.SetDefault("geocode.user_agent", "opportunity-cli/1.0")
	v.SetDefault("datasets.bucket", "movewise-data")
	v.SetDefault("datasets.tracts_key", "tracts/mo_census_tracts.geojson")
	v.SetDefault("datasets.metrics_key", "metrics/tract_household_income.csv")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
