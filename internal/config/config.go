package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Map     MapConfig     `yaml:"map" mapstructure:"map"`
	Bounds  BoundsConfig  `yaml:"bounds" mapstructure:"bounds"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// MapConfig configures the click dispatcher and camera behavior.
type MapConfig struct {
	DebounceMs        int      `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	HitTolerancePx    float64  `yaml:"hit_tolerance_px" mapstructure:"hit_tolerance_px"`
	MinZoom           float64  `yaml:"min_zoom" mapstructure:"min_zoom"`
	ZoomStep          float64  `yaml:"zoom_step" mapstructure:"zoom_step"`
	FlyDurationMs     int      `yaml:"fly_duration_ms" mapstructure:"fly_duration_ms"`
	InteractiveLayers []string `yaml:"interactive_layers" mapstructure:"interactive_layers"`
}

// DebounceWindow returns the debounce threshold as a duration.
func (m MapConfig) DebounceWindow() time.Duration {
	return time.Duration(m.DebounceMs) * time.Millisecond
}

// FlyDuration returns the camera animation duration.
func (m MapConfig) FlyDuration() time.Duration {
	return time.Duration(m.FlyDurationMs) * time.Millisecond
}

// BoundsConfig configures the service-area containment check.
type BoundsConfig struct {
	MinLat      float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MinLng      float64 `yaml:"min_lng" mapstructure:"min_lng"`
	MaxLat      float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MaxLng      float64 `yaml:"max_lng" mapstructure:"max_lng"`
	GeoJSONPath string  `yaml:"geojson_path" mapstructure:"geojson_path"`
}

// GeocodeConfig configures the reverse geocoding providers.
type GeocodeConfig struct {
	NominatimURL  string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	GoogleAPIKey  string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("MAPKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("map.debounce_ms", 100)
	v.SetDefault("map.hit_tolerance_px", 20)
	v.SetDefault("map.min_zoom", 15)
	v.SetDefault("map.zoom_step", 2)
	v.SetDefault("map.fly_duration_ms", 1200)
	v.SetDefault("map.interactive_layers", []string{
		"pin-points", "pin-labels", "area-fill", "area-outline",
	})
	// Minnesota service area, with a margin for border towns.
	v.SetDefault("bounds.min_lat", 43.2)
	v.SetDefault("bounds.min_lng", -97.5)
	v.SetDefault("bounds.max_lat", 49.7)
	v.SetDefault("bounds.max_lng", -89.0)
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "mapkit/1.0 (hello@loveofmn.com)")
	v.SetDefault("geocode.rate_limit", 1)
	v.SetDefault("geocode.cache_ttl_hours", 720)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mapkit.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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
