// Package config loads orbtrack's configuration from defaults, an optional
// file and ORBTRACK_-prefixed environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/orbtrack/internal/catalog"
	"github.com/star/orbtrack/internal/transform"
)

// EnvPrefix prefixes every environment override, e.g. ORBTRACK_HTTP_ADDR.
const EnvPrefix = "ORBTRACK"

// Config is the full process configuration.
type Config struct {
	LogLevel      string          `mapstructure:"log_level"`
	HTTP          HTTPConfig      `mapstructure:"http"`
	Cache         CacheConfig     `mapstructure:"cache"`
	Catalog       CatalogConfig   `mapstructure:"catalog"`
	Groups        []catalog.Group `mapstructure:"groups"`
	GroundStation StationConfig   `mapstructure:"ground_station"`
	Auth          AuthConfig      `mapstructure:"auth"`
	Tracing       TracingConfig   `mapstructure:"tracing"`
	Stream        StreamConfig    `mapstructure:"stream"`
	Geocoding     bool            `mapstructure:"geocoding"` // offline reverse geocoding of positions
	Workers       int             `mapstructure:"workers"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr          string  `mapstructure:"addr"`
	TrustProxy    bool    `mapstructure:"trust_proxy"`
	RatePerSecond float64 `mapstructure:"rate_per_second"` // per client IP; 0 disables
	Burst         int     `mapstructure:"burst"`
}

// CacheConfig configures the on-disk group cache.
type CacheConfig struct {
	Dir        string        `mapstructure:"dir"`
	Lifetime   time.Duration `mapstructure:"lifetime"`
	AllowStale bool          `mapstructure:"allow_stale"`
}

// CatalogConfig configures the remote element catalog.
type CatalogConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// StationConfig is the optional ground station. It is configured when it
// has a name or enable is set; an unnamed station is named after the place
// it stands in.
type StationConfig struct {
	Enable bool    `mapstructure:"enabled"`
	Name   string  `mapstructure:"name"`
	Lat    float64 `mapstructure:"lat"` // degrees
	Lon    float64 `mapstructure:"lon"` // degrees
	Alt    float64 `mapstructure:"alt"` // km
}

// Enabled reports whether a ground station is configured.
func (s StationConfig) Enabled() bool { return s.Enable || strings.TrimSpace(s.Name) != "" }

// Position returns the station's geodetic position.
func (s StationConfig) Position() transform.Geodetic {
	return transform.Geodetic{Lat: s.Lat, Lon: s.Lon, Alt: s.Alt}
}

// StreamConfig configures the event stream.
type StreamConfig struct {
	MaxPerClient int           `mapstructure:"max_per_client"`
	Keepalive    time.Duration `mapstructure:"keepalive"`
	Interval     time.Duration `mapstructure:"interval"` // default roster snapshot period
}

// AuthConfig enables bearer-token auth on mutating routes when Token is set.
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// DefaultGroups is the group list used when none is configured.
var DefaultGroups = []catalog.Group{
	{Label: "ISS", Identifier: catalog.Designator("1998-067A")},
	{Label: "CSS", Identifier: catalog.Designator("2021-035A")},
	{Label: "Weather", Identifier: catalog.Collection("weather")},
	{Label: "NOAA", Identifier: catalog.Collection("noaa")},
	{Label: "GOES", Identifier: catalog.Collection("goes")},
	{Label: "Earth resources", Identifier: catalog.Collection("resource")},
	{Label: "Search & rescue", Identifier: catalog.Collection("sarsat")},
	{Label: "Disaster monitoring", Identifier: catalog.Collection("dmc")},
	{Label: "GPS", Identifier: catalog.Collection("gps-ops")},
	{Label: "GLONASS", Identifier: catalog.Collection("glo-ops")},
	{Label: "Galileo", Identifier: catalog.Collection("galileo")},
	{Label: "Beidou", Identifier: catalog.Collection("beidou")},
	{Label: "Space & Earth Science", Identifier: catalog.Collection("science")},
	{Label: "Geodetic", Identifier: catalog.Collection("geodetic")},
	{Label: "Engineering", Identifier: catalog.Collection("engineering")},
	{Label: "Education", Identifier: catalog.Collection("education")},
	{Label: "Military", Identifier: catalog.Collection("military")},
	{Label: "Radar calibration", Identifier: catalog.Collection("radar")},
	{Label: "CubeSats", Identifier: catalog.Collection("cubesat")},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("http.rate_per_second", 20.0)
	v.SetDefault("http.burst", 40)
	v.SetDefault("cache.dir", catalog.DefaultCacheDir())
	v.SetDefault("cache.lifetime", 2*time.Hour)
	v.SetDefault("cache.allow_stale", false)
	v.SetDefault("catalog.url", catalog.DefaultBaseURL)
	v.SetDefault("catalog.timeout", 10*time.Second)
	v.SetDefault("catalog.rate_per_second", 1.0)
	v.SetDefault("catalog.burst", 4)
	v.SetDefault("ground_station.enabled", false)
	v.SetDefault("ground_station.name", "")
	v.SetDefault("ground_station.lat", 0.0)
	v.SetDefault("ground_station.lon", 0.0)
	v.SetDefault("ground_station.alt", 0.0)
	v.SetDefault("auth.token", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "orbtrack")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("stream.max_per_client", 10)
	v.SetDefault("stream.keepalive", 30*time.Second)
	v.SetDefault("stream.interval", 5*time.Second)
	v.SetDefault("geocoding", true)
	v.SetDefault("workers", runtime.NumCPU())
}

// Load reads the configuration. path names an optional config file (any
// format viper understands); when empty, ORBTRACK_CONFIG is consulted.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if !v.IsSet("groups") || len(cfg.Groups) == 0 {
		cfg.Groups = append([]catalog.Group(nil), DefaultGroups...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the process cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	if c.HTTP.RatePerSecond < 0 {
		errs = append(errs, errors.New("http.rate_per_second must not be negative"))
	}
	if c.Cache.Lifetime <= 0 {
		errs = append(errs, fmt.Errorf("cache.lifetime must be positive, got %v", c.Cache.Lifetime))
	}
	if c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir must not be empty"))
	}
	if c.Catalog.URL == "" {
		errs = append(errs, errors.New("catalog.url must not be empty"))
	}
	if c.Catalog.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("catalog.timeout must be positive, got %v", c.Catalog.Timeout))
	}
	if c.Catalog.RatePerSecond < 0 {
		errs = append(errs, errors.New("catalog.rate_per_second must not be negative"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Stream.MaxPerClient < 1 {
		errs = append(errs, fmt.Errorf("stream.max_per_client must be at least 1, got %d", c.Stream.MaxPerClient))
	}
	if c.Stream.Keepalive <= 0 || c.Stream.Interval <= 0 {
		errs = append(errs, errors.New("stream.keepalive and stream.interval must be positive"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be in [0, 1], got %v", c.Tracing.SampleRatio))
	}

	labels := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		if err := g.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		key := strings.ToLower(g.Label)
		if labels[key] {
			errs = append(errs, fmt.Errorf("duplicate group label %q", g.Label))
		}
		labels[key] = true
	}

	if s := c.GroundStation; s.Enabled() {
		if s.Lat < -90 || s.Lat > 90 {
			errs = append(errs, fmt.Errorf("ground_station.lat %v out of range", s.Lat))
		}
		if s.Lon < -180 || s.Lon > 180 {
			errs = append(errs, fmt.Errorf("ground_station.lon %v out of range", s.Lon))
		}
	}

	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
