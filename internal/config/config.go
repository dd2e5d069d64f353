package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "24h" parse naturally.
type Duration time.Duration

// UnmarshalYAML accepts either a Go duration string or a raw nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(n))
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config carries every runtime setting for the service. Directory paths that
// used to be ambient globals in older poster generators are explicit here and
// ensured once at startup.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		PosterCacheEnabled bool     `yaml:"poster_cache_enabled"`
		PosterCacheTTL     Duration `yaml:"poster_cache_ttl"`
		RedisHost          string   `yaml:"redis_host"`
		PosterCacheDB      int      `yaml:"poster_cache_db"`
		GeocodeCacheDB     int      `yaml:"geocode_cache_db"`
		GeocodeCacheTTL    Duration `yaml:"geocode_cache_ttl"`
	} `yaml:"cache"`

	Geocode struct {
		BaseURL     string `yaml:"base_url"`
		UserAgent   string `yaml:"user_agent"`
		TimeoutSecs int    `yaml:"timeout_secs"`
	} `yaml:"geocode"`

	Overpass struct {
		URL         string `yaml:"url"`
		TimeoutSecs int    `yaml:"timeout_secs"`
	} `yaml:"overpass"`

	Poster struct {
		DefaultTheme  string `yaml:"default_theme"`
		ThemesDir     string `yaml:"themes_dir"`
		PostersDir    string `yaml:"posters_dir"`
		KeepArtifacts bool   `yaml:"keep_artifacts"`
		DPI           int    `yaml:"dpi"`
	} `yaml:"poster"`

	Render struct {
		PoolSize    int `yaml:"pool_size"`
		TimeoutSecs int `yaml:"timeout_secs"`
	} `yaml:"render"`
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	var cfg Config

	cfg.Server.Port = ":8000"

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14

	cfg.Cache.PosterCacheTTL = Duration(24 * time.Hour)
	cfg.Cache.PosterCacheDB = 1
	cfg.Cache.GeocodeCacheDB = 0
	cfg.Cache.GeocodeCacheTTL = Duration(24 * time.Hour)

	cfg.Geocode.BaseURL = "https://nominatim.openstreetmap.org"
	cfg.Geocode.UserAgent = "map-poster-service/1.0"
	cfg.Geocode.TimeoutSecs = 10

	cfg.Overpass.URL = "https://overpass-api.de/api/interpreter"
	cfg.Overpass.TimeoutSecs = 60

	cfg.Poster.DefaultTheme = "noir"
	cfg.Poster.PostersDir = "posters"
	cfg.Poster.DPI = 150

	cfg.Render.PoolSize = 2
	cfg.Render.TimeoutSecs = 90

	return cfg
}

// Load reads the config file named by CONFIG_PATH, falling back to
// ./config.yaml, falling back to defaults when neither exists. An explicitly
// configured path that cannot be read is a startup failure.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path != "" {
		return LoadFrom(path)
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return LoadFrom("config.yaml")
	}
	return Default()
}

// LoadFrom parses the given YAML file over the defaults. It panics on
// unreadable files, malformed YAML, or out-of-range values: a service with a
// broken config must not come up half-configured.
func LoadFrom(path string) Config {
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: cannot read %s: %v", path, err))
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("config: cannot parse %s: %v", path, err))
	}
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("config: %s: %v", path, err))
	}
	return cfg
}

func (c Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if c.Poster.DPI < 72 || c.Poster.DPI > 600 {
		return fmt.Errorf("poster.dpi must be between 72 and 600, got %d", c.Poster.DPI)
	}
	if c.Poster.DefaultTheme == "" {
		return fmt.Errorf("poster.default_theme must not be empty")
	}
	if c.Render.PoolSize < 0 {
		return fmt.Errorf("render.pool_size must not be negative, got %d", c.Render.PoolSize)
	}
	if c.Render.TimeoutSecs <= 0 {
		return fmt.Errorf("render.timeout_secs must be positive, got %d", c.Render.TimeoutSecs)
	}
	if c.Geocode.TimeoutSecs <= 0 {
		return fmt.Errorf("geocode.timeout_secs must be positive, got %d", c.Geocode.TimeoutSecs)
	}
	if c.Overpass.TimeoutSecs <= 0 {
		return fmt.Errorf("overpass.timeout_secs must be positive, got %d", c.Overpass.TimeoutSecs)
	}
	if c.Cache.PosterCacheTTL < 0 || c.Cache.GeocodeCacheTTL < 0 {
		return fmt.Errorf("cache TTLs must not be negative")
	}
	return nil
}
