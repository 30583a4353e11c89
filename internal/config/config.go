package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/anesthesia/internal/drawing"
	"github.com/ehr/anesthesia/internal/platform/middleware"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	RenderCacheTTL time.Duration `mapstructure:"RENDER_CACHE_TTL"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	ImportLimit    string        `mapstructure:"IMPORT_BODY_LIMIT"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`

	SignatureWidth  float64 `mapstructure:"SIGNATURE_WIDTH"`
	SignatureHeight float64 `mapstructure:"SIGNATURE_HEIGHT"`
	ChartWidth      float64 `mapstructure:"CHART_WIDTH"`
	ChartHeight     float64 `mapstructure:"CHART_HEIGHT"`
}

var keys = []string{
	"PORT",
	"ENV",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"REDIS_URL",
	"RENDER_CACHE_TTL",
	"CORS_ORIGINS",
	"BODY_LIMIT",
	"IMPORT_BODY_LIMIT",
	"REQUEST_TIMEOUT",
	"MIGRATIONS_DIR",
	"SIGNATURE_WIDTH",
	"SIGNATURE_HEIGHT",
	"CHART_WIDTH",
	"CHART_HEIGHT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("RENDER_CACHE_TTL", "10m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", "4M")
	v.SetDefault("IMPORT_BODY_LIMIT", "16M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("SIGNATURE_WIDTH", 500)
	v.SetDefault("SIGNATURE_HEIGHT", 200)
	v.SetDefault("CHART_WIDTH", 900)
	v.SetDefault("CHART_HEIGHT", 400)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks values that Load cannot reject on type alone.
func (c *Config) Validate() error {
	sizes := []struct {
		name  string
		value float64
	}{
		{"SIGNATURE_WIDTH", c.SignatureWidth},
		{"SIGNATURE_HEIGHT", c.SignatureHeight},
		{"CHART_WIDTH", c.ChartWidth},
		{"CHART_HEIGHT", c.ChartHeight},
	}
	for _, s := range sizes {
		if s.value <= 0 {
			return fmt.Errorf("%s must be positive, got %g", s.name, s.value)
		}
		if s.value > drawing.MaxSurfaceSize {
			return fmt.Errorf("%s must be at most %d, got %g", s.name, drawing.MaxSurfaceSize, s.value)
		}
	}

	if _, err := middleware.ParseLimit(c.BodyLimit); err != nil {
		return fmt.Errorf("BODY_LIMIT: %w", err)
	}
	if _, err := middleware.ParseLimit(c.ImportLimit); err != nil {
		return fmt.Errorf("IMPORT_BODY_LIMIT: %w", err)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}

	if c.RenderCacheTTL <= 0 {
		return fmt.Errorf("RENDER_CACHE_TTL must be positive, got %s", c.RenderCacheTTL)
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	return nil
}
