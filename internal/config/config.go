package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Scheduling policy knobs.
	LeadTimeHours         int           `mapstructure:"LEAD_TIME_HOURS"`
	CancelMinLeadHours    int           `mapstructure:"CANCEL_MIN_LEAD_HOURS"`
	MaxFutureAppointments int           `mapstructure:"MAX_FUTURE_APPOINTMENTS"`
	NoShowBlockThreshold  int           `mapstructure:"NO_SHOW_BLOCK_THRESHOLD"`
	NoShowLookback        int           `mapstructure:"NO_SHOW_LOOKBACK"`
	RescheduleLimit       int           `mapstructure:"RESCHEDULE_LIMIT"`
	ListingCacheTTL       time.Duration `mapstructure:"LISTING_CACHE_TTL"`
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
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LEAD_TIME_HOURS", 24)
	v.SetDefault("CANCEL_MIN_LEAD_HOURS", 24)
	v.SetDefault("MAX_FUTURE_APPOINTMENTS", 2)
	v.SetDefault("NO_SHOW_BLOCK_THRESHOLD", 3)
	v.SetDefault("NO_SHOW_LOOKBACK", 10)
	v.SetDefault("RESCHEDULE_LIMIT", 2)
	v.SetDefault("LISTING_CACHE_TTL", 5*time.Minute)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("LEAD_TIME_HOURS")
	v.BindEnv("CANCEL_MIN_LEAD_HOURS")
	v.BindEnv("MAX_FUTURE_APPOINTMENTS")
	v.BindEnv("NO_SHOW_BLOCK_THRESHOLD")
	v.BindEnv("NO_SHOW_LOOKBACK")
	v.BindEnv("RESCHEDULE_LIMIT")
	v.BindEnv("LISTING_CACHE_TTL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
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

// Validate checks that the configuration is safe to run. The scheduling
// policy knobs must be coherent: a zero block threshold would trip the
// reliability breaker on every no-show, and the lookback window must be
// able to contain a full streak.
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.LeadTimeHours < 0 {
		return fmt.Errorf("LEAD_TIME_HOURS must not be negative, got %d", c.LeadTimeHours)
	}
	if c.CancelMinLeadHours < 0 {
		return fmt.Errorf("CANCEL_MIN_LEAD_HOURS must not be negative, got %d", c.CancelMinLeadHours)
	}
	if c.MaxFutureAppointments < 1 {
		return fmt.Errorf("MAX_FUTURE_APPOINTMENTS must be at least 1, got %d", c.MaxFutureAppointments)
	}
	if c.NoShowBlockThreshold < 1 {
		return fmt.Errorf("NO_SHOW_BLOCK_THRESHOLD must be at least 1, got %d", c.NoShowBlockThreshold)
	}
	if c.NoShowLookback < c.NoShowBlockThreshold {
		return fmt.Errorf("NO_SHOW_LOOKBACK (%d) must not be smaller than NO_SHOW_BLOCK_THRESHOLD (%d)",
			c.NoShowLookback, c.NoShowBlockThreshold)
	}
	if c.RescheduleLimit < 0 {
		return fmt.Errorf("RESCHEDULE_LIMIT must not be negative, got %d", c.RescheduleLimit)
	}
	if c.ListingCacheTTL < 0 {
		return fmt.Errorf("LISTING_CACHE_TTL must not be negative, got %v", c.ListingCacheTTL)
	}
	return nil
}
