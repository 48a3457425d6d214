package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	DBMaxOpenConns int  `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int  `mapstructure:"DB_MAX_IDLE_CONNS"`
	RunMigrations  bool `mapstructure:"RUN_MIGRATIONS"`

	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AuthDevMode    bool   `mapstructure:"AUTH_DEV_MODE"`
	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`

	// CORSAllowedOrigins is a comma-separated origin list for browser clients.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// PayoutSweepSchedule is a standard five-field cron expression.
	PayoutSweepSchedule string `mapstructure:"PAYOUT_SWEEP_SCHEDULE"`
	// PayoutMinInterval overrides the cadence period between payouts when non-zero.
	PayoutMinInterval time.Duration `mapstructure:"PAYOUT_MIN_INTERVAL"`
}

var keys = []string{
	"PORT",
	"DATABASE_URL",
	"LOG_LEVEL",
	"DB_MAX_OPEN_CONNS",
	"DB_MAX_IDLE_CONNS",
	"RUN_MIGRATIONS",
	"JWT_SECRET",
	"AUTH_DEV_MODE",
	"INTERNAL_API_KEY",
	"CORS_ALLOWED_ORIGINS",
	"PAYOUT_SWEEP_SCHEDULE",
	"PAYOUT_MIN_INTERVAL",
}

// Load reads configuration from environment variables.
// An empty DATABASE_URL selects the in-memory store.
func Load() (*Config, error) {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.SetDefault("AUTH_DEV_MODE", false)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://*,https://*")
	viper.SetDefault("PAYOUT_SWEEP_SCHEDULE", "0 * * * *") // Hourly, on the hour.
	viper.SetDefault("PAYOUT_MIN_INTERVAL", "0s")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if _, err := cron.ParseStandard(c.PayoutSweepSchedule); err != nil {
		return fmt.Errorf("invalid PAYOUT_SWEEP_SCHEDULE %q: %w", c.PayoutSweepSchedule, err)
	}
	if c.PayoutMinInterval < 0 {
		return fmt.Errorf("PAYOUT_MIN_INTERVAL must not be negative")
	}
	if c.DBMaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS")
	}
	if !c.AuthDevMode && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required unless AUTH_DEV_MODE is enabled")
	}
	return nil
}

// UseMemoryStore reports whether no database is configured.
func (c *Config) UseMemoryStore() bool {
	return c.DatabaseURL == ""
}

// AllowedOrigins splits CORSAllowedOrigins into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
