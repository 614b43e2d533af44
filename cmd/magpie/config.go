package main

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // postgres driver
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// appConfig is everything the worker and enqueue commands need, sourced
// from environment variables (MAGPIE_*), an optional .env file, and flags.
type appConfig struct {
	DatabaseURL  string        `mapstructure:"database_url"`
	CacheDir     string        `mapstructure:"cache_dir"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	BatchLimit   int           `mapstructure:"batch_limit"`
	PollInterval string        `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
	DedupWindow  time.Duration `mapstructure:"dedup_window"`
}

func loadConfig(cmd *cobra.Command) (*appConfig, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		// Best effort; a missing .env is fine.
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix("magpie")
	v.AutomaticEnv()

	v.SetDefault("cache_ttl", 6*time.Hour)
	v.SetDefault("fetch_timeout", 10*time.Second)
	v.SetDefault("batch_limit", 25)
	v.SetDefault("poll_interval", "@every 30s")
	v.SetDefault("max_attempts", 5)
	v.SetDefault("backoff_base", time.Minute)
	v.SetDefault("backoff_max", 6*time.Hour)
	v.SetDefault("dedup_window", 6*time.Hour)

	// AutomaticEnv alone does not surface env-only keys through Unmarshal;
	// bind each key explicitly.
	for _, key := range []string{
		"database_url", "cache_dir", "cache_ttl", "fetch_timeout", "batch_limit",
		"poll_interval", "max_attempts", "backoff_base", "backoff_max", "dedup_window",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("MAGPIE_DATABASE_URL is required")
	}
	return &cfg, nil
}

func openDB(cfg *appConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
