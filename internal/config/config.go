// Package config holds the explicit application configuration. There
// is no module-level singleton mutated at import time: main loads a
// Config once and injects it into the constructors that need it.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// Config is everything the process needs, resolved at startup.
type Config struct {
	ListenAddr string

	// Environment selects the commerce platform endpoint:
	// "sandbox" or "production".
	Environment string
	AccessToken string
	LocationID  string

	// TaxRate is the deployment's sales-tax rate as a decimal
	// fraction (e.g. 0.0975). Deployments have shipped with both
	// 8.25% and 9.75%, so it is configuration, not a constant.
	TaxRate  decimal.Decimal
	Currency string

	// RedisAddr enables the shared distance cache; empty means the
	// in-process cache.
	RedisAddr string

	// SQLitePath is the durable client-state database (order pointer
	// and receipts).
	SQLitePath string

	// GeocoderBaseURL overrides the public Nominatim instance.
	GeocoderBaseURL string
}

// Load reads the configuration from the environment with development
// defaults. The access token and location id are hard requirements.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		Environment:     getEnv("APP_ENV", "sandbox"),
		AccessToken:     os.Getenv("SQUARE_ACCESS_TOKEN"),
		LocationID:      os.Getenv("SQUARE_LOCATION_ID"),
		Currency:        getEnv("CURRENCY", "USD"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		SQLitePath:      getEnv("SQLITE_PATH", "./data/storefront.db"),
		GeocoderBaseURL: os.Getenv("GEOCODER_BASE_URL"),
	}

	if cfg.AccessToken == "" {
		return Config{}, fmt.Errorf("config: SQUARE_ACCESS_TOKEN is required")
	}
	if cfg.LocationID == "" {
		return Config{}, fmt.Errorf("config: SQUARE_LOCATION_ID is required")
	}

	rate, err := decimal.NewFromString(getEnv("TAX_RATE", "0.0975"))
	if err != nil {
		return Config{}, fmt.Errorf("config: parse TAX_RATE: %w", err)
	}
	cfg.TaxRate = rate

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
