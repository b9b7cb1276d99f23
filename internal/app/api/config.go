package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/client"

	ordersapp "github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	platformpostgres "github.com/Apurer/retail-backoffice/internal/platform/postgres"
)

const (
	defaultPlacementTimeout     = 10 * time.Second
	defaultIdempotencyRetention = 72 * time.Hour
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port                 string
	PostgresDSN          string
	PostgresPool         platformpostgres.PoolSettings
	TemporalAddress      string
	TemporalNamespace    string
	TemporalDisabled     bool
	PriceCheck           ordersapp.PriceCheck
	ShopLocation         *time.Location
	PlacementTimeout     time.Duration
	IdempotencyRetention time.Duration
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:                 envDefault("PORT", "8080"),
		PostgresDSN:          strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		TemporalAddress:      envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace:    envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:     isTruthy(os.Getenv("TEMPORAL_DISABLED")),
		PlacementTimeout:     defaultPlacementTimeout,
		IdempotencyRetention: defaultIdempotencyRetention,
	}
	pool, err := platformpostgres.PoolSettingsFromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.PostgresPool = pool
	priceCheck, err := ordersapp.ParsePriceCheck(os.Getenv("ORDER_PRICE_CHECK"))
	if err != nil {
		return Config{}, fmt.Errorf("ORDER_PRICE_CHECK: %w", err)
	}
	cfg.PriceCheck = priceCheck
	cfg.ShopLocation = time.Local
	if raw := strings.TrimSpace(os.Getenv("SHOP_TIMEZONE")); raw != "" {
		loc, err := time.LoadLocation(raw)
		if err != nil {
			return Config{}, fmt.Errorf("SHOP_TIMEZONE must be an IANA zone such as Asia/Ho_Chi_Minh: %w", err)
		}
		cfg.ShopLocation = loc
	}
	if raw := strings.TrimSpace(os.Getenv("PLACEMENT_TIMEOUT")); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return Config{}, fmt.Errorf("PLACEMENT_TIMEOUT must be a positive duration such as 10s")
		}
		cfg.PlacementTimeout = timeout
	}
	if raw := strings.TrimSpace(os.Getenv("IDEMPOTENCY_RETENTION_HOURS")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("IDEMPOTENCY_RETENTION_HOURS must be a positive integer")
		}
		cfg.IdempotencyRetention = time.Duration(hours) * time.Hour
	}
	return cfg, nil
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
