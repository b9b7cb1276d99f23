package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"

	ordersapp "github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	platformpostgres "github.com/Apurer/retail-backoffice/internal/platform/postgres"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "POSTGRES_DSN", "TEMPORAL_ADDRESS", "TEMPORAL_NAMESPACE", "TEMPORAL_DISABLED",
		"ORDER_PRICE_CHECK", "PLACEMENT_TIMEOUT", "IDEMPOTENCY_RETENTION_HOURS",
		"POSTGRES_MAX_OPEN_CONNS", "POSTGRES_MAX_IDLE_CONNS", "POSTGRES_CONN_MAX_LIFETIME",
		"SHOP_TIMEZONE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Empty(t, cfg.PostgresDSN)
	assert.Equal(t, client.DefaultHostPort, cfg.TemporalAddress)
	assert.Equal(t, client.DefaultNamespace, cfg.TemporalNamespace)
	assert.False(t, cfg.TemporalDisabled)
	assert.Equal(t, ordersapp.PriceCheckTrust, cfg.PriceCheck)
	assert.Equal(t, 10*time.Second, cfg.PlacementTimeout)
	assert.Equal(t, 72*time.Hour, cfg.IdempotencyRetention)
	assert.Equal(t, platformpostgres.DefaultPoolSettings(), cfg.PostgresPool)
	assert.Equal(t, time.Local, cfg.ShopLocation)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("TEMPORAL_DISABLED", "true")
	t.Setenv("ORDER_PRICE_CHECK", "STRICT")
	t.Setenv("PLACEMENT_TIMEOUT", "3s")
	t.Setenv("IDEMPOTENCY_RETENTION_HOURS", "6")
	t.Setenv("POSTGRES_MAX_OPEN_CONNS", "50")
	t.Setenv("SHOP_TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.True(t, cfg.TemporalDisabled)
	assert.Equal(t, ordersapp.PriceCheckStrict, cfg.PriceCheck)
	assert.Equal(t, 3*time.Second, cfg.PlacementTimeout)
	assert.Equal(t, 6*time.Hour, cfg.IdempotencyRetention)
	assert.Equal(t, 50, cfg.PostgresPool.MaxOpenConns)
	assert.Equal(t, "UTC", cfg.ShopLocation.String())
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	cases := map[string]struct {
		key   string
		value string
	}{
		"unknown price check": {key: "ORDER_PRICE_CHECK", value: "lenient"},
		"unparsable timeout":  {key: "PLACEMENT_TIMEOUT", value: "soon"},
		"negative timeout":    {key: "PLACEMENT_TIMEOUT", value: "-1s"},
		"zero retention":      {key: "IDEMPOTENCY_RETENTION_HOURS", value: "0"},
		"zero pool size":      {key: "POSTGRES_MAX_OPEN_CONNS", value: "0"},
		"bad conn lifetime":   {key: "POSTGRES_CONN_MAX_LIFETIME", value: "forever"},
		"unknown timezone":    {key: "SHOP_TIMEZONE", value: "Mars/Olympus_Mons"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}
