package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/Apurer/retail-backoffice/internal/app/api"
	orderspostgres "github.com/Apurer/retail-backoffice/internal/domains/orders/adapters/persistence/postgres"
	platformobservability "github.com/Apurer/retail-backoffice/internal/platform/observability"
	platformpostgres "github.com/Apurer/retail-backoffice/internal/platform/postgres"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger, err := platformobservability.NewLogger(platformobservability.SettingsFromEnv(), "idempotency-purger")
	if err != nil {
		log.Fatalf("invalid logging configuration: %v", err)
	}
	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	db, cleanup, err := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanup()
	if err != nil {
		log.Fatalf("cannot purge idempotency keys: %v", err)
	}

	store := orderspostgres.NewStore(db, orderspostgres.WithLogger(logger))
	cutoff := time.Now().Add(-cfg.IdempotencyRetention)
	purged, err := store.PurgeIdempotencyKeys(ctx, cutoff)
	if err != nil {
		log.Fatalf("failed to purge idempotency keys: %v", err)
	}
	logger.Info("idempotency key purge completed", slog.Int64("purged", purged), slog.Time("cutoff", cutoff))
}
