package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/retail-backoffice/internal/app/api"
	ordersobs "github.com/Apurer/retail-backoffice/internal/domains/orders/adapters/observability"
	ordersapp "github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	orderactivities "github.com/Apurer/retail-backoffice/internal/durable/temporal/activities/orders"
	orderworkflows "github.com/Apurer/retail-backoffice/internal/durable/temporal/workflows/orders"
	platformobservability "github.com/Apurer/retail-backoffice/internal/platform/observability"
)

func main() {
	ctx := context.Background()
	const serviceName = "backoffice-worker"
	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	store := api.BuildOrderStore(ctx, cfg, logger)
	defer store.Cleanup()
	if !store.Shared {
		logger.Error("worker needs a reachable POSTGRES_DSN; orders placed into process memory would be invisible to the API")
		os.Exit(1)
	}
	orderService := ordersobs.New(
		ordersapp.NewService(store.Store,
			ordersapp.WithPriceCheck(cfg.PriceCheck),
			ordersapp.WithLocation(cfg.ShopLocation),
		),
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)
	orderActivities := orderactivities.NewActivities(orderService)

	temporalClient, err := api.ConnectTemporalClient(cfg, instruments)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, orderworkflows.OrderPlacementTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(orderworkflows.OrderPlacementWorkflow, workflow.RegisterOptions{Name: orderworkflows.OrderPlacementWorkflowName})
	w.RegisterActivityWithOptions(orderActivities.PlaceOrder, activity.RegisterOptions{Name: orderactivities.PlaceOrderActivityName})

	logger.Info("worker listening", slog.String("taskQueue", orderworkflows.OrderPlacementTaskQueue), slog.String("namespace", cfg.TemporalNamespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
