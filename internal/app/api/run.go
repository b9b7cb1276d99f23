package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	backofficeserver "github.com/Apurer/retail-backoffice/go"

	ordersmemory "github.com/Apurer/retail-backoffice/internal/domains/orders/adapters/memory"
	ordersobs "github.com/Apurer/retail-backoffice/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/Apurer/retail-backoffice/internal/domains/orders/adapters/persistence/postgres"
	ordersworkflows "github.com/Apurer/retail-backoffice/internal/domains/orders/adapters/workflows"
	ordersapp "github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	ordersports "github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
	"github.com/Apurer/retail-backoffice/internal/platform/migrations"
	platformobservability "github.com/Apurer/retail-backoffice/internal/platform/observability"
	platformpostgres "github.com/Apurer/retail-backoffice/internal/platform/postgres"
)

// Run boots the back-office HTTP API with observability, the order store, and workflows wired.
func Run(ctx context.Context) error {
	const serviceName = "backoffice-api"
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	store := BuildOrderStore(ctx, cfg, logger)
	defer store.Cleanup()
	coreService := ordersapp.NewService(store.Store,
		ordersapp.WithPriceCheck(cfg.PriceCheck),
		ordersapp.WithLocation(cfg.ShopLocation),
	)
	orderService := ordersobs.New(
		coreService,
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)
	orderWorkflows, closeWorkflows := SelectOrderWorkflows(store, orderService, func() (client.Client, error) {
		return ConnectTemporalClient(cfg, instruments)
	}, logger)
	defer closeWorkflows()

	handlers := backofficeserver.ApiHandleFunctions{
		OrderAPI:   backofficeserver.NewOrderAPI(orderService, orderWorkflows, cfg.PlacementTimeout),
		ProductAPI: backofficeserver.NewProductAPI(orderService),
		HealthAPI:  backofficeserver.NewHealthAPI(store.HealthCheck),
	}

	router := backofficeserver.NewRouter(handlers)
	router.Use(otelgin.Middleware(serviceName))
	addr := cfg.Addr()
	logger.Info("back-office API listening", slog.String("addr", addr), slog.String("priceCheck", string(cfg.PriceCheck)))
	if err := router.Run(addr); err != nil {
		logger.Error("back-office API server exited", slog.String("addr", addr), slog.String("error", err.Error()))
		return err
	}
	return nil
}

// OrderStore is the store a process places orders against.
type OrderStore struct {
	ordersports.Store
	// HealthCheck is nil for the in-memory store.
	HealthCheck func(context.Context) error
	Cleanup     func()
	// Shared is true when other processes see the same orders and stock.
	// The in-memory fallback is private to this process.
	Shared bool
}

// BuildOrderStore returns the PostgreSQL store when POSTGRES_DSN is reachable
// and the in-memory demo store otherwise.
func BuildOrderStore(ctx context.Context, cfg Config, logger *slog.Logger) OrderStore {
	if cfg.PostgresDSN == "" {
		logger.Warn("POSTGRES_DSN not set, falling back to in-memory order store with demo catalog")
		return memoryOrderStore()
	}
	db, err := platformpostgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresPool, logger)
	if err != nil {
		logger.Warn("failed to connect to postgres, falling back to memory", slog.String("error", err.Error()))
		return memoryOrderStore()
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("failed to unwrap postgres connection, falling back to memory", slog.String("error", err.Error()))
		return memoryOrderStore()
	}
	if err := migrations.Run(db); err != nil {
		_ = sqlDB.Close()
		logger.Warn("failed to migrate postgres schema, falling back to memory", slog.String("error", err.Error()))
		return memoryOrderStore()
	}
	logger.Info("order store configured with postgres")
	return OrderStore{
		Store:       orderspostgres.NewStore(db, orderspostgres.WithLogger(logger)),
		HealthCheck: sqlDB.PingContext,
		Cleanup:     func() { _ = sqlDB.Close() },
		Shared:      true,
	}
}

func memoryOrderStore() OrderStore {
	return OrderStore{Store: ordersmemory.NewDemoStore(), Cleanup: func() {}}
}

// SelectOrderWorkflows places orders through Temporal only when the store is
// shared with the worker; a worker committing into its own memory would hide
// every order from this process. dial is not called otherwise.
func SelectOrderWorkflows(store OrderStore, service ordersports.Service, dial func() (client.Client, error), logger *slog.Logger) (ordersports.WorkflowOrchestrator, func()) {
	inline := ordersworkflows.NewInlineOrderWorkflows(service)
	if !store.Shared {
		logger.Warn("order store is process-local, placing orders inline")
		return inline, func() {}
	}
	temporalClient, err := dial()
	if err != nil {
		logger.Warn("Temporal workflows unavailable, placing orders inline", slog.String("error", err.Error()))
		return inline, func() {}
	}
	logger.Info("Temporal workflows enabled")
	return ordersworkflows.NewTemporalOrderWorkflows(temporalClient), temporalClient.Close
}

// ConnectTemporalClient dials Temporal with tracing and structured logging,
// unless TEMPORAL_DISABLED is set.
func ConnectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
