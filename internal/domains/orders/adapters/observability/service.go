package observability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	ordersapp "github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	ordersdomain "github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
	ordersports "github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/retail-backoffice/internal/domains/orders/adapters/observability/service"

// Service decorates the orders service with tracing, logging, and metrics.
type Service struct {
	inner   ordersports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wraps the core orders service.
func New(inner ordersports.Service, opts ...Option) ordersports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return s
}

func (s *Service) PlaceOrder(ctx context.Context, input types.PlaceOrderInput) (*types.PlacementResult, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder",
		trace.WithAttributes(
			attribute.Int64("order.customer_id", input.CustomerID),
			attribute.Int64("order.employee_id", input.EmployeeID),
			attribute.Int("order.line_items", len(input.LineItems)),
			attribute.Bool("order.idempotent", input.IdempotencyKey != ""),
		))
	defer span.End()

	started := time.Now()
	s.logInfo(ctx, "placing order",
		slog.Int64("order.customer_id", input.CustomerID),
		slog.Int("order.line_items", len(input.LineItems)))
	result, err := s.inner.PlaceOrder(ctx, input)
	s.metrics.recordDuration(ctx, time.Since(started))
	if err != nil {
		s.metrics.recordRejected(ctx, err)
		return nil, s.handleError(ctx, span, err, "failed to place order", errorAttrs(err)...)
	}
	span.SetAttributes(
		attribute.Int64("order.id", result.OrderID),
		attribute.String("order.total", result.Total.String()),
		attribute.Bool("order.replayed", result.Replayed),
	)
	if !result.Replayed {
		s.metrics.recordPlaced(ctx)
	}
	s.logInfo(ctx, "order placed",
		slog.Int64("order.id", result.OrderID),
		slog.String("order.total", result.Total.String()),
		slog.Bool("order.replayed", result.Replayed))
	return result, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*ordersdomain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	result, err := s.inner.GetOrder(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.Int64("order.id", id))
	}
	span.SetAttributes(attribute.Int("order.line_items", len(result.Items)))
	return result, nil
}

func (s *Service) QuoteProduct(ctx context.Context, id int64) (*types.ProductQuote, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.QuoteProduct", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	result, err := s.inner.QuoteProduct(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to quote product", slog.Int64("product.id", id))
	}
	span.SetAttributes(attribute.Int("product.stock", int(result.Stock)))
	return result, nil
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, level slog.Level, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, level, msg, attrs...)
}

// handleError records err on the span. Rejections the caller can fix are
// logged at warn; unclassified and invariant failures at error.
func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	level := slog.LevelError
	if oe, ok := ordersapp.AsOrderError(err); ok && oe.Kind != ordersapp.KindInvariantViolation {
		level = slog.LevelWarn
	} else if errors.Is(err, ordersports.ErrIdempotencyConflict) {
		level = slog.LevelWarn
	}
	s.logError(ctx, level, msg, err, attrs...)
	return err
}

func errorAttrs(err error) []slog.Attr {
	oe, ok := ordersapp.AsOrderError(err)
	if !ok {
		return nil
	}
	attrs := []slog.Attr{
		slog.String("order.error.kind", string(oe.Kind)),
		slog.String("order.error.reason", string(oe.Reason)),
	}
	if oe.Stage != "" {
		attrs = append(attrs, slog.String("order.error.stage", string(oe.Stage)))
	}
	if oe.ProductID != 0 {
		attrs = append(attrs, slog.Int64("product.id", oe.ProductID))
	}
	return attrs
}

type serviceMetrics struct {
	placed         metric.Int64Counter
	rejected       metric.Int64Counter
	stockRaceLost  metric.Int64Counter
	placementMilli metric.Float64Histogram
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	placed, _ := m.Int64Counter("orders.placement.placed", metric.WithDescription("Number of orders committed"))
	rejected, _ := m.Int64Counter("orders.placement.rejected", metric.WithDescription("Number of placements rejected, by error kind"))
	raceLost, _ := m.Int64Counter("orders.placement.stock_race_lost", metric.WithDescription("Number of placements that lost a concurrent stock race"))
	duration, _ := m.Float64Histogram("orders.placement.duration_ms",
		metric.WithDescription("Placement latency in milliseconds"),
		metric.WithUnit("ms"))
	return serviceMetrics{placed: placed, rejected: rejected, stockRaceLost: raceLost, placementMilli: duration}
}

func (m serviceMetrics) recordPlaced(ctx context.Context) {
	if m.placed != nil {
		m.placed.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordRejected(ctx context.Context, err error) {
	kind := "unclassified"
	if errors.Is(err, ordersports.ErrIdempotencyConflict) {
		kind = "idempotency_conflict"
	}
	if oe, ok := ordersapp.AsOrderError(err); ok {
		kind = string(oe.Kind)
		if oe.Kind == ordersapp.KindStockRaceLost && m.stockRaceLost != nil {
			m.stockRaceLost.Add(ctx, 1)
		}
	}
	if m.rejected != nil {
		m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("order.error.kind", kind)))
	}
}

func (m serviceMetrics) recordDuration(ctx context.Context, d time.Duration) {
	if m.placementMilli != nil {
		m.placementMilli.Record(ctx, float64(d.Microseconds())/1000)
	}
}

var _ ordersports.Service = (*Service)(nil)
