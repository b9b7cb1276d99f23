package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	ordersapp "github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	ordersports "github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
)

const (
	// PlaceOrderActivityName validates and commits one order placement.
	PlaceOrderActivityName = "orders.activities.PlaceOrder"

	// OrderErrorType tags application errors that carry ordersapp.ErrorDetails.
	OrderErrorType = "OrderError"
	// IdempotencyConflictErrorType tags a key reused with a different request.
	IdempotencyConflictErrorType = "IdempotencyConflict"
)

// Activities groups activities that operate on the orders bounded context.
type Activities struct {
	service ordersports.Service
}

// NewActivities wires the orders service into the Temporal activities bundle.
func NewActivities(service ordersports.Service) *Activities {
	return &Activities{service: service}
}

// PlaceOrder runs the placement use case. Only transient and stock-race
// failures are left retryable; every other rejection is final.
func (a *Activities) PlaceOrder(ctx context.Context, input types.PlaceOrderInput) (*types.PlacementResult, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("order placement activity not initialized")
		return nil, errors.New("order placement activity not initialized")
	}
	logger.Info("PlaceOrder activity started", "customerId", input.CustomerID, "lineItems", len(input.LineItems))
	result, err := a.service.PlaceOrder(ctx, input)
	if err != nil {
		logger.Error("PlaceOrder activity failed", "customerId", input.CustomerID, "error", err)
		return nil, ToApplicationError(err)
	}
	logger.Info("PlaceOrder activity completed", "orderId", result.OrderID, "replayed", result.Replayed)
	return result, nil
}

// ToApplicationError converts a placement failure into a Temporal application
// error that survives serialization, keeping the kind and product context.
func ToApplicationError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ordersports.ErrIdempotencyConflict) {
		return temporal.NewNonRetryableApplicationError(err.Error(), IdempotencyConflictErrorType, err)
	}
	oe, ok := ordersapp.AsOrderError(err)
	if !ok {
		return err
	}
	if oe.Retryable() {
		return temporal.NewApplicationErrorWithCause(oe.Error(), OrderErrorType, err, oe.Details())
	}
	return temporal.NewNonRetryableApplicationError(oe.Error(), OrderErrorType, err, oe.Details())
}
