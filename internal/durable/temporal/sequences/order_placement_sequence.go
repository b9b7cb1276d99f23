package sequences

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	ordersapp "github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	orderactivities "github.com/Apurer/retail-backoffice/internal/durable/temporal/activities/orders"
)

// PlacementActivityOptions bounds each placement attempt. Retries are only
// reached for transient store failures and lost stock races; the activity
// marks every other rejection non-retryable.
var PlacementActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 30 * time.Second,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    200 * time.Millisecond,
		BackoffCoefficient: 2.0,
		MaximumInterval:    2 * time.Second,
		MaximumAttempts:    4,
	},
}

// ErrDeadlinePassed reports a placement whose caller deadline expired before
// any attempt was scheduled.
var ErrDeadlinePassed = errors.New("placement deadline passed before the order was attempted")

// PlacementActivityOptionsUntil shrinks the activity timeouts so no attempt,
// retries included, outlives deadline. The activity context inherits that
// deadline, so a transaction still open when it passes is rolled back. It
// reports false when deadline has already passed. A zero deadline keeps the
// defaults.
func PlacementActivityOptionsUntil(now, deadline time.Time) (workflow.ActivityOptions, bool) {
	opts := PlacementActivityOptions
	if deadline.IsZero() {
		return opts, true
	}
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return opts, false
	}
	opts.ScheduleToCloseTimeout = remaining
	if opts.StartToCloseTimeout > remaining {
		opts.StartToCloseTimeout = remaining
	}
	return opts, true
}

// RunOrderPlacementSequence executes the placement activity and returns the committed order.
func RunOrderPlacementSequence(ctx workflow.Context, input types.PlaceOrderInput, deadline time.Time) (*types.PlacementResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("order placement sequence started", "customerId", input.CustomerID, "lineItems", len(input.LineItems))

	opts, ok := PlacementActivityOptionsUntil(workflow.Now(ctx), deadline)
	if !ok {
		logger.Warn("order placement sequence skipped", "customerId", input.CustomerID, "deadline", deadline)
		return nil, orderactivities.ToApplicationError(&ordersapp.OrderError{
			Kind:   ordersapp.KindTransientStoreFailure,
			Reason: ordersapp.ReasonStoreUnavailable,
			Err:    ErrDeadlinePassed,
		})
	}
	ctx = workflow.WithActivityOptions(ctx, opts)

	var result types.PlacementResult
	err := workflow.ExecuteActivity(ctx, orderactivities.PlaceOrderActivityName, input).Get(ctx, &result)
	if err != nil {
		logger.Error("order placement sequence failed", "customerId", input.CustomerID, "error", err)
		return nil, err
	}
	logger.Info("order placement sequence completed", "orderId", result.OrderID)
	return &result, nil
}
