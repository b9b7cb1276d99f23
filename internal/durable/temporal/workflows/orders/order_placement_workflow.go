package orders

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	"github.com/Apurer/retail-backoffice/internal/durable/temporal/sequences"
)

const (
	// OrderPlacementWorkflowName is the public identifier for registering the workflow.
	OrderPlacementWorkflowName = "orders.workflows.Placement"
	// OrderPlacementTaskQueue is the queue consumed by the worker processing order workflows.
	OrderPlacementTaskQueue = "ORDER_PLACEMENT"
)

// OrderPlacementWorkflowInput captures the placement request plus the trace it
// belongs to. Deadline is the caller's deadline; zero means unbounded.
type OrderPlacementWorkflowInput struct {
	Command  types.PlaceOrderInput
	TraceID  string
	Deadline time.Time
}

// OrderPlacementWorkflow places one order durably. The command always carries
// an idempotency key, so a retried activity replays instead of placing twice.
func OrderPlacementWorkflow(ctx workflow.Context, input OrderPlacementWorkflowInput) (*types.PlacementResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("OrderPlacementWorkflow started", withTraceID(input.TraceID, "customerId", input.Command.CustomerID)...)
	result, err := sequences.RunOrderPlacementSequence(ctx, input.Command, input.Deadline)
	if err != nil {
		logger.Error("OrderPlacementWorkflow failed", withTraceID(input.TraceID, "customerId", input.Command.CustomerID, "error", err)...)
		return nil, err
	}
	logger.Info("OrderPlacementWorkflow completed", withTraceID(input.TraceID, "orderId", result.OrderID)...)
	return result, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
