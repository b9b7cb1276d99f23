package workflows

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	ordersapp "github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
	orderactivities "github.com/Apurer/retail-backoffice/internal/durable/temporal/activities/orders"
	orderworkflows "github.com/Apurer/retail-backoffice/internal/durable/temporal/workflows/orders"
)

var (
	_ ports.WorkflowOrchestrator = (*TemporalOrderWorkflows)(nil)
	_ ports.WorkflowOrchestrator = (*InlineOrderWorkflows)(nil)
)

// DefaultSettleTimeout is how long a placement whose caller already gave up
// is still awaited before its outcome is reported as unknown.
const DefaultSettleTimeout = 5 * time.Second

// TemporalOrderWorkflows runs order placement as a Temporal workflow and waits for its result.
type TemporalOrderWorkflows struct {
	client        client.Client
	taskQueue     string
	settleTimeout time.Duration
}

// NewTemporalOrderWorkflows wires a Temporal client into the orchestrator.
func NewTemporalOrderWorkflows(c client.Client) *TemporalOrderWorkflows {
	return &TemporalOrderWorkflows{
		client:        c,
		taskQueue:     orderworkflows.OrderPlacementTaskQueue,
		settleTimeout: DefaultSettleTimeout,
	}
}

// PlaceOrder starts the placement workflow. Without a caller key the workflow
// id becomes the idempotency key so activity retries cannot place twice.
//
// The caller's deadline bounds every activity attempt. When the caller gives
// up first, the run is awaited a little longer; if it still has not settled it
// is cancelled and the failure reports KindOutcomeUnknown with the key to
// resubmit under, never a verbatim-retryable kind.
func (o *TemporalOrderWorkflows) PlaceOrder(ctx context.Context, input types.PlaceOrderInput) (*types.PlacementResult, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("temporal order workflows not configured")
	}
	callerKey := strings.TrimSpace(input.IdempotencyKey)
	workflowID := buildPlacementWorkflowID(callerKey)
	if callerKey == "" {
		input.IdempotencyKey = workflowID
	}
	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: o.taskQueue,
	}
	workflowInput := orderworkflows.OrderPlacementWorkflowInput{Command: input, TraceID: workflowTraceID(ctx)}
	if deadline, ok := ctx.Deadline(); ok {
		workflowInput.Deadline = deadline
	}
	run, err := o.client.ExecuteWorkflow(ctx, options, orderworkflows.OrderPlacementWorkflowName, workflowInput)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if !errors.As(err, &alreadyStarted) || callerKey == "" {
			return nil, transientFailure(err)
		}
		// Same key still in flight: wait for that run instead of starting another.
		run = o.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId)
	}
	var result types.PlacementResult
	if err := run.Get(ctx, &result); err != nil {
		if ctx.Err() == nil {
			return nil, decodeWorkflowError(err, input.IdempotencyKey)
		}
		settled, settleErr := o.settle(ctx, run, input.IdempotencyKey)
		if settleErr != nil {
			return nil, settleErr
		}
		result = *settled
	}
	if callerKey == "" {
		result.Replayed = false
	}
	return &result, nil
}

// settle waits for a run whose caller context is already done.
func (o *TemporalOrderWorkflows) settle(ctx context.Context, run client.WorkflowRun, key string) (*types.PlacementResult, error) {
	timeout := o.settleTimeout
	if timeout <= 0 {
		timeout = DefaultSettleTimeout
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var result types.PlacementResult
	err := run.Get(waitCtx, &result)
	if err == nil {
		return &result, nil
	}
	if waitCtx.Err() == nil {
		return nil, decodeWorkflowError(err, key)
	}
	cancelCtx, cancelDone := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancelDone()
	_ = o.client.CancelWorkflow(cancelCtx, run.GetID(), run.GetRunID())
	return nil, outcomeUnknown(key, ctx.Err())
}

// InlineOrderWorkflows executes the service directly without Temporal, useful for tests or dev fallbacks.
type InlineOrderWorkflows struct {
	service ports.Service
}

// NewInlineOrderWorkflows wraps the orders service for synchronous execution.
func NewInlineOrderWorkflows(service ports.Service) *InlineOrderWorkflows {
	return &InlineOrderWorkflows{service: service}
}

// PlaceOrder delegates to the application service without durable orchestration.
func (o *InlineOrderWorkflows) PlaceOrder(ctx context.Context, input types.PlaceOrderInput) (*types.PlacementResult, error) {
	if o == nil || o.service == nil {
		return nil, errors.New("inline order workflows not configured")
	}
	return o.service.PlaceOrder(ctx, input)
}

// decodeWorkflowError restores the order failure carried by the activity's
// application error. A timed out or cancelled run may have committed, so its
// outcome is unknown; anything else means the workflow could not start work.
func decodeWorkflowError(err error, key string) error {
	var timeoutErr *temporal.TimeoutError
	var canceledErr *temporal.CanceledError
	if errors.As(err, &timeoutErr) || errors.As(err, &canceledErr) {
		return outcomeUnknown(key, err)
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case orderactivities.IdempotencyConflictErrorType:
			return fmt.Errorf("%w: %s", ports.ErrIdempotencyConflict, appErr.Message())
		case orderactivities.OrderErrorType:
			var details ordersapp.ErrorDetails
			if appErr.HasDetails() && appErr.Details(&details) == nil {
				return ordersapp.ErrorFromDetails(details)
			}
		}
	}
	return transientFailure(err)
}

func outcomeUnknown(key string, err error) error {
	return &ordersapp.OrderError{
		Kind:           ordersapp.KindOutcomeUnknown,
		Reason:         ordersapp.ReasonPlacementTimedOut,
		IdempotencyKey: key,
		Err:            err,
	}
}

func transientFailure(err error) error {
	return ordersapp.ErrorFromDetails(ordersapp.ErrorDetails{
		Kind:    ordersapp.KindTransientStoreFailure,
		Reason:  ordersapp.ReasonStoreUnavailable,
		Message: err.Error(),
	})
}

func buildPlacementWorkflowID(key string) string {
	if key != "" {
		return fmt.Sprintf("order-placement-idem-%s", hashIdempotencyKey(key))
	}
	return fmt.Sprintf("order-placement-%s", uuid.NewString())
}

func hashIdempotencyKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	// Use the first 16 hex chars to keep workflow IDs readable while remaining deterministic.
	return hex.EncodeToString(sum[:8])
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
