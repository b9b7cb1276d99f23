package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/temporal"

	ordersapp "github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
	orderactivities "github.com/Apurer/retail-backoffice/internal/durable/temporal/activities/orders"
	orderworkflows "github.com/Apurer/retail-backoffice/internal/durable/temporal/workflows/orders"
)

func TestBuildPlacementWorkflowID(t *testing.T) {
	keyed := buildPlacementWorkflowID("desk-42")
	assert.Equal(t, keyed, buildPlacementWorkflowID("desk-42"))
	assert.True(t, strings.HasPrefix(keyed, "order-placement-idem-"))
	assert.Len(t, strings.TrimPrefix(keyed, "order-placement-idem-"), 16)

	generated := buildPlacementWorkflowID("")
	assert.True(t, strings.HasPrefix(generated, "order-placement-"))
	assert.NotEqual(t, generated, buildPlacementWorkflowID(""))
}

func TestDecodeWorkflowError_RestoresOrderError(t *testing.T) {
	original := ordersapp.ErrorFromDetails(ordersapp.ErrorDetails{
		Kind:        ordersapp.KindInsufficientStock,
		Reason:      ordersapp.ReasonInsufficientStock,
		Stage:       ordersapp.StageValidating,
		ProductID:   3,
		ProductName: "USB-C Dock",
		Available:   5,
		Requested:   6,
	})
	wrapped := fmt.Errorf("workflow execution error: %w", orderactivities.ToApplicationError(original))

	oe, ok := ordersapp.AsOrderError(decodeWorkflowError(wrapped, "k"))
	require.True(t, ok)
	assert.Equal(t, ordersapp.KindInsufficientStock, oe.Kind)
	assert.Equal(t, ordersapp.StageValidating, oe.Stage)
	assert.Equal(t, int64(3), oe.ProductID)
	assert.Equal(t, int32(5), oe.Available)
	assert.Equal(t, int32(6), oe.Requested)
}

func TestDecodeWorkflowError_IdempotencyConflict(t *testing.T) {
	err := orderactivities.ToApplicationError(fmt.Errorf("%w: reused", ports.ErrIdempotencyConflict))
	assert.ErrorIs(t, decodeWorkflowError(err, "k"), ports.ErrIdempotencyConflict)
}

func TestDecodeWorkflowError_UnknownFailureIsTransient(t *testing.T) {
	for _, err := range []error{
		errors.New("workflow timed out"),
		temporal.NewApplicationError("panic in activity", "PanicError"),
	} {
		oe, ok := ordersapp.AsOrderError(decodeWorkflowError(err, "k"))
		require.True(t, ok)
		assert.Equal(t, ordersapp.KindTransientStoreFailure, oe.Kind)
		assert.True(t, oe.Retryable())
	}
}

func TestDecodeWorkflowError_TimeoutOrCancelIsUnknown(t *testing.T) {
	for _, err := range []error{
		temporal.NewTimeoutError(enumspb.TIMEOUT_TYPE_SCHEDULE_TO_CLOSE, nil),
		fmt.Errorf("workflow execution error: %w", temporal.NewCanceledError()),
	} {
		oe, ok := ordersapp.AsOrderError(decodeWorkflowError(err, "desk-7"))
		require.True(t, ok)
		assert.Equal(t, ordersapp.KindOutcomeUnknown, oe.Kind)
		assert.Equal(t, "desk-7", oe.IdempotencyKey)
		assert.False(t, oe.Retryable())
	}
}

func expiredContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	t.Cleanup(cancel)
	<-ctx.Done()
	return ctx
}

func newMockedOrchestrator(t *testing.T) (*TemporalOrderWorkflows, *mocks.Client, *mocks.WorkflowRun) {
	t.Helper()
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	t.Cleanup(func() {
		c.AssertExpectations(t)
		run.AssertExpectations(t)
	})
	o := NewTemporalOrderWorkflows(c)
	o.settleTimeout = 50 * time.Millisecond
	return o, c, run
}

func TestTemporalOrderWorkflows_PassesCallerDeadline(t *testing.T) {
	o, c, run := newMockedOrchestrator(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	want, _ := ctx.Deadline()

	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, orderworkflows.OrderPlacementWorkflowName,
		mock.MatchedBy(func(in orderworkflows.OrderPlacementWorkflowInput) bool {
			return in.Deadline.Equal(want) && in.Command.IdempotencyKey != ""
		})).Return(run, nil).Once()
	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(1).(*types.PlacementResult) = types.PlacementResult{OrderID: 11, Replayed: true}
	}).Return(nil).Once()

	result, err := o.PlaceOrder(ctx, types.PlaceOrderInput{CustomerID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(11), result.OrderID)
	assert.False(t, result.Replayed, "generated keys never replay")
}

func TestTemporalOrderWorkflows_CallerTimeoutAwaitsSettledOutcome(t *testing.T) {
	o, c, run := newMockedOrchestrator(t)
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(run, nil).Once()
	run.On("Get", mock.Anything, mock.Anything).Return(context.DeadlineExceeded).Once()
	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(1).(*types.PlacementResult) = types.PlacementResult{OrderID: 12}
	}).Return(nil).Once()

	result, err := o.PlaceOrder(expiredContext(t), types.PlaceOrderInput{CustomerID: 1, IdempotencyKey: "desk-8"})
	require.NoError(t, err, "a run that committed after the caller gave up is still reported as placed")
	assert.Equal(t, int64(12), result.OrderID)
	c.AssertNotCalled(t, "CancelWorkflow", mock.Anything, mock.Anything, mock.Anything)
}

func TestTemporalOrderWorkflows_CallerTimeoutCancelsUnsettledRun(t *testing.T) {
	o, c, run := newMockedOrchestrator(t)
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(run, nil).Once()
	run.On("Get", mock.Anything, mock.Anything).Return(context.DeadlineExceeded).Twice()
	run.On("GetID").Return("order-placement-x")
	run.On("GetRunID").Return("run-1")
	c.On("CancelWorkflow", mock.Anything, "order-placement-x", "run-1").Return(nil).Once()

	_, err := o.PlaceOrder(expiredContext(t), types.PlaceOrderInput{CustomerID: 1})
	oe, ok := ordersapp.AsOrderError(err)
	require.True(t, ok)
	assert.Equal(t, ordersapp.KindOutcomeUnknown, oe.Kind)
	assert.False(t, oe.Retryable(), "an unsettled placement must not be retried verbatim")
	assert.True(t, strings.HasPrefix(oe.IdempotencyKey, "order-placement-"))
}

func TestTemporalOrderWorkflows_CallerTimeoutWithDefiniteRejection(t *testing.T) {
	o, c, run := newMockedOrchestrator(t)
	rejection := orderactivities.ToApplicationError(ordersapp.ErrorFromDetails(ordersapp.ErrorDetails{
		Kind:   ordersapp.KindNotFound,
		Reason: ordersapp.ReasonProductNotFound,
	}))
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(run, nil).Once()
	run.On("Get", mock.Anything, mock.Anything).Return(context.DeadlineExceeded).Once()
	run.On("Get", mock.Anything, mock.Anything).Return(rejection).Once()

	_, err := o.PlaceOrder(expiredContext(t), types.PlaceOrderInput{CustomerID: 1, IdempotencyKey: "desk-9"})
	oe, ok := ordersapp.AsOrderError(err)
	require.True(t, ok)
	assert.Equal(t, ordersapp.KindNotFound, oe.Kind)
}

type stubService struct {
	ports.Service
	got types.PlaceOrderInput
}

func (s *stubService) PlaceOrder(_ context.Context, input types.PlaceOrderInput) (*types.PlacementResult, error) {
	s.got = input
	return &types.PlacementResult{OrderID: 7}, nil
}

func TestInlineOrderWorkflows_Delegates(t *testing.T) {
	svc := &stubService{}
	result, err := NewInlineOrderWorkflows(svc).PlaceOrder(context.Background(), types.PlaceOrderInput{CustomerID: 9, IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.OrderID)
	assert.Equal(t, "k", svc.got.IdempotencyKey)

	_, err = (&TemporalOrderWorkflows{}).PlaceOrder(context.Background(), types.PlaceOrderInput{})
	require.Error(t, err)
}
