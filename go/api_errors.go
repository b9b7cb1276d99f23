package backofficeserver

import (
	"errors"

	"github.com/gin-gonic/gin"

	ordersapp "github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	ordersports "github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
	apierrors "github.com/Apurer/retail-backoffice/internal/shared/errors"
)

// problems renders order failures first and falls back to the shared mapping.
var problems = apierrors.NewChainedResponder("", orderErrorMapper)

// respondProblem maps a ProblemDetail through the shared responder.
func respondProblem(c *gin.Context, problem apierrors.ProblemDetail) {
	problems.Respond(c, problem)
}

// respondMalformed rejects a body or parameter the transport could not decode.
func respondMalformed(c *gin.Context, err error) {
	respondProblem(c, apierrors.ErrBadRequest.
		WithDetail(err.Error()).
		WithExtension("kind", string(ordersapp.KindInvalidInput)).
		WithExtension("reason", string(ordersapp.ReasonMalformedPayload)).
		WithExtension(apierrors.ExtensionRetryable, false))
}

// respondOrderError renders service failures. Retryable ones carry Retry-After;
// unsettled placements echo the key to resubmit under.
func respondOrderError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	if oe, ok := ordersapp.AsOrderError(err); ok && oe.IdempotencyKey != "" {
		c.Header(IdempotencyKeyHeader, oe.IdempotencyKey)
	}
	problems.RespondError(c, err)
}

// orderErrorMapper translates order failures into problem details carrying
// the machine-readable kind and reason.
func orderErrorMapper(err error) (apierrors.ProblemDetail, bool) {
	if errors.Is(err, ordersports.ErrIdempotencyConflict) {
		return apierrors.ErrConflict.
			WithDetail(err.Error()).
			WithExtension("kind", "idempotency_conflict").
			WithExtension(apierrors.ExtensionRetryable, false), true
	}
	oe, ok := ordersapp.AsOrderError(err)
	if !ok {
		return apierrors.ProblemDetail{}, false
	}
	problem := problemForKind(oe.Kind).
		WithDetail(oe.Error()).
		WithExtension("kind", string(oe.Kind)).
		WithExtension("reason", string(oe.Reason)).
		WithExtension(apierrors.ExtensionRetryable, oe.Retryable())
	if oe.Stage != "" {
		problem = problem.WithExtension("stage", string(oe.Stage))
	}
	if oe.ProductID != 0 {
		problem = problem.WithExtension("productId", oe.ProductID)
	}
	if oe.ProductName != "" {
		problem = problem.WithExtension("productName", oe.ProductName)
	}
	if oe.IdempotencyKey != "" {
		problem = problem.WithExtension("idempotencyKey", oe.IdempotencyKey)
	}
	if oe.Kind == ordersapp.KindInsufficientStock {
		problem = problem.
			WithExtension("available", oe.Available).
			WithExtension("requested", oe.Requested)
	}
	return problem, true
}

func problemForKind(kind ordersapp.Kind) apierrors.ProblemDetail {
	switch kind {
	case ordersapp.KindInvalidInput:
		return apierrors.ErrValidation
	case ordersapp.KindBusinessRuleViolation:
		return apierrors.ErrBusinessRule
	case ordersapp.KindInsufficientStock:
		return apierrors.ErrInsufficientStock
	case ordersapp.KindNotFound:
		return apierrors.ErrNotFound
	case ordersapp.KindStockRaceLost:
		return apierrors.ErrStockRaceLost
	case ordersapp.KindTransientStoreFailure:
		return apierrors.ErrServiceUnavailable
	case ordersapp.KindOutcomeUnknown:
		return apierrors.ErrOutcomeUnknown
	default:
		return apierrors.ErrInternal
	}
}

func problemUnavailable(err error) apierrors.ProblemDetail {
	return apierrors.ErrServiceUnavailable.WithDetail(err.Error())
}
