package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
)

// Kind is the machine-readable class of an order failure.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindNotFound              Kind = "not_found"
	KindBusinessRuleViolation Kind = "business_rule_violation"
	KindInsufficientStock     Kind = "insufficient_stock"
	KindStockRaceLost         Kind = "stock_race_lost"
	KindTransientStoreFailure Kind = "transient_store_failure"
	KindInvariantViolation    Kind = "invariant_violation"
	// KindOutcomeUnknown means the caller gave up before the placement
	// settled. It may still commit; only a resubmission under the same
	// idempotency key is safe.
	KindOutcomeUnknown Kind = "outcome_unknown"
)

// Reason narrows a Kind to the specific rule that failed.
type Reason string

const (
	ReasonMissingField         Reason = "MissingField"
	ReasonEmptyCart            Reason = "EmptyCart"
	ReasonInvalidProductID     Reason = "InvalidProductId"
	ReasonInvalidQuantity      Reason = "InvalidQuantity"
	ReasonInvalidUnitPrice     Reason = "InvalidUnitPrice"
	ReasonDuplicateProduct     Reason = "DuplicateProduct"
	ReasonMalformedPayload     Reason = "MalformedPayload"
	ReasonProductNotFound      Reason = "ProductNotFound"
	ReasonCustomerNotFound     Reason = "CustomerNotFound"
	ReasonEmployeeNotFound     Reason = "EmployeeNotFound"
	ReasonOrderNotFound        Reason = "OrderNotFound"
	ReasonCustomerInactive     Reason = "CustomerInactive"
	ReasonInvalidDeliveryDate  Reason = "InvalidDeliveryDate"
	ReasonInvalidStatus        Reason = "InvalidStatus"
	ReasonPriceMismatch        Reason = "PriceMismatch"
	ReasonInsufficientStock    Reason = "InsufficientStock"
	ReasonStockRaceLost        Reason = "StockRaceLost"
	ReasonStoreUnavailable     Reason = "StoreUnavailable"
	ReasonIdentifierUnresolved Reason = "IdentifierUnresolved"
	ReasonPlacementTimedOut    Reason = "PlacementTimedOut"
	ReasonAmountOutOfRange     Reason = "AmountOutOfRange"
)

// OrderError is the structured failure returned by the order use cases.
type OrderError struct {
	Kind        Kind
	Reason      Reason
	Stage       Stage
	ProductID   int64
	ProductName string
	Available   int32
	Requested   int32
	// IdempotencyKey is set when resubmitting under this key is the way to
	// learn the outcome.
	IdempotencyKey string
	Err            error
}

func (e *OrderError) Error() string {
	switch e.Kind {
	case KindInsufficientStock:
		return fmt.Sprintf("insufficient stock for product %q: available %d, requested %d", e.ProductName, e.Available, e.Requested)
	case KindStockRaceLost:
		return fmt.Sprintf("stock for product %d changed while the order was being placed", e.ProductID)
	case KindOutcomeUnknown:
		return fmt.Sprintf("placement did not settle in time; resubmit with idempotency key %q to learn its outcome", e.IdempotencyKey)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *OrderError) Unwrap() error { return e.Err }

// Retryable reports whether the same request may be resubmitted unchanged.
func (e *OrderError) Retryable() bool {
	return e.Kind == KindTransientStoreFailure || e.Kind == KindStockRaceLost
}

// ErrorDetails is the serializable projection of an OrderError, used to carry
// failures across process boundaries.
type ErrorDetails struct {
	Kind        Kind   `json:"kind"`
	Reason      Reason `json:"reason"`
	Stage       Stage  `json:"stage,omitempty"`
	Message     string `json:"message"`
	ProductID   int64  `json:"productId,omitempty"`
	ProductName string `json:"productName,omitempty"`
	Available   int32  `json:"available,omitempty"`
	Requested   int32  `json:"requested,omitempty"`
	// IdempotencyKey travels with outcome-unknown failures.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// Details flattens the error for transport.
func (e *OrderError) Details() ErrorDetails {
	return ErrorDetails{
		Kind:        e.Kind,
		Reason:      e.Reason,
		Stage:       e.Stage,
		Message:     e.Error(),
		ProductID:   e.ProductID,
		ProductName: e.ProductName,
		Available:   e.Available,
		Requested:   e.Requested,

		IdempotencyKey: e.IdempotencyKey,
	}
}

// ErrorFromDetails rebuilds an OrderError from its transported form.
func ErrorFromDetails(d ErrorDetails) *OrderError {
	oe := &OrderError{
		Kind:        d.Kind,
		Reason:      d.Reason,
		Stage:       d.Stage,
		ProductID:   d.ProductID,
		ProductName: d.ProductName,
		Available:   d.Available,
		Requested:   d.Requested,

		IdempotencyKey: d.IdempotencyKey,
	}
	if d.Kind != KindInsufficientStock && d.Kind != KindStockRaceLost && d.Kind != KindOutcomeUnknown && d.Message != "" {
		oe.Err = errors.New(d.Message)
	}
	return oe
}

// AsOrderError extracts an OrderError from err's chain.
func AsOrderError(err error) (*OrderError, bool) {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// IsRetryable reports whether err may be retried verbatim.
func IsRetryable(err error) bool {
	oe, ok := AsOrderError(err)
	return ok && oe.Retryable()
}

func newError(kind Kind, reason Reason, err error) *OrderError {
	return &OrderError{Kind: kind, Reason: reason, Err: err}
}

func insufficientStock(product *domain.Product, requested int32) *OrderError {
	return &OrderError{
		Kind:        KindInsufficientStock,
		Reason:      ReasonInsufficientStock,
		ProductID:   product.ID,
		ProductName: product.Name,
		Available:   product.Stock,
		Requested:   requested,
	}
}

func stockRaceLost(productID int64, requested int32) *OrderError {
	return &OrderError{
		Kind:      KindStockRaceLost,
		Reason:    ReasonStockRaceLost,
		ProductID: productID,
		Requested: requested,
	}
}

// mapError translates domain and store errors into OrderError values.
// Errors that are already classified pass through untouched; unknown errors
// are returned as-is so transports treat them as unexpected.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsOrderError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return newError(KindInvalidInput, ReasonEmptyCart, err)
	case errors.Is(err, domain.ErrInvalidProductID):
		return newError(KindInvalidInput, ReasonInvalidProductID, err)
	case errors.Is(err, domain.ErrInvalidQuantity):
		return newError(KindInvalidInput, ReasonInvalidQuantity, err)
	case errors.Is(err, domain.ErrInvalidUnitPrice),
		errors.Is(err, domain.ErrUnitPriceScale),
		errors.Is(err, domain.ErrUnitPriceRange):
		return newError(KindInvalidInput, ReasonInvalidUnitPrice, err)
	case errors.Is(err, domain.ErrTotalRange),
		errors.Is(err, ports.ErrValueRejected):
		return newError(KindInvalidInput, ReasonAmountOutOfRange, err)
	case errors.Is(err, domain.ErrDuplicateProduct):
		return newError(KindInvalidInput, ReasonDuplicateProduct, err)
	case errors.Is(err, domain.ErrMissingCustomer),
		errors.Is(err, domain.ErrMissingEmployee),
		errors.Is(err, domain.ErrMissingDeliveryDate),
		errors.Is(err, domain.ErrMissingStatus):
		return newError(KindInvalidInput, ReasonMissingField, err)
	case errors.Is(err, domain.ErrInvalidStatus):
		return newError(KindBusinessRuleViolation, ReasonInvalidStatus, err)
	case errors.Is(err, domain.ErrDeliveryDateInPast):
		return newError(KindBusinessRuleViolation, ReasonInvalidDeliveryDate, err)
	case errors.Is(err, ports.ErrNotFound):
		return newError(KindNotFound, ReasonOrderNotFound, err)
	case errors.Is(err, ports.ErrProductNotFound):
		return newError(KindNotFound, ReasonProductNotFound, err)
	case errors.Is(err, ports.ErrCustomerNotFound):
		return newError(KindNotFound, ReasonCustomerNotFound, err)
	case errors.Is(err, ports.ErrEmployeeNotFound):
		return newError(KindNotFound, ReasonEmployeeNotFound, err)
	case errors.Is(err, ports.ErrStockConstraint):
		return newError(KindStockRaceLost, ReasonStockRaceLost, err)
	case errors.Is(err, ports.ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return newError(KindTransientStoreFailure, ReasonStoreUnavailable, err)
	}
	return err
}
