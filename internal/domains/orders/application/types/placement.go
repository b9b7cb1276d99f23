package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlaceOrderInput is the validated shape of an order placement request.
// Optional fields are Note and IdempotencyKey; everything else is required.
type PlaceOrderInput struct {
	CustomerID     int64
	EmployeeID     int64
	DeliveryDate   time.Time
	Status         string
	Note           string
	LineItems      []LineItemInput
	IdempotencyKey string
}

// LineItemInput is one requested cart entry.
type LineItemInput struct {
	ProductID int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

// PlacementResult is returned for a committed (or replayed) placement.
type PlacementResult struct {
	OrderID  int64
	Total    decimal.Decimal
	Replayed bool
}

// ProductQuote is the catalog view a caller uses to build a cart.
type ProductQuote struct {
	ProductID int64
	Name      string
	UnitPrice decimal.Decimal
	Stock     int32
}
