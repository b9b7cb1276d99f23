package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates order processing states.
type Status string

const (
	StatusUnprocessed Status = "unprocessed"
	StatusShipping    Status = "shipping"
	StatusCompleted   Status = "completed"
)

var (
	ErrInvalidStatus       = errors.New("order status is invalid")
	ErrDeliveryDateInPast  = errors.New("delivery date is in the past")
	ErrMissingCustomer     = errors.New("customer id is required")
	ErrMissingEmployee     = errors.New("employee id is required")
	ErrMissingDeliveryDate = errors.New("delivery date is required")
	ErrMissingStatus       = errors.New("order status is required")
)

// Order is the order header aggregate together with its line items.
type Order struct {
	ID           int64
	CustomerID   int64
	EmployeeID   int64
	DeliveryDate time.Time
	CreatedAt    time.Time
	Status       Status
	Total        decimal.Decimal
	Note         string
	Items        []LineItem
}

// LineItem is one product row of an order. UnitPrice is the price at the time of sale.
type LineItem struct {
	OrderID   int64
	ProductID int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity × unit price.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// ParseStatus normalizes a transport value into a known status.
func ParseStatus(raw string) (Status, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return "", ErrMissingStatus
	}
	status := Status(raw)
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusUnprocessed, StatusShipping, StatusCompleted:
		return true
	default:
		return false
	}
}

// ValidateDeliveryDate rejects a delivery whose calendar date, as written,
// falls before today in the shop's location. A nil location means UTC.
func ValidateDeliveryDate(delivery, now time.Time, shop *time.Location) error {
	if delivery.IsZero() {
		return ErrMissingDeliveryDate
	}
	if shop == nil {
		shop = time.UTC
	}
	dy, dm, dd := delivery.Date()
	ty, tm, td := now.In(shop).Date()
	if time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC).Before(time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)) {
		return ErrDeliveryDateInPast
	}
	return nil
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
