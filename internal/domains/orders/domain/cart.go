package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart        = errors.New("cart must contain at least one line item")
	ErrInvalidProductID = errors.New("product id must be greater than zero")
	ErrInvalidQuantity  = errors.New("quantity must be greater than zero")
	ErrInvalidUnitPrice = errors.New("unit price must be greater than zero")
	ErrUnitPriceScale   = errors.New("unit price must have at most two decimal places")
	ErrUnitPriceRange   = errors.New("unit price exceeds the largest storable amount")
	ErrTotalRange       = errors.New("order total exceeds the largest storable amount")
	ErrDuplicateProduct = errors.New("product appears more than once in cart")
)

// MoneyScale is the number of decimal places stored for every amount.
const MoneyScale = 2

// MaxAmount is the largest price or total the store can hold (numeric(14,2)).
var MaxAmount = decimal.RequireFromString("999999999999.99")

// CartLine is one requested line item as supplied by the caller.
type CartLine struct {
	ProductID int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

// Cart is the ordered list of requested line items for one order.
type Cart []CartLine

// Validate checks the structural invariants of the cart in the given order
// and reports the first offending line.
func (c Cart) Validate() error {
	if len(c) == 0 {
		return ErrEmptyCart
	}
	seen := make(map[int64]struct{}, len(c))
	for i, line := range c {
		if line.ProductID <= 0 {
			return fmt.Errorf("line %d: %w", i+1, ErrInvalidProductID)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("line %d (product %d): %w", i+1, line.ProductID, ErrInvalidQuantity)
		}
		if !line.UnitPrice.IsPositive() {
			return fmt.Errorf("line %d (product %d): %w", i+1, line.ProductID, ErrInvalidUnitPrice)
		}
		if !line.UnitPrice.Equal(line.UnitPrice.Truncate(MoneyScale)) {
			return fmt.Errorf("line %d (product %d): %w", i+1, line.ProductID, ErrUnitPriceScale)
		}
		if line.UnitPrice.GreaterThan(MaxAmount) {
			return fmt.Errorf("line %d (product %d): %w", i+1, line.ProductID, ErrUnitPriceRange)
		}
		if _, dup := seen[line.ProductID]; dup {
			return fmt.Errorf("line %d (product %d): %w", i+1, line.ProductID, ErrDuplicateProduct)
		}
		seen[line.ProductID] = struct{}{}
	}
	if c.Total().GreaterThan(MaxAmount) {
		return ErrTotalRange
	}
	return nil
}

// Total sums quantity × caller-supplied unit price over every line.
// Catalog prices are deliberately not consulted.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)))
	}
	return total
}

// LineItems converts the cart into order line items for orderID.
func (c Cart) LineItems(orderID int64) []LineItem {
	items := make([]LineItem, 0, len(c))
	for _, line := range c {
		items = append(items, LineItem{
			OrderID:   orderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return items
}
