package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
)

// PriceCheck selects how caller-supplied unit prices are treated.
type PriceCheck string

const (
	// PriceCheckTrust accepts the caller's unit price as the price of sale.
	PriceCheckTrust PriceCheck = "trust"
	// PriceCheckStrict rejects lines whose price differs from the catalog.
	PriceCheckStrict PriceCheck = "strict"
)

// ParsePriceCheck parses a configuration value; empty means trust.
func ParsePriceCheck(raw string) (PriceCheck, error) {
	switch PriceCheck(strings.TrimSpace(strings.ToLower(raw))) {
	case "", PriceCheckTrust:
		return PriceCheckTrust, nil
	case PriceCheckStrict:
		return PriceCheckStrict, nil
	default:
		return "", fmt.Errorf("unknown price check mode %q", raw)
	}
}

// Command is a placement request that passed validation.
type Command struct {
	CustomerID   int64
	EmployeeID   int64
	DeliveryDate time.Time
	Status       domain.Status
	Note         string
	Cart         domain.Cart
}

// Validator checks a placement request against the catalog without writing.
// The first failing rule aborts validation.
type Validator struct {
	catalog    ports.CatalogReader
	now        func() time.Time
	priceCheck PriceCheck
	location   *time.Location
}

// NewValidator builds a validator reading from catalog.
func NewValidator(catalog ports.CatalogReader, now func() time.Time, priceCheck PriceCheck) *Validator {
	if now == nil {
		now = time.Now
	}
	if priceCheck == "" {
		priceCheck = PriceCheckTrust
	}
	return &Validator{catalog: catalog, now: now, priceCheck: priceCheck, location: time.UTC}
}

// InLocation sets the shop location whose calendar day decides whether a
// delivery date is in the past.
func (v *Validator) InLocation(loc *time.Location) *Validator {
	if loc != nil {
		v.location = loc
	}
	return v
}

// Validate runs every placement rule in order: required fields, status,
// delivery date, customer, employee, cart shape, then each line against stock.
func (v *Validator) Validate(ctx context.Context, input types.PlaceOrderInput) (*Command, error) {
	cmd, err := buildCommand(input)
	if err != nil {
		return nil, mapError(err)
	}
	if err := domain.ValidateDeliveryDate(cmd.DeliveryDate, v.now(), v.location); err != nil {
		return nil, mapError(err)
	}
	if err := v.checkCustomer(ctx, cmd.CustomerID); err != nil {
		return nil, err
	}
	if _, err := v.catalog.GetEmployee(ctx, cmd.EmployeeID); err != nil {
		return nil, mapError(fmt.Errorf("employee %d: %w", cmd.EmployeeID, err))
	}
	if err := cmd.Cart.Validate(); err != nil {
		return nil, mapError(err)
	}
	for _, line := range cmd.Cart {
		if err := v.checkLine(ctx, line); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

func buildCommand(input types.PlaceOrderInput) (*Command, error) {
	if input.CustomerID <= 0 {
		return nil, domain.ErrMissingCustomer
	}
	if input.EmployeeID <= 0 {
		return nil, domain.ErrMissingEmployee
	}
	if input.DeliveryDate.IsZero() {
		return nil, domain.ErrMissingDeliveryDate
	}
	status, err := domain.ParseStatus(input.Status)
	if err != nil {
		return nil, err
	}
	cart := make(domain.Cart, 0, len(input.LineItems))
	for _, item := range input.LineItems {
		cart = append(cart, domain.CartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return &Command{
		CustomerID:   input.CustomerID,
		EmployeeID:   input.EmployeeID,
		DeliveryDate: domain.DateOnly(input.DeliveryDate),
		Status:       status,
		Note:         strings.TrimSpace(input.Note),
		Cart:         cart,
	}, nil
}

func (v *Validator) checkCustomer(ctx context.Context, id int64) error {
	customer, err := v.catalog.GetCustomer(ctx, id)
	if err != nil {
		return mapError(fmt.Errorf("customer %d: %w", id, err))
	}
	if !customer.CanOrder() {
		return newError(KindBusinessRuleViolation, ReasonCustomerInactive,
			fmt.Errorf("customer %d is %s", id, customer.Status))
	}
	return nil
}

func (v *Validator) checkLine(ctx context.Context, line domain.CartLine) error {
	product, err := v.catalog.GetProduct(ctx, line.ProductID)
	if err != nil {
		oerr := mapError(fmt.Errorf("product %d: %w", line.ProductID, err))
		if oe, ok := AsOrderError(oerr); ok {
			oe.ProductID = line.ProductID
		}
		return oerr
	}
	if product.Stock < line.Quantity {
		return insufficientStock(product, line.Quantity)
	}
	if v.priceCheck == PriceCheckStrict && !product.UnitPrice.Equal(line.UnitPrice) {
		oe := newError(KindBusinessRuleViolation, ReasonPriceMismatch,
			fmt.Errorf("unit price %s for product %q does not match catalog price %s",
				line.UnitPrice.String(), product.Name, product.UnitPrice.String()))
		oe.ProductID = product.ID
		oe.ProductName = product.Name
		return oe
	}
	return nil
}
