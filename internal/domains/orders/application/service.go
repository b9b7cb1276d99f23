package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
)

// Stage names the step of a placement that was being attempted.
type Stage string

const (
	StageValidating        Stage = "validating"
	StagePricing           Stage = "pricing"
	StageHeaderInserted    Stage = "header_inserted"
	StageLineItemsInserted Stage = "line_items_inserted"
	StageCommitted         Stage = "committed"
)

// Service orchestrates order placement: validation, pricing and the single
// transaction that writes the header, its line items and the stock decrements.
type Service struct {
	store      ports.Store
	now        func() time.Time
	priceCheck PriceCheck
	location   *time.Location
}

type Option func(*Service)

// WithClock overrides the time source used for delivery date checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the shop's location; delivery dates are compared with
// the calendar day there. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithPriceCheck selects whether unit prices are re-checked against the catalog.
func WithPriceCheck(mode PriceCheck) Option {
	return func(s *Service) {
		if mode != "" {
			s.priceCheck = mode
		}
	}
}

// NewService wires the order service with its store.
func NewService(store ports.Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, priceCheck: PriceCheckTrust, location: time.UTC}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// PlaceOrder validates the request, prices it and commits the order with its
// line items and stock decrements as one unit of work.
func (s *Service) PlaceOrder(ctx context.Context, input types.PlaceOrderInput) (*types.PlacementResult, error) {
	if s.store == nil {
		return nil, errors.New("order store not configured")
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	var fingerprint string
	if key != "" {
		fp, err := FingerprintPlaceOrder(input)
		if err != nil {
			return nil, err
		}
		fingerprint = fp
		replayed, err := s.replay(ctx, key, fingerprint)
		if err != nil || replayed != nil {
			return replayed, err
		}
	}

	validator := NewValidator(s.store, s.now, s.priceCheck).InLocation(s.location)
	cmd, err := validator.Validate(ctx, input)
	if err != nil {
		return nil, atStage(err, StageValidating)
	}

	total := cmd.Cart.Total()

	var result *types.PlacementResult
	stage := StageHeaderInserted
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		order := &domain.Order{
			CustomerID:   cmd.CustomerID,
			EmployeeID:   cmd.EmployeeID,
			DeliveryDate: cmd.DeliveryDate,
			CreatedAt:    tx.StartedAt(),
			Status:       cmd.Status,
			Total:        total,
			Note:         cmd.Note,
		}
		orderID, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		if orderID <= 0 {
			return newError(KindInvariantViolation, ReasonIdentifierUnresolved,
				fmt.Errorf("order insert returned identifier %d", orderID))
		}

		stage = StageLineItemsInserted
		for _, item := range cmd.Cart.LineItems(orderID) {
			if err := tx.InsertLineItem(ctx, item); err != nil {
				return err
			}
			applied, err := tx.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !applied {
				return stockRaceLost(item.ProductID, item.Quantity)
			}
		}

		if key != "" {
			record := ports.IdempotencyRecord{
				Key:         key,
				RequestHash: fingerprint,
				OrderID:     orderID,
				Total:       total,
				CreatedAt:   tx.StartedAt(),
			}
			if err := tx.RecordIdempotencyKey(ctx, record); err != nil {
				return err
			}
		}
		stage = StageCommitted
		result = &types.PlacementResult{OrderID: orderID, Total: total}
		return nil
	})
	if err != nil {
		if key != "" && errors.Is(err, ports.ErrIdempotencyKeyExists) {
			// A concurrent request with the same key committed first.
			replayed, rerr := s.replay(ctx, key, fingerprint)
			if rerr != nil || replayed != nil {
				return replayed, rerr
			}
		}
		return nil, atStage(mapError(err), stage)
	}
	return result, nil
}

// GetOrder loads a committed order with its line items.
func (s *Service) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return order, nil
}

// QuoteProduct returns the current catalog price and stock of a product.
func (s *Service) QuoteProduct(ctx context.Context, id int64) (*types.ProductQuote, error) {
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &types.ProductQuote{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.UnitPrice,
		Stock:     product.Stock,
	}, nil
}

func (s *Service) replay(ctx context.Context, key, fingerprint string) (*types.PlacementResult, error) {
	record, err := s.store.GetIdempotencyRecord(ctx, key)
	if err != nil {
		return nil, mapError(err)
	}
	if record == nil {
		return nil, nil
	}
	if record.RequestHash != fingerprint {
		return nil, fmt.Errorf("%w: key %q was used for a different order request", ports.ErrIdempotencyConflict, key)
	}
	return &types.PlacementResult{OrderID: record.OrderID, Total: record.Total, Replayed: true}, nil
}

func atStage(err error, stage Stage) error {
	if oe, ok := AsOrderError(err); ok && oe.Stage == "" {
		oe.Stage = stage
	}
	return err
}

var _ ports.Service = (*Service)(nil)
