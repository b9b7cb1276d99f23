package ports

import (
	"context"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
)

// Service exposes order placement use cases to adapters.
type Service interface {
	PlaceOrder(ctx context.Context, input types.PlaceOrderInput) (*types.PlacementResult, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	QuoteProduct(ctx context.Context, id int64) (*types.ProductQuote, error)
}
