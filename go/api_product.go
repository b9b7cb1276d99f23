package backofficeserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	ordermapper "github.com/Apurer/retail-backoffice/internal/domains/orders/adapters/http/mapper"
	ordersports "github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
)

// ProductAPI exposes the catalog reads a cart is built from.
type ProductAPI struct {
	service ordersports.Service
}

func NewProductAPI(service ordersports.Service) ProductAPI {
	return ProductAPI{service: service}
}

// Get /api/products/:productId/quote
// Current unit price and stock of a product
func (api *ProductAPI) QuoteProduct(c *gin.Context) {
	id, ok := bindIDParam(c, "productId")
	if !ok {
		return
	}
	quote, err := api.service.QuoteProduct(c.Request.Context(), id)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromProductQuote(quote))
}

// HealthAPI reports process liveness and, when a check is wired, store reachability.
type HealthAPI struct {
	check func(ctx context.Context) error
}

func NewHealthAPI(check func(ctx context.Context) error) HealthAPI {
	return HealthAPI{check: check}
}

// Get /healthz
func (api *HealthAPI) Healthz(c *gin.Context) {
	if api.check != nil {
		if err := api.check(c.Request.Context()); err != nil {
			respondProblem(c, problemUnavailable(err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
