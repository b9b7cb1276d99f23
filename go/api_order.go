package backofficeserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	ordermapper "github.com/Apurer/retail-backoffice/internal/domains/orders/adapters/http/mapper"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	ordersports "github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
)

// IdempotencyKeyHeader carries the client-chosen key of a placement.
const IdempotencyKeyHeader = "Idempotency-Key"

// DefaultPlacementTimeout bounds a placement when no timeout is configured.
const DefaultPlacementTimeout = 10 * time.Second

// OrderAPI wires HTTP transport with the orders service and workflows.
type OrderAPI struct {
	service   ordersports.Service
	workflows ordersports.WorkflowOrchestrator
	timeout   time.Duration
}

// NewOrderAPI creates an OrderAPI. workflows may be nil to place orders
// directly through the service; timeout <= 0 selects DefaultPlacementTimeout.
func NewOrderAPI(service ordersports.Service, workflows ordersports.WorkflowOrchestrator, timeout time.Duration) OrderAPI {
	if timeout <= 0 {
		timeout = DefaultPlacementTimeout
	}
	return OrderAPI{service: service, workflows: workflows, timeout: timeout}
}

// Post /api/orders
// Place an order with its line items
func (api *OrderAPI) PlaceOrder(c *gin.Context) {
	var payload ordermapper.PlaceOrderRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMalformed(c, err)
		return
	}
	input, err := ordermapper.ToPlaceOrderInput(payload, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		respondMalformed(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), api.placementTimeout())
	defer cancel()
	result, err := api.placeOrder(ctx, input)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	if result.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusCreated, ordermapper.FromPlacementResult(result))
}

func (api *OrderAPI) placeOrder(ctx context.Context, input types.PlaceOrderInput) (*types.PlacementResult, error) {
	if api.workflows != nil {
		return api.workflows.PlaceOrder(ctx, input)
	}
	return api.service.PlaceOrder(ctx, input)
}

func (api *OrderAPI) placementTimeout() time.Duration {
	if api.timeout <= 0 {
		return DefaultPlacementTimeout
	}
	return api.timeout
}

// Get /api/orders/:orderId
// Find order by ID
func (api *OrderAPI) GetOrderById(c *gin.Context) {
	id, ok := bindIDParam(c, "orderId")
	if !ok {
		return
	}
	order, err := api.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromDomainOrder(order))
}

// bindIDParam decodes a simple-style integer path parameter.
func bindIDParam(c *gin.Context, name string) (int64, bool) {
	var id int64
	if err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, c.Param(name), &id); err != nil {
		respondMalformed(c, err)
		return 0, false
	}
	return id, true
}
