package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	ordersdomain "github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
)

const dateLayout = "2006-01-02"

// PlaceOrderRequest is the transport shape of POST /api/orders.
type PlaceOrderRequest struct {
	CustomerID   int64             `json:"customerId"`
	EmployeeID   int64             `json:"employeeId"`
	DeliveryDate string            `json:"deliveryDate"`
	Status       string            `json:"status"`
	Note         string            `json:"note,omitempty"`
	LineItems    []LineItemRequest `json:"lineItems"`
}

// LineItemRequest is one cart line. unitPrice accepts a JSON number or string.
type LineItemRequest struct {
	ProductID int64           `json:"productId"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// PlaceOrderResponse is returned with 201 Created. Money is rendered as a
// fixed two-decimal string.
type PlaceOrderResponse struct {
	OrderID     int64  `json:"orderId"`
	TotalAmount string `json:"totalAmount"`
}

// Order is the read-back representation of an order with its line items.
type Order struct {
	OrderID      int64      `json:"orderId"`
	CustomerID   int64      `json:"customerId"`
	EmployeeID   int64      `json:"employeeId"`
	DeliveryDate string     `json:"deliveryDate"`
	CreatedAt    time.Time  `json:"createdAt"`
	Status       string     `json:"status"`
	TotalAmount  string     `json:"totalAmount"`
	Note         string     `json:"note,omitempty"`
	LineItems    []LineItem `json:"lineItems"`
}

type LineItem struct {
	ProductID int64  `json:"productId"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

// ProductQuote is the response of GET /api/products/:productId/quote.
type ProductQuote struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Stock     int32  `json:"stock"`
}

// ToPlaceOrderInput converts the request body into the application input.
// Only the delivery date is parsed here; every business rule is left to the
// validator so transport and service report the same reasons.
func ToPlaceOrderInput(req PlaceOrderRequest, idempotencyKey string) (types.PlaceOrderInput, error) {
	delivery, err := ParseDeliveryDate(req.DeliveryDate)
	if err != nil {
		return types.PlaceOrderInput{}, err
	}
	items := make([]types.LineItemInput, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, types.LineItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return types.PlaceOrderInput{
		CustomerID:     req.CustomerID,
		EmployeeID:     req.EmployeeID,
		DeliveryDate:   delivery,
		Status:         req.Status,
		Note:           req.Note,
		LineItems:      items,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}, nil
}

// ParseDeliveryDate accepts YYYY-MM-DD or RFC 3339. An empty value yields the
// zero time so the validator reports it as a missing field.
func ParseDeliveryDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("deliveryDate %q must be YYYY-MM-DD or RFC 3339", raw)
	}
	return t, nil
}

// FromPlacementResult converts the placement outcome to its response body.
func FromPlacementResult(result *types.PlacementResult) PlaceOrderResponse {
	if result == nil {
		return PlaceOrderResponse{}
	}
	return PlaceOrderResponse{OrderID: result.OrderID, TotalAmount: result.Total.StringFixed(2)}
}

// FromDomainOrder converts a domain order to the transport representation.
func FromDomainOrder(order *ordersdomain.Order) Order {
	if order == nil {
		return Order{}
	}
	items := make([]LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Subtotal:  item.Subtotal().StringFixed(2),
		})
	}
	return Order{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		EmployeeID:   order.EmployeeID,
		DeliveryDate: order.DeliveryDate.Format(dateLayout),
		CreatedAt:    order.CreatedAt,
		Status:       string(order.Status),
		TotalAmount:  order.Total.StringFixed(2),
		Note:         order.Note,
		LineItems:    items,
	}
}

func FromProductQuote(quote *types.ProductQuote) ProductQuote {
	if quote == nil {
		return ProductQuote{}
	}
	return ProductQuote{
		ProductID: quote.ProductID,
		Name:      quote.Name,
		UnitPrice: quote.UnitPrice.StringFixed(2),
		Stock:     quote.Stock,
	}
}
