package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	ordersdomain "github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
)

func TestParseDeliveryDate(t *testing.T) {
	got, err := ParseDeliveryDate("2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDeliveryDate("2024-06-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())

	got, err = ParseDeliveryDate("  ")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = ParseDeliveryDate("01/06/2024")
	require.Error(t, err)
}

func TestToPlaceOrderInput_AcceptsNumericAndStringPrices(t *testing.T) {
	var req PlaceOrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"customerId": 1,
		"employeeId": 2,
		"deliveryDate": "2024-06-01",
		"status": "unprocessed",
		"lineItems": [
			{"productId": 1, "quantity": 2, "unitPrice": 19.99},
			{"productId": 2, "quantity": 1, "unitPrice": "5.10"}
		]
	}`), &req))

	input, err := ToPlaceOrderInput(req, " key-1 ")
	require.NoError(t, err)
	assert.Equal(t, "key-1", input.IdempotencyKey)
	require.Len(t, input.LineItems, 2)
	assert.True(t, decimal.RequireFromString("19.99").Equal(input.LineItems[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("5.1").Equal(input.LineItems[1].UnitPrice))
}

func TestFromDomainOrder(t *testing.T) {
	order := &ordersdomain.Order{
		ID:           5,
		CustomerID:   1,
		EmployeeID:   1,
		DeliveryDate: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		Status:       ordersdomain.StatusShipping,
		Total:        decimal.RequireFromString("39.9"),
		Items: []ordersdomain.LineItem{
			{OrderID: 5, ProductID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("13.30")},
		},
	}
	out := FromDomainOrder(order)
	assert.Equal(t, "2024-06-01", out.DeliveryDate)
	assert.Equal(t, "39.90", out.TotalAmount)
	require.Len(t, out.LineItems, 1)
	assert.Equal(t, "39.90", out.LineItems[0].Subtotal)

	assert.Equal(t, PlaceOrderResponse{OrderID: 5, TotalAmount: "12.00"},
		FromPlacementResult(&types.PlacementResult{OrderID: 5, Total: decimal.NewFromInt(12)}))
}
