package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
)

type normalizedPlaceOrderInput struct {
	CustomerID   int64                `json:"customerId"`
	EmployeeID   int64                `json:"employeeId"`
	DeliveryDate string               `json:"deliveryDate"`
	Status       string               `json:"status"`
	Note         string               `json:"note"`
	LineItems    []normalizedLineItem `json:"lineItems"`
}

type normalizedLineItem struct {
	ProductID int64  `json:"productId"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

// FingerprintPlaceOrder builds a deterministic hash of the placement request
// (excluding the idempotency key). Line order is significant.
func FingerprintPlaceOrder(input types.PlaceOrderInput) (string, error) {
	normalized := normalizedPlaceOrderInput{
		CustomerID: input.CustomerID,
		EmployeeID: input.EmployeeID,
		Status:     input.Status,
		Note:       input.Note,
		LineItems:  make([]normalizedLineItem, 0, len(input.LineItems)),
	}
	if !input.DeliveryDate.IsZero() {
		normalized.DeliveryDate = input.DeliveryDate.Format("2006-01-02")
	}
	for _, item := range input.LineItems {
		normalized.LineItems = append(normalized.LineItems, normalizedLineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
		})
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
