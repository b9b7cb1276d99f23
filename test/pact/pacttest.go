//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	ProviderName = "backoffice-api"
	ConsumerName = "sales-desk"

	StateCatalogSeeded    = "catalog with products 1 and 3 and customer 1"
	StateOrderExists      = "order for customer 1 exists"
	StateOrderMissing     = "no order with id 999"
	StateStockExhausted   = "product 3 has 5 units left"
	StateInactiveCustomer = "customer 2 is inactive"
)

const (
	ActiveCustomerID   int64 = 1
	InactiveCustomerID int64 = 2
	EmployeeID         int64 = 1

	LaptopProductID int64 = 1
	DockProductID   int64 = 3
	DockStock       int32 = 5

	MissingOrderID int64 = 999
)

const (
	exampleDeliveryDate = "2099-01-15"
	exampleStatus       = "unprocessed"
)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the canonical pact file path for the sales desk consumer.
func PactFile(t testing.TB) string {
	t.Helper()
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExampleOrderPayload is a placement the seeded catalog can always satisfy.
func ExampleOrderPayload() map[string]any {
	return map[string]any{
		"customerId":   ActiveCustomerID,
		"employeeId":   EmployeeID,
		"deliveryDate": exampleDeliveryDate,
		"status":       exampleStatus,
		"lineItems": []map[string]any{
			{"productId": LaptopProductID, "quantity": 1, "unitPrice": "1000.00"},
		},
	}
}

// ExampleOversizedOrderPayload asks for one more dock than is in stock.
func ExampleOversizedOrderPayload() map[string]any {
	return map[string]any{
		"customerId":   ActiveCustomerID,
		"employeeId":   EmployeeID,
		"deliveryDate": exampleDeliveryDate,
		"status":       exampleStatus,
		"lineItems": []map[string]any{
			{"productId": DockProductID, "quantity": DockStock + 1, "unitPrice": "89.90"},
		},
	}
}

// ExampleInactiveCustomerPayload places an otherwise valid order for a dormant customer.
func ExampleInactiveCustomerPayload() map[string]any {
	payload := ExampleOrderPayload()
	payload["customerId"] = InactiveCustomerID
	return payload
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
