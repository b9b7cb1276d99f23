package memory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
)

// NewDemoStore returns a store seeded with a small catalog so the API is
// usable without PostgreSQL.
func NewDemoStore() *Store {
	s := NewStore()
	intake := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	products := []domain.Product{
		{ID: 1, Name: "Laptop 14\"", Brand: "Acme", UnitPrice: decimal.RequireFromString("1000.00"), Stock: 10, IntakeDate: intake, Status: domain.ProductActive},
		{ID: 2, Name: "Wireless Mouse", Brand: "Acme", UnitPrice: decimal.RequireFromString("25.50"), Stock: 200, IntakeDate: intake, Status: domain.ProductActive},
		{ID: 3, Name: "USB-C Dock", Brand: "Portly", UnitPrice: decimal.RequireFromString("89.90"), Stock: 5, IntakeDate: intake, Status: domain.ProductActive},
	}
	for _, p := range products {
		_ = s.PutProduct(p)
	}
	_ = s.PutCustomer(domain.Customer{ID: 1, Name: "Demo Customer", Phone: "+10000000001", Address: "1 Main St", Status: domain.CustomerActive})
	_ = s.PutCustomer(domain.Customer{ID: 2, Name: "Dormant Customer", Phone: "+10000000002", Status: domain.CustomerInactive})
	s.PutEmployee(domain.Employee{ID: 1, Name: "Demo Clerk", Title: "Sales", BaseSalary: decimal.RequireFromString("1500.00")})
	return s
}
