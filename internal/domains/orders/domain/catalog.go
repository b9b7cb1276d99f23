package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus is the catalog lifecycle of a product.
type ProductStatus string

const (
	ProductActive       ProductStatus = "active"
	ProductDiscontinued ProductStatus = "discontinued"
)

// Product is the catalog row read by order placement. Stock never goes negative.
type Product struct {
	ID         int64
	Name       string
	Brand      string
	UnitPrice  decimal.Decimal
	Stock      int32
	SupplierID *int64
	IntakeDate time.Time
	Status     ProductStatus
}

// CustomerStatus is the lifecycle of a customer.
type CustomerStatus string

const (
	CustomerActive   CustomerStatus = "active"
	CustomerInactive CustomerStatus = "inactive"
)

// Gender is optional customer demographic data.
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderOther       Gender = "other"
)

// Customer is the buyer an order is placed for.
type Customer struct {
	ID        int64
	Name      string
	Gender    Gender
	BirthDate *time.Time
	Phone     string
	Address   string
	Status    CustomerStatus
}

// CanOrder reports whether orders may reference this customer.
func (c *Customer) CanOrder() bool {
	return c != nil && c.Status == CustomerActive
}

// Employee is the staff member recording the order.
type Employee struct {
	ID         int64
	Name       string
	Phone      string
	Email      string
	Title      string
	BaseSalary decimal.Decimal
}
