package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrTransient marks store failures that may succeed when retried verbatim
	// (connectivity loss, serialization failures, deadlines).
	ErrTransient = errors.New("transient store failure")
	// ErrStockConstraint is raised when the store itself refuses a decrement
	// that would drive stock negative.
	ErrStockConstraint = errors.New("stock constraint violated")

	// ErrValueRejected reports a value the schema refused (check or range).
	ErrValueRejected = errors.New("value rejected by store constraint")
)

// CatalogReader exposes the point reads order placement needs from the
// catalog, customer and employee tables.
type CatalogReader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	GetEmployee(ctx context.Context, id int64) (*domain.Employee, error)
}

// Store is the inventory store collaborator. Writes only happen inside WithinTx.
type Store interface {
	CatalogReader
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	GetIdempotencyRecord(ctx context.Context, key string) (*IdempotencyRecord, error)
	// WithinTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and ctx is still live; any error rolls it back. tx must not
	// be used after fn returns.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is a single open transaction owned by one placement.
type Tx interface {
	// StartedAt is the store clock reading taken when the transaction began.
	StartedAt() time.Time
	// InsertOrder inserts the header row and returns the identifier assigned by
	// the insert itself.
	InsertOrder(ctx context.Context, order *domain.Order) (int64, error)
	InsertLineItem(ctx context.Context, item domain.LineItem) error
	// DecrementStock subtracts qty only while stock >= qty. It reports false
	// when no row satisfied the guard.
	DecrementStock(ctx context.Context, productID int64, qty int32) (bool, error)
	// RecordIdempotencyKey stores the key; ErrIdempotencyKeyExists when taken.
	RecordIdempotencyKey(ctx context.Context, record IdempotencyRecord) error
}
