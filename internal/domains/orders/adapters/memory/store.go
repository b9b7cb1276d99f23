package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
)

var _ ports.Store = (*Store)(nil)

// Store is an in-memory inventory store for development and tests.
// Transactions are serialized and stage their writes until commit, so other
// readers never observe a header without its line items.
type Store struct {
	txMu sync.Mutex

	mu          sync.RWMutex
	products    map[int64]domain.Product
	customers   map[int64]domain.Customer
	employees   map[int64]domain.Employee
	orders      map[int64]domain.Order
	idempotency map[string]ports.IdempotencyRecord
	nextOrderID int64
	now         func() time.Time
}

// NewStore constructs an empty store.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.reset()
	return s
}

// WithClock overrides the time source for deterministic testing.
func (s *Store) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Reset drops every row, including catalog data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Store) reset() {
	s.products = map[int64]domain.Product{}
	s.customers = map[int64]domain.Customer{}
	s.employees = map[int64]domain.Employee{}
	s.orders = map[int64]domain.Order{}
	s.idempotency = map[string]ports.IdempotencyRecord{}
	s.nextOrderID = 0
}

// PutProduct inserts or replaces a catalog row. It waits for any open
// transaction so a restock never lands between a staged decrement and commit.
func (s *Store) PutProduct(p domain.Product) error {
	if p.ID <= 0 {
		return domain.ErrInvalidProductID
	}
	if p.Stock < 0 {
		return ports.ErrStockConstraint
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

// PutCustomer inserts or replaces a customer. Phone numbers are unique.
func (s *Store) PutCustomer(c domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	phone := strings.TrimSpace(c.Phone)
	if phone != "" {
		for id, existing := range s.customers {
			if id != c.ID && existing.Phone == phone {
				return fmt.Errorf("customer phone %q already registered", phone)
			}
		}
	}
	s.customers[c.ID] = c
	return nil
}

// PutEmployee inserts or replaces an employee.
func (s *Store) PutEmployee(e domain.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrTransient, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ports.ErrProductNotFound
	}
	return &p, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrTransient, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, ports.ErrCustomerNotFound
	}
	return &c, nil
}

func (s *Store) GetEmployee(ctx context.Context, id int64) (*domain.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrTransient, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return nil, ports.ErrEmployeeNotFound
	}
	return &e, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	clone := cloneOrder(order)
	return &clone, nil
}

// Orders returns every committed order sorted by identifier.
func (s *Store) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		list = append(list, cloneOrder(order))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (s *Store) GetIdempotencyRecord(_ context.Context, key string) (*ports.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.idempotency[key]
	if !ok {
		return nil, nil
	}
	rec := record
	return &rec, nil
}

// PurgeIdempotencyKeys removes keys recorded before cutoff.
func (s *Store) PurgeIdempotencyKeys(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for key, record := range s.idempotency {
		if record.CreatedAt.Before(cutoff) {
			delete(s.idempotency, key)
			purged++
		}
	}
	return purged, nil
}

// WithinTx runs fn against a staged transaction and applies its writes only
// when fn succeeds and ctx is still live.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if fn == nil {
		return errors.New("transaction function is nil")
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrTransient, err)
	}

	tx := &memTx{
		store:      s,
		startedAt:  s.now(),
		orders:     map[int64]*domain.Order{},
		decrements: map[int64]int32{},
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrTransient, err)
	}
	return tx.commit()
}

type memTx struct {
	store      *Store
	startedAt  time.Time
	orders     map[int64]*domain.Order
	orderIDs   []int64
	decrements map[int64]int32
	keys       []ports.IdempotencyRecord
}

func (t *memTx) StartedAt() time.Time { return t.startedAt }

func (t *memTx) InsertOrder(_ context.Context, order *domain.Order) (int64, error) {
	if order == nil {
		return 0, errors.New("order is nil")
	}
	t.store.mu.Lock()
	t.store.nextOrderID++
	id := t.store.nextOrderID
	t.store.mu.Unlock()

	staged := *order
	staged.ID = id
	staged.Items = nil
	t.orders[id] = &staged
	t.orderIDs = append(t.orderIDs, id)
	return id, nil
}

func (t *memTx) InsertLineItem(_ context.Context, item domain.LineItem) error {
	order, ok := t.orders[item.OrderID]
	if !ok {
		return fmt.Errorf("line item references unknown order %d", item.OrderID)
	}
	for _, existing := range order.Items {
		if existing.ProductID == item.ProductID {
			return fmt.Errorf("duplicate line item for order %d product %d", item.OrderID, item.ProductID)
		}
	}
	t.store.mu.RLock()
	_, known := t.store.products[item.ProductID]
	t.store.mu.RUnlock()
	if !known {
		return fmt.Errorf("line item references unknown product %d: %w", item.ProductID, ports.ErrProductNotFound)
	}
	order.Items = append(order.Items, item)
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, qty int32) (bool, error) {
	t.store.mu.RLock()
	product, ok := t.store.products[productID]
	t.store.mu.RUnlock()
	if !ok {
		return false, nil
	}
	remaining := product.Stock - t.decrements[productID]
	if remaining < qty {
		return false, nil
	}
	t.decrements[productID] += qty
	return true, nil
}

func (t *memTx) RecordIdempotencyKey(_ context.Context, record ports.IdempotencyRecord) error {
	t.store.mu.RLock()
	_, taken := t.store.idempotency[record.Key]
	t.store.mu.RUnlock()
	if taken {
		return ports.ErrIdempotencyKeyExists
	}
	for _, staged := range t.keys {
		if staged.Key == record.Key {
			return ports.ErrIdempotencyKeyExists
		}
	}
	t.keys = append(t.keys, record)
	return nil
}

// commit applies staged writes atomically. Decrements are re-checked against
// current stock and the whole transaction is dropped if any would go negative.
func (t *memTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for productID, qty := range t.decrements {
		product, ok := s.products[productID]
		if !ok || product.Stock < qty {
			return fmt.Errorf("%w: product %d", ports.ErrStockConstraint, productID)
		}
	}
	for productID, qty := range t.decrements {
		product := s.products[productID]
		product.Stock -= qty
		s.products[productID] = product
	}
	for _, id := range t.orderIDs {
		s.orders[id] = cloneOrder(*t.orders[id])
	}
	for _, record := range t.keys {
		s.idempotency[record.Key] = record
	}
	return nil
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = append([]domain.LineItem(nil), order.Items...)
	return clone
}
