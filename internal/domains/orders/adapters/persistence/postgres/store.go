package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
)

var _ ports.Store = (*Store)(nil)

// Store persists orders in PostgreSQL using GORM and reads the catalog tables
// that order placement depends on.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

type Option func(*Store)

// WithLogger attaches a logger used for rollback diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore wires a PostgreSQL-backed store. Caller manages DB lifecycle and
// applies the schema via the migrations package.
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type productRecord struct {
	ID         int64           `gorm:"primaryKey;column:id"`
	Name       string          `gorm:"column:name"`
	Brand      string          `gorm:"column:brand"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2)"`
	Stock      int32           `gorm:"column:stock"`
	SupplierID *int64          `gorm:"column:supplier_id"`
	IntakeDate time.Time       `gorm:"column:intake_date;type:date"`
	Status     string          `gorm:"column:status"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

type customerRecord struct {
	ID        int64      `gorm:"primaryKey;column:id"`
	Name      string     `gorm:"column:name"`
	Gender    string     `gorm:"column:gender"`
	BirthDate *time.Time `gorm:"column:birth_date;type:date"`
	Phone     string     `gorm:"column:phone"`
	Address   string     `gorm:"column:address"`
	Status    string     `gorm:"column:status"`
}

func (customerRecord) TableName() string { return "customers" }

type employeeRecord struct {
	ID         int64           `gorm:"primaryKey;column:id"`
	Name       string          `gorm:"column:name"`
	Phone      string          `gorm:"column:phone"`
	Email      string          `gorm:"column:email"`
	Title      string          `gorm:"column:title"`
	BaseSalary decimal.Decimal `gorm:"column:base_salary;type:numeric(14,2)"`
}

func (employeeRecord) TableName() string { return "employees" }

type orderRecord struct {
	ID           int64           `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID   int64           `gorm:"column:customer_id"`
	EmployeeID   int64           `gorm:"column:employee_id"`
	DeliveryDate time.Time       `gorm:"column:delivery_date;type:date"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime:false"`
	Status       string          `gorm:"column:status"`
	Total        decimal.Decimal `gorm:"column:total;type:numeric(14,2)"`
	Note         string          `gorm:"column:note"`
}

func (orderRecord) TableName() string { return "orders" }

type lineItemRecord struct {
	OrderID   int64           `gorm:"primaryKey;column:order_id"`
	ProductID int64           `gorm:"primaryKey;column:product_id"`
	Position  int             `gorm:"column:position"`
	Quantity  int32           `gorm:"column:quantity"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2)"`
}

func (lineItemRecord) TableName() string { return "order_line_items" }

type idempotencyRecord struct {
	Key         string          `gorm:"primaryKey;column:key;size:255"`
	RequestHash string          `gorm:"column:request_hash;size:128"`
	OrderID     int64           `gorm:"column:order_id"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(14,2)"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime:false"`
}

func (idempotencyRecord) TableName() string { return "order_idempotency_keys" }

// GetProduct fetches a catalog row by identifier.
func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var record productRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrProductNotFound
		}
		return nil, classify(err)
	}
	return record.toDomain(), nil
}

// GetCustomer fetches a customer by identifier.
func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var record customerRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrCustomerNotFound
		}
		return nil, classify(err)
	}
	return &domain.Customer{
		ID:        record.ID,
		Name:      record.Name,
		Gender:    domain.Gender(record.Gender),
		BirthDate: record.BirthDate,
		Phone:     record.Phone,
		Address:   record.Address,
		Status:    domain.CustomerStatus(record.Status),
	}, nil
}

// GetEmployee fetches an employee by identifier.
func (s *Store) GetEmployee(ctx context.Context, id int64) (*domain.Employee, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var record employeeRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrEmployeeNotFound
		}
		return nil, classify(err)
	}
	return &domain.Employee{
		ID:         record.ID,
		Name:       record.Name,
		Phone:      record.Phone,
		Email:      record.Email,
		Title:      record.Title,
		BaseSalary: record.BaseSalary,
	}, nil
}

// GetOrder fetches an order header and its line items in cart order.
func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var record orderRecord
	if err := db.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, classify(err)
	}
	var items []lineItemRecord
	if err := db.Where("order_id = ?", id).Order("position").Find(&items).Error; err != nil {
		return nil, classify(err)
	}
	order := record.toDomain()
	order.Items = make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		order.Items = append(order.Items, domain.LineItem{
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return order, nil
}

// GetIdempotencyRecord loads a record by key, returning nil when absent.
func (s *Store) GetIdempotencyRecord(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var record idempotencyRecord
	if err := s.db.WithContext(ctx).First(&record, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &ports.IdempotencyRecord{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		OrderID:     record.OrderID,
		Total:       record.Total,
		CreatedAt:   record.CreatedAt,
	}, nil
}

// PurgeIdempotencyKeys removes keys recorded before cutoff. Use for housekeeping or cron.
func (s *Store) PurgeIdempotencyKeys(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&idempotencyRecord{})
	if result.Error != nil {
		return 0, classify(result.Error)
	}
	return result.RowsAffected, nil
}

// WithinTx runs fn inside a READ COMMITTED transaction. GORM commits when fn
// returns nil and rolls back on error or panic.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		var startedAt time.Time
		// now() is fixed at transaction start in PostgreSQL.
		if err := gtx.Raw("SELECT now()").Row().Scan(&startedAt); err != nil {
			return err
		}
		return fn(ctx, &pgTx{db: gtx, startedAt: startedAt})
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil && s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "order transaction rolled back", slog.String("error", err.Error()))
	}
	return classify(err)
}

type pgTx struct {
	db        *gorm.DB
	startedAt time.Time
	position  int
}

func (t *pgTx) StartedAt() time.Time { return t.startedAt }

// InsertOrder relies on INSERT ... RETURNING id, so the identifier belongs to
// this row even under concurrent inserts.
func (t *pgTx) InsertOrder(ctx context.Context, order *domain.Order) (int64, error) {
	if order == nil {
		return 0, errors.New("order is nil")
	}
	record := orderRecord{
		CustomerID:   order.CustomerID,
		EmployeeID:   order.EmployeeID,
		DeliveryDate: order.DeliveryDate,
		CreatedAt:    order.CreatedAt,
		Status:       string(order.Status),
		Total:        order.Total,
		Note:         order.Note,
	}
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Create(&record).Error; err != nil {
		return 0, err
	}
	return record.ID, nil
}

func (t *pgTx) InsertLineItem(ctx context.Context, item domain.LineItem) error {
	t.position++
	record := lineItemRecord{
		OrderID:   item.OrderID,
		ProductID: item.ProductID,
		Position:  t.position,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
	}
	return t.db.WithContext(ctx).Create(&record).Error
}

// DecrementStock issues one guarded UPDATE; the affected row count tells
// whether the stock still covered qty at write time.
func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int32) (bool, error) {
	result := t.db.WithContext(ctx).
		Model(&productRecord{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (t *pgTx) RecordIdempotencyKey(ctx context.Context, record ports.IdempotencyRecord) error {
	dbRecord := idempotencyRecord{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		OrderID:     record.OrderID,
		Total:       record.Total,
		CreatedAt:   record.CreatedAt,
	}
	if err := t.db.WithContext(ctx).Create(&dbRecord).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrIdempotencyKeyExists
		}
		return err
	}
	return nil
}

func (s *Store) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres order store not configured")
	}
	return nil
}

func (r productRecord) toDomain() *domain.Product {
	return &domain.Product{
		ID:         r.ID,
		Name:       r.Name,
		Brand:      r.Brand,
		UnitPrice:  r.UnitPrice,
		Stock:      r.Stock,
		SupplierID: r.SupplierID,
		IntakeDate: r.IntakeDate,
		Status:     domain.ProductStatus(r.Status),
	}
}

func (r orderRecord) toDomain() *domain.Order {
	return &domain.Order{
		ID:           r.ID,
		CustomerID:   r.CustomerID,
		EmployeeID:   r.EmployeeID,
		DeliveryDate: r.DeliveryDate,
		CreatedAt:    r.CreatedAt,
		Status:       domain.Status(r.Status),
		Total:        r.Total,
		Note:         r.Note,
	}
}

// classify tags driver errors with the store sentinels the application maps.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23514" && strings.Contains(pgErr.ConstraintName, "stock"):
			return fmt.Errorf("%w: %w", ports.ErrStockConstraint, err)
		case pgErr.Code == "23514", // check_violation
			pgErr.Code == "22003": // numeric_value_out_of_range
			return fmt.Errorf("%w: %w", ports.ErrValueRejected, err)
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "40001", // serialization_failure
			pgErr.Code == "40P01", // deadlock_detected
			pgErr.Code == "53300", // too_many_connections
			pgErr.Code == "57P01": // admin_shutdown
			return fmt.Errorf("%w: %w", ports.ErrTransient, err)
		}
		return err
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if !errors.Is(err, ports.ErrTransient) {
			return fmt.Errorf("%w: %w", ports.ErrTransient, err)
		}
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %w", ports.ErrTransient, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
