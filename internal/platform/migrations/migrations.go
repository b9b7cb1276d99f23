package migrations

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Run applies the back-office schema. Tables are created parents first so the
// foreign keys declared on the child records resolve.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&productRecord{},
		&customerRecord{},
		&employeeRecord{},
		&orderRecord{},
		&lineItemRecord{},
		&idempotencyRecord{},
	)
}

// Product schema mirrors the catalog rows read by the orders Postgres adapter.
// The stock check is the storage-level guard against overselling.
type productRecord struct {
	ID         int64           `gorm:"primaryKey;column:id"`
	Name       string          `gorm:"column:name;not null"`
	Brand      string          `gorm:"column:brand"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null;check:chk_products_unit_price,unit_price >= 0"`
	Stock      int32           `gorm:"column:stock;not null;default:0;check:chk_products_stock,stock >= 0"`
	SupplierID *int64          `gorm:"column:supplier_id;index"`
	IntakeDate time.Time       `gorm:"column:intake_date;type:date"`
	Status     string          `gorm:"column:status;type:varchar(32);not null;default:active"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

type customerRecord struct {
	ID        int64      `gorm:"primaryKey;column:id"`
	Name      string     `gorm:"column:name;not null"`
	Gender    string     `gorm:"column:gender;type:varchar(16)"`
	BirthDate *time.Time `gorm:"column:birth_date;type:date"`
	Phone     string     `gorm:"column:phone;uniqueIndex"`
	Address   string     `gorm:"column:address"`
	Status    string     `gorm:"column:status;type:varchar(32);not null;default:active"`
}

func (customerRecord) TableName() string { return "customers" }

type employeeRecord struct {
	ID         int64           `gorm:"primaryKey;column:id"`
	Name       string          `gorm:"column:name;not null"`
	Phone      string          `gorm:"column:phone"`
	Email      string          `gorm:"column:email"`
	Title      string          `gorm:"column:title"`
	BaseSalary decimal.Decimal `gorm:"column:base_salary;type:numeric(14,2)"`
}

func (employeeRecord) TableName() string { return "employees" }

// Order schema mirrors the orders Postgres adapter header row.
type orderRecord struct {
	ID           int64            `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID   int64            `gorm:"column:customer_id;not null;index"`
	Customer     customerRecord   `gorm:"foreignKey:CustomerID;constraint:OnDelete:RESTRICT"`
	EmployeeID   int64            `gorm:"column:employee_id;not null;index"`
	Employee     employeeRecord   `gorm:"foreignKey:EmployeeID;constraint:OnDelete:RESTRICT"`
	DeliveryDate time.Time        `gorm:"column:delivery_date;type:date;not null"`
	CreatedAt    time.Time        `gorm:"column:created_at;not null;index"`
	Status       string           `gorm:"column:status;type:varchar(32);not null;index"`
	Total        decimal.Decimal  `gorm:"column:total;type:numeric(14,2);not null;check:chk_orders_total,total >= 0"`
	Note         string           `gorm:"column:note"`
	Items        []lineItemRecord `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (orderRecord) TableName() string { return "orders" }

// Line items are keyed by (order, product); position keeps cart order for reads.
type lineItemRecord struct {
	OrderID   int64           `gorm:"primaryKey;column:order_id"`
	ProductID int64           `gorm:"primaryKey;column:product_id"`
	Product   productRecord   `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Position  int             `gorm:"column:position;not null"`
	Quantity  int32           `gorm:"column:quantity;not null;check:chk_line_items_quantity,quantity > 0"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null;check:chk_line_items_unit_price,unit_price > 0"`
}

func (lineItemRecord) TableName() string { return "order_line_items" }

// Idempotency schema mirrors the keys recorded alongside placed orders.
type idempotencyRecord struct {
	Key         string          `gorm:"primaryKey;column:key;size:255"`
	RequestHash string          `gorm:"column:request_hash;size:128;not null"`
	OrderID     int64           `gorm:"column:order_id;not null"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(14,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null;index"`
}

func (idempotencyRecord) TableName() string { return "order_idempotency_keys" }
