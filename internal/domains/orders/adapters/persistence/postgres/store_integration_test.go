//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/application"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/application/types"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
	"github.com/Apurer/retail-backoffice/internal/platform/migrations"
)

func setupOrdersPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("backoffice_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = migrations.Run(db)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&[]productRecord{
		{ID: 1, Name: "Keyboard", UnitPrice: decimal.NewFromInt(500), Stock: 10, Status: "active", IntakeDate: time.Now()},
		{ID: 2, Name: "Monitor", UnitPrice: decimal.NewFromInt(1000), Stock: 5, Status: "active", IntakeDate: time.Now()},
	}).Error)
	require.NoError(t, db.Create(&[]customerRecord{
		{ID: 1, Name: "Active", Phone: "+100", Status: "active"},
		{ID: 2, Name: "Dormant", Phone: "+200", Status: "inactive"},
	}).Error)
	require.NoError(t, db.Create(&employeeRecord{ID: 1, Name: "Clerk"}).Error)
}

func placement(lines ...types.LineItemInput) types.PlaceOrderInput {
	return types.PlaceOrderInput{
		CustomerID:   1,
		EmployeeID:   1,
		DeliveryDate: time.Now().AddDate(0, 0, 1),
		Status:       "unprocessed",
		LineItems:    lines,
	}
}

func TestStore_PlaceOrderCommitsHeaderItemsAndStock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()
	seedCatalog(t, db)

	store := NewStore(db)
	svc := application.NewService(store)
	ctx := context.Background()

	result, err := svc.PlaceOrder(ctx, placement(
		types.LineItemInput{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(500)},
		types.LineItemInput{ProductID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(1000)},
	))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2000).Equal(result.Total))

	order, err := store.GetOrder(ctx, result.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(1), order.Items[0].ProductID)
	assert.Equal(t, int64(2), order.Items[1].ProductID)
	assert.Equal(t, domain.StatusUnprocessed, order.Status)
	assert.False(t, order.CreatedAt.IsZero())

	p1, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(8), p1.Stock)
	p2, err := store.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(4), p2.Stock)
}

func TestStore_ConcurrentPlacementsDoNotOversell(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()
	seedCatalog(t, db)

	store := NewStore(db)
	svc := application.NewService(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(ctx, placement(
				types.LineItemInput{ProductID: 2, Quantity: 3, UnitPrice: decimal.NewFromInt(1000)},
			))
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err == nil {
			continue
		}
		failures++
		oe, ok := application.AsOrderError(err)
		require.True(t, ok, "unexpected error %v", err)
		assert.Contains(t, []application.Kind{application.KindStockRaceLost, application.KindInsufficientStock}, oe.Kind)
	}
	assert.Equal(t, 1, failures)

	p2, err := store.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p2.Stock)

	var orders int64
	require.NoError(t, db.Model(&orderRecord{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)
}

func TestStore_IdempotencyKeyReplaysCommittedOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()
	seedCatalog(t, db)

	store := NewStore(db)
	svc := application.NewService(store)
	ctx := context.Background()

	input := placement(types.LineItemInput{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(500)})
	input.IdempotencyKey = "retry-me"

	first, err := svc.PlaceOrder(ctx, input)
	require.NoError(t, err)
	second, err := svc.PlaceOrder(ctx, input)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.OrderID, second.OrderID)

	p1, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(9), p1.Stock)

	purged, err := store.PurgeIdempotencyKeys(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestStore_FailedPlacementLeavesNoTrace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()
	seedCatalog(t, db)

	store := NewStore(db)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		id, err := tx.InsertOrder(ctx, &domain.Order{
			CustomerID:   1,
			EmployeeID:   1,
			DeliveryDate: time.Now(),
			CreatedAt:    tx.StartedAt(),
			Status:       domain.StatusUnprocessed,
			Total:        decimal.NewFromInt(500),
		})
		require.NoError(t, err)
		require.NoError(t, tx.InsertLineItem(ctx, domain.LineItem{OrderID: id, ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(500)}))
		applied, err := tx.DecrementStock(ctx, 1, 1)
		require.NoError(t, err)
		require.True(t, applied)

		applied, err = tx.DecrementStock(ctx, 2, 6)
		require.NoError(t, err)
		require.False(t, applied)
		return ports.ErrTransient
	})
	require.ErrorIs(t, err, ports.ErrTransient)

	var orders, items int64
	require.NoError(t, db.Model(&orderRecord{}).Count(&orders).Error)
	require.NoError(t, db.Model(&lineItemRecord{}).Count(&items).Error)
	assert.Zero(t, orders)
	assert.Zero(t, items)

	p1, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(10), p1.Stock)
}

func TestStore_StockCheckConstraintIsClassified(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()
	seedCatalog(t, db)

	err := classify(db.Exec("UPDATE products SET stock = -1 WHERE id = 1").Error)
	require.ErrorIs(t, err, ports.ErrStockConstraint)

	err = classify(db.Exec("UPDATE products SET unit_price = -1 WHERE id = 1").Error)
	require.ErrorIs(t, err, ports.ErrValueRejected)
	require.NotErrorIs(t, err, ports.ErrStockConstraint)

	err = classify(db.Exec("UPDATE products SET unit_price = 10000000000000 WHERE id = 1").Error)
	require.ErrorIs(t, err, ports.ErrValueRejected)

	_, err = NewStore(db).GetOrder(context.Background(), 999)
	require.ErrorIs(t, err, ports.ErrNotFound)
}
