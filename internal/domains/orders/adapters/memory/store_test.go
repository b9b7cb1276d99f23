package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Apurer/retail-backoffice/internal/domains/orders/domain"
	"github.com/Apurer/retail-backoffice/internal/domains/orders/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seededStore(t *testing.T, stock int32) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.PutProduct(domain.Product{ID: 1, Name: "Widget", UnitPrice: decimal.NewFromInt(4), Stock: stock}))
	return s
}

func TestWithinTx_CommitsStagedWrites(t *testing.T) {
	s := seededStore(t, 10)
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	s.WithClock(func() time.Time { return now })

	var orderID int64
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		assert.Equal(t, now, tx.StartedAt())
		id, err := tx.InsertOrder(ctx, &domain.Order{CustomerID: 1, EmployeeID: 1, Total: decimal.NewFromInt(12)})
		if err != nil {
			return err
		}
		orderID = id
		if err := tx.InsertLineItem(ctx, domain.LineItem{OrderID: id, ProductID: 1, Quantity: 3, UnitPrice: decimal.NewFromInt(4)}); err != nil {
			return err
		}
		applied, err := tx.DecrementStock(ctx, 1, 3)
		require.True(t, applied)
		return err
	})
	require.NoError(t, err)

	order, err := s.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	p, err := s.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(7), p.Stock)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := seededStore(t, 10)
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		id, err := tx.InsertOrder(ctx, &domain.Order{CustomerID: 1})
		require.NoError(t, err)
		require.NoError(t, tx.InsertLineItem(ctx, domain.LineItem{OrderID: id, ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(1)}))
		_, err = tx.DecrementStock(ctx, 1, 2)
		require.NoError(t, err)
		require.NoError(t, tx.RecordIdempotencyKey(ctx, ports.IdempotencyRecord{Key: "k"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, s.Orders())
	p, _ := s.GetProduct(context.Background(), 1)
	assert.Equal(t, int32(10), p.Stock)
	record, err := s.GetIdempotencyRecord(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestWithinTx_CancelledContextDiscardsWrites(t *testing.T) {
	s := seededStore(t, 10)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		_, err := tx.DecrementStock(ctx, 1, 4)
		cancel()
		return err
	})
	require.ErrorIs(t, err, ports.ErrTransient)
	p, _ := s.GetProduct(context.Background(), 1)
	assert.Equal(t, int32(10), p.Stock)
}

func TestDecrementStock_GuardsAgainstNegativeStock(t *testing.T) {
	s := seededStore(t, 5)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		applied, err := tx.DecrementStock(ctx, 1, 3)
		require.NoError(t, err)
		assert.True(t, applied)
		applied, err = tx.DecrementStock(ctx, 1, 3)
		require.NoError(t, err)
		assert.False(t, applied, "staged decrements count against stock")
		applied, err = tx.DecrementStock(ctx, 99, 1)
		require.NoError(t, err)
		assert.False(t, applied, "unknown product matches no row")
		return nil
	})
	require.NoError(t, err)
	p, _ := s.GetProduct(context.Background(), 1)
	assert.Equal(t, int32(2), p.Stock)
}

func TestPutProduct_WaitsForOpenTransaction(t *testing.T) {
	s := seededStore(t, 5)
	var restocked atomic.Bool
	done := make(chan struct{})

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		applied, err := tx.DecrementStock(ctx, 1, 4)
		require.NoError(t, err)
		require.True(t, applied)
		go func() {
			defer close(done)
			assert.NoError(t, s.PutProduct(domain.Product{ID: 1, Name: "Widget", UnitPrice: decimal.NewFromInt(4), Stock: 1}))
			restocked.Store(true)
		}()
		assert.Never(t, restocked.Load, 50*time.Millisecond, 5*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	<-done

	p, err := s.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.Stock, "the catalog write lands after the commit")
}

func TestCommit_RechecksStockBeforeApplying(t *testing.T) {
	s := seededStore(t, 5)
	tx := &memTx{store: s, orders: map[int64]*domain.Order{}, decrements: map[int64]int32{1: 4}}
	tx.keys = append(tx.keys, ports.IdempotencyRecord{Key: "k-1"})
	s.mu.Lock()
	s.products[1] = domain.Product{ID: 1, Name: "Widget", UnitPrice: decimal.NewFromInt(4), Stock: 2}
	s.mu.Unlock()

	err := tx.commit()
	require.ErrorIs(t, err, ports.ErrStockConstraint)

	p, err := s.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.Stock)
	rec, err := s.GetIdempotencyRecord(context.Background(), "k-1")
	require.NoError(t, err)
	assert.Nil(t, rec, "a rejected commit stages nothing")
}

func TestInsertOrder_AssignsDistinctIdentifiers(t *testing.T) {
	s := seededStore(t, 1)
	ids := map[int64]struct{}{}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
			id, err := tx.InsertOrder(ctx, &domain.Order{CustomerID: 1, EmployeeID: 1, Total: decimal.NewFromInt(10)})
			ids[id] = struct{}{}
			return err
		}))
	}
	assert.Len(t, ids, 3)
}

func TestRecordIdempotencyKey_RejectsDuplicates(t *testing.T) {
	s := seededStore(t, 1)
	record := ports.IdempotencyRecord{Key: "abc", RequestHash: "h", OrderID: 1, Total: decimal.NewFromInt(1)}
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.RecordIdempotencyKey(ctx, record)
	}))

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.RecordIdempotencyKey(ctx, record)
	})
	require.ErrorIs(t, err, ports.ErrIdempotencyKeyExists)
}

func TestPurgeIdempotencyKeys(t *testing.T) {
	s := seededStore(t, 1)
	old := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(48 * time.Hour)
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		if err := tx.RecordIdempotencyKey(ctx, ports.IdempotencyRecord{Key: "old", CreatedAt: old}); err != nil {
			return err
		}
		return tx.RecordIdempotencyKey(ctx, ports.IdempotencyRecord{Key: "fresh", CreatedAt: fresh})
	}))

	purged, err := s.PurgeIdempotencyKeys(context.Background(), old.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	record, _ := s.GetIdempotencyRecord(context.Background(), "fresh")
	assert.NotNil(t, record)
}

func TestPutCustomer_PhoneIsUnique(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.PutCustomer(domain.Customer{ID: 1, Phone: "+1"}))
	require.Error(t, s.PutCustomer(domain.Customer{ID: 2, Phone: "+1"}))
	require.NoError(t, s.PutCustomer(domain.Customer{ID: 1, Phone: "+1", Name: "renamed"}))
}

func TestWithinTx_ConcurrentDecrementsNeverOversell(t *testing.T) {
	const (
		stock   = 50
		workers = 16
		perTx   = 4
	)
	s := seededStore(t, stock)
	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
				ok, err := tx.DecrementStock(ctx, 1, perTx)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("race lost")
				}
				applied.Add(perTx)
				return nil
			})
		}()
	}
	wg.Wait()

	p, err := s.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Stock, int32(0))
	assert.Equal(t, int32(stock)-applied.Load(), p.Stock)
	assert.Equal(t, int32(stock/perTx*perTx), applied.Load())
}
