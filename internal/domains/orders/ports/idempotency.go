package ports

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrIdempotencyConflict indicates the same key was used with a different payload.
	ErrIdempotencyConflict = errors.New("idempotency conflict")
	// ErrIdempotencyKeyExists is returned by Tx.RecordIdempotencyKey when another
	// placement already committed the key.
	ErrIdempotencyKeyExists = errors.New("idempotency key already recorded")
)

// IdempotencyRecord associates a client-supplied key with the order it produced.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	OrderID     int64
	Total       decimal.Decimal
	CreatedAt   time.Time
}
