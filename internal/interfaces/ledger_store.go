package interfaces

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
)

// ErrDuplicateIdempotencyKey is returned by AppendTransaction when the subject
// already recorded a row under the same idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

// LedgerStore is the append-only transaction relation. Rows are never updated
// or deleted once appended.
type LedgerStore interface {
	// AppendTransaction inserts tx and returns it with its assigned sequence id.
	AppendTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	// FindByIdempotencyKey looks up a previously appended row for subjectID.
	FindByIdempotencyKey(ctx context.Context, subjectID, key string) (models.Transaction, bool, error)
	// ListTransactions returns at most limit rows for subjectID ordered by
	// (timestamp DESC, sequence_id DESC), starting strictly after before when
	// it is non-nil.
	ListTransactions(ctx context.Context, subjectID string, before *models.Cursor, limit int) ([]models.Transaction, error)
	// Summarize totals the creator and pool shares recorded for subjectID.
	Summarize(ctx context.Context, subjectID string) (models.Summary, error)
	Close() error
}
