package memory

import (
	"context" // request-scoped cancellation
	"sort"
	"sync" // guards the rows slice

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/split-ledger-gateway/internal/interfaces" // interface LedgerStore
	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"                // domain models: Transaction
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// It keeps rows in append order and is safe for concurrent use.
type MemoryLedgerStore struct {
	mu      sync.RWMutex
	rows    []models.Transaction
	byKey   map[string]int // subject + key -> index into rows
	nextSeq int64
}

// NewMemoryLedgerStore creates and returns a new MemoryLedgerStore instance
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		rows:    make([]models.Transaction, 0),
		byKey:   make(map[string]int),
		nextSeq: 1,
	}
}

func idempotencyIndex(subjectID, key string) string {
	return subjectID + "\x00" + key
}

// AppendTransaction assigns the next sequence id and stores tx.
func (m *MemoryLedgerStore) AppendTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return models.Transaction{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.IdempotencyKey != "" {
		if _, exists := m.byKey[idempotencyIndex(tx.SubjectID, tx.IdempotencyKey)]; exists {
			return models.Transaction{}, interfaces.ErrDuplicateIdempotencyKey
		}
	}

	tx.SequenceID = m.nextSeq
	tx.CreatedAt = models.NormalizeTimestamp(tx.CreatedAt)
	m.nextSeq++
	m.rows = append(m.rows, tx)
	if tx.IdempotencyKey != "" {
		m.byKey[idempotencyIndex(tx.SubjectID, tx.IdempotencyKey)] = len(m.rows) - 1
	}
	return tx, nil
}

func (m *MemoryLedgerStore) FindByIdempotencyKey(ctx context.Context, subjectID, key string) (models.Transaction, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Transaction{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, exists := m.byKey[idempotencyIndex(subjectID, key)]
	if !exists {
		return models.Transaction{}, false, nil
	}
	return m.rows[idx], true, nil
}

// ListTransactions scans the subject's rows and applies the keyset predicate.
// The scan is linear; the memory store backs tests and local runs only.
func (m *MemoryLedgerStore) ListTransactions(ctx context.Context, subjectID string, before *models.Cursor, limit int) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var result []models.Transaction
	for _, tx := range m.rows {
		if tx.SubjectID != subjectID {
			continue
		}
		if before != nil && !before.Before(tx) {
			continue
		}
		result = append(result, tx)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.SequenceID > b.SequenceID
	})
	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryLedgerStore) Summarize(ctx context.Context, subjectID string) (models.Summary, error) {
	if err := ctx.Err(); err != nil {
		return models.Summary{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := models.Summary{
		SubjectID:    subjectID,
		CreatorTotal: decimal.Zero,
		PoolTotal:    decimal.Zero,
	}
	for _, tx := range m.rows {
		if tx.SubjectID != subjectID {
			continue
		}
		summary.CreatorTotal = summary.CreatorTotal.Add(tx.CreatorShare)
		summary.PoolTotal = summary.PoolTotal.Add(tx.PoolShare)
		summary.Count++
	}
	return summary, nil
}

func (m *MemoryLedgerStore) Close() error { return nil }

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
