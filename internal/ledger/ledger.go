package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/split-ledger-gateway/internal/interfaces"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/models/events"
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive with at most two decimal places")
	ErrSubjectRequired = errors.New("subject id is required")
)

var (
	creatorRate = decimal.RequireFromString("0.60")
	poolRate    = decimal.RequireFromString("0.30")
)

// Ledger records split events and serves the subject's history. It holds a
// reference to the storage layer and a lock per subject so one subject's
// idempotency check and insert do not interleave.
type Ledger struct {
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher // optional
	topic     string
	now       func() time.Time
	logger    *slog.Logger

	muMap map[string]*sync.Mutex // stores the *sync.Mutex for each subject
	mapMu sync.Mutex             // protects the muMap itself
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher publishes a SplitCommitted event to topic after each new row.
func WithPublisher(publisher interfaces.EventPublisher, topic string) Option {
	return func(l *Ledger) {
		l.publisher = publisher
		if topic != "" {
			l.topic = topic
		}
	}
}

// WithClock overrides the time source stamped onto new rows.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLedger wires a Ledger over store.
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		topic:  events.SplitCommittedTopic,
		now:    time.Now,
		logger: slog.Default(),
		muMap:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) getSubjectLock(subjectID string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[subjectID]; !exists {
		l.muMap[subjectID] = &sync.Mutex{}
	}
	return l.muMap[subjectID]
}

// ComputeSplit divides amount 60/30/10. Creator and pool shares are rounded to
// cents; the fee takes the remainder so the three shares sum to amount exactly.
func ComputeSplit(amount decimal.Decimal) (creator, pool, fee decimal.Decimal) {
	creator = amount.Mul(creatorRate).Round(2)
	pool = amount.Mul(poolRate).Round(2)
	fee = amount.Sub(creator).Sub(pool)
	return creator, pool, fee
}

// SplitRequest is one inbound split event.
type SplitRequest struct {
	SubjectID      string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// PostSplit appends the split row for req. When the subject already used
// req.IdempotencyKey the original row is returned with replayed set.
func (l *Ledger) PostSplit(ctx context.Context, req SplitRequest) (tx models.Transaction, replayed bool, err error) {
	subjectID := strings.TrimSpace(req.SubjectID)
	if subjectID == "" {
		return models.Transaction{}, false, ErrSubjectRequired
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(2)) {
		return models.Transaction{}, false, ErrInvalidAmount
	}
	key := strings.TrimSpace(req.IdempotencyKey)

	tx, replayed, err = l.commit(ctx, subjectID, key, req.Amount)
	if err != nil || replayed {
		return tx, replayed, err
	}

	l.publish(ctx, tx)
	return tx, false, nil
}

// commit holds the subject lock across the idempotency lookup and the insert
// only; publishing happens after the lock is released.
func (l *Ledger) commit(ctx context.Context, subjectID, key string, amount decimal.Decimal) (models.Transaction, bool, error) {
	mu := l.getSubjectLock(subjectID)
	mu.Lock()
	defer mu.Unlock()

	if key != "" {
		existing, found, err := l.store.FindByIdempotencyKey(ctx, subjectID, key)
		if err != nil {
			return models.Transaction{}, false, err
		}
		if found {
			return existing, true, nil
		}
	}

	creator, pool, fee := ComputeSplit(amount)
	tx, err := l.store.AppendTransaction(ctx, models.Transaction{
		SubjectID:      subjectID,
		Amount:         amount,
		CreatorShare:   creator,
		PoolShare:      pool,
		FeeShare:       fee,
		IdempotencyKey: key,
		CreatedAt:      models.NormalizeTimestamp(l.now()),
	})
	if errors.Is(err, interfaces.ErrDuplicateIdempotencyKey) {
		// Another process won the insert; serve its row.
		existing, found, findErr := l.store.FindByIdempotencyKey(ctx, subjectID, key)
		switch {
		case findErr != nil:
			return models.Transaction{}, false, fmt.Errorf("load row for idempotency key %q: %w", key, findErr)
		case found:
			return existing, true, nil
		}
	}
	if err != nil {
		return models.Transaction{}, false, err
	}
	return tx, false, nil
}

// publish is best effort: the row is already committed and the ledger, not
// the event stream, is the source of truth.
func (l *Ledger) publish(ctx context.Context, tx models.Transaction) {
	if l.publisher == nil {
		return
	}
	event := events.SplitCommitted{
		EventID:      uuid.NewString(),
		SequenceID:   tx.SequenceID,
		SubjectID:    tx.SubjectID,
		Amount:       tx.Amount,
		CreatorShare: tx.CreatorShare,
		PoolShare:    tx.PoolShare,
		FeeShare:     tx.FeeShare,
		OccurredAt:   tx.CreatedAt,
	}
	if err := l.publisher.Publish(ctx, l.topic, tx.SubjectID, event); err != nil {
		l.logger.Error("split event publish failed",
			"event", "split_publish_failed",
			"module", "internal/ledger",
			"sequence_id", tx.SequenceID,
			"error", err,
		)
	}
}

// GetSummary totals the subject's creator and pool shares.
func (l *Ledger) GetSummary(ctx context.Context, subjectID string) (models.Summary, error) {
	if strings.TrimSpace(subjectID) == "" {
		return models.Summary{}, ErrSubjectRequired
	}
	return l.store.Summarize(ctx, subjectID)
}
