package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/split-ledger-gateway/internal/interfaces"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
)

func row(subject string, amount string, ts time.Time, key string) models.Transaction {
	a := decimal.RequireFromString(amount)
	return models.Transaction{
		SubjectID:      subject,
		Amount:         a,
		CreatorShare:   a,
		PoolShare:      decimal.Zero,
		FeeShare:       decimal.Zero,
		IdempotencyKey: key,
		CreatedAt:      ts,
	}
}

func TestAppendAssignsIncreasingSequence(t *testing.T) {
	store := NewMemoryLedgerStore()
	ctx := context.Background()
	ts := time.Date(2026, 2, 1, 10, 0, 0, 123456789, time.UTC)

	a, err := store.AppendTransaction(ctx, row("42", "1", ts, ""))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	b, err := store.AppendTransaction(ctx, row("42", "2", ts, ""))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if a.SequenceID != 1 || b.SequenceID != 2 {
		t.Fatalf("unexpected sequence ids %d, %d", a.SequenceID, b.SequenceID)
	}
	if a.CreatedAt.Nanosecond() != 123000000 {
		t.Fatalf("expected millisecond truncation, got %v", a.CreatedAt)
	}
}

func TestAppendRejectsDuplicateKey(t *testing.T) {
	store := NewMemoryLedgerStore()
	ctx := context.Background()
	now := time.Now()

	if _, err := store.AppendTransaction(ctx, row("42", "1", now, "k")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendTransaction(ctx, row("42", "1", now, "k")); !errors.Is(err, interfaces.ErrDuplicateIdempotencyKey) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
	if _, err := store.AppendTransaction(ctx, row("7", "1", now, "k")); err != nil {
		t.Fatalf("same key for another subject: %v", err)
	}

	got, found, err := store.FindByIdempotencyKey(ctx, "42", "k")
	if err != nil || !found || got.SequenceID != 1 {
		t.Fatalf("find: %+v %v %v", got, found, err)
	}
	if _, found, _ := store.FindByIdempotencyKey(ctx, "42", "missing"); found {
		t.Fatal("expected missing key")
	}
}

func TestListTransactionsKeyset(t *testing.T) {
	store := NewMemoryLedgerStore()
	ctx := context.Background()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	// seq 1,2 share t0; seq 3 at t0+1s; seq 4 belongs to someone else.
	for _, r := range []models.Transaction{
		row("42", "1", t0, ""),
		row("42", "2", t0, ""),
		row("42", "3", t0.Add(time.Second), ""),
		row("7", "4", t0.Add(time.Hour), ""),
	} {
		if _, err := store.AppendTransaction(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := store.ListTransactions(ctx, "42", nil, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := sequences(all); !equal(got, []int64{3, 2, 1}) {
		t.Fatalf("order = %v", got)
	}

	after, err := store.ListTransactions(ctx, "42", &models.Cursor{Timestamp: t0, SequenceID: 2}, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := sequences(after); !equal(got, []int64{1}) {
		t.Fatalf("after cursor = %v", got)
	}

	limited, _ := store.ListTransactions(ctx, "42", nil, 2)
	if got := sequences(limited); !equal(got, []int64{3, 2}) {
		t.Fatalf("limited = %v", got)
	}
}

func TestSummarize(t *testing.T) {
	store := NewMemoryLedgerStore()
	ctx := context.Background()
	_, _ = store.AppendTransaction(ctx, row("42", "1.50", time.Now(), ""))
	_, _ = store.AppendTransaction(ctx, row("42", "2.25", time.Now(), ""))

	summary, err := store.Summarize(ctx, "42")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !summary.CreatorTotal.Equal(decimal.RequireFromString("3.75")) || summary.Count != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestCancelledContext(t *testing.T) {
	store := NewMemoryLedgerStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.AppendTransaction(ctx, row("42", "1", time.Now(), "")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, err := store.ListTransactions(ctx, "42", nil, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func sequences(rows []models.Transaction) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.SequenceID
	}
	return out
}

func equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
