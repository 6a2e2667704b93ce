package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/split-ledger-gateway/internal/interfaces"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
)

// openTestStore connects to POSTGRES_DSN or skips. Each test writes under a
// fresh subject id so runs never see each other's rows.
func openTestStore(t *testing.T) *PostgresLedgerStore {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	store, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func row(subject, amount string, ts time.Time, key string) models.Transaction {
	a := decimal.RequireFromString(amount)
	creator := a.Mul(decimal.RequireFromString("0.6")).Round(2)
	pool := a.Mul(decimal.RequireFromString("0.3")).Round(2)
	return models.Transaction{
		SubjectID:      subject,
		Amount:         a,
		CreatorShare:   creator,
		PoolShare:      pool,
		FeeShare:       a.Sub(creator).Sub(pool),
		IdempotencyKey: key,
		CreatedAt:      ts,
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestListTransactionsKeysetWithTies(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	subject := uuid.NewString()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var saved []models.Transaction
	for i, ts := range []time.Time{t0, t0, t0, t0.Add(time.Millisecond), t0.Add(time.Second)} {
		tx, err := store.AppendTransaction(ctx, row(subject, "1", ts, ""))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		saved = append(saved, tx)
	}
	if _, err := store.AppendTransaction(ctx, row(uuid.NewString(), "1", t0.Add(time.Hour), "")); err != nil {
		t.Fatalf("append other: %v", err)
	}

	for _, limit := range []int{1, 2, 3} {
		var walked []int64
		var cursor *models.Cursor
		for pages := 0; ; pages++ {
			if pages > len(saved) {
				t.Fatalf("limit %d: walk did not terminate", limit)
			}
			rows, err := store.ListTransactions(ctx, subject, cursor, limit)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(rows) == 0 {
				break
			}
			for _, r := range rows {
				walked = append(walked, r.SequenceID)
			}
			c := models.CursorOf(rows[len(rows)-1])
			cursor = &c
		}

		want := []int64{saved[4].SequenceID, saved[3].SequenceID, saved[2].SequenceID, saved[1].SequenceID, saved[0].SequenceID}
		if len(walked) != len(want) {
			t.Fatalf("limit %d: walked %v, want %v", limit, walked, want)
		}
		for i := range want {
			if walked[i] != want[i] {
				t.Fatalf("limit %d: walked %v, want %v", limit, walked, want)
			}
		}
	}
}

func TestAppendRoundTripAndDuplicateKey(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	subject := uuid.NewString()
	ts := time.Date(2026, 2, 1, 10, 0, 0, 987654321, time.UTC)

	saved, err := store.AppendTransaction(ctx, row(subject, "33.33", ts, "k"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	got, found, err := store.FindByIdempotencyKey(ctx, subject, "k")
	if err != nil || !found {
		t.Fatalf("find: found=%v err=%v", found, err)
	}
	if got.SequenceID != saved.SequenceID || !got.Amount.Equal(saved.Amount) || !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Fatalf("round trip mismatch: saved %+v got %+v", saved, got)
	}

	if _, err := store.AppendTransaction(ctx, row(subject, "1", ts, "k")); !errors.Is(err, interfaces.ErrDuplicateIdempotencyKey) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	subject := uuid.NewString()
	for _, amount := range []string{"100", "50", "25"} {
		if _, err := store.AppendTransaction(ctx, row(subject, amount, time.Now(), "")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	summary, err := store.Summarize(ctx, subject)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !summary.CreatorTotal.Equal(decimal.RequireFromString("105")) ||
		!summary.PoolTotal.Equal(decimal.RequireFromString("52.5")) ||
		summary.Count != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
