package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestRootEmpty(t *testing.T) {
	if root, ok := Root(nil); ok || root != "" {
		t.Fatalf("expected absent root, got %q", root)
	}
}

func TestRootSingleLeafHashesWithItself(t *testing.T) {
	h := sha("leaf")
	root, ok := Root([]string{h})
	if !ok {
		t.Fatal("expected root")
	}
	if root != sha(h+h) {
		t.Fatalf("root = %s, want sha(h||h)", root)
	}
}

func TestRootOddLevelDuplicatesLast(t *testing.T) {
	a, b, c := sha("a"), sha("b"), sha("c")
	root, _ := Root([]string{a, b, c})
	want := sha(sha(a+b) + sha(c+c))
	if root != want {
		t.Fatalf("root = %s, want %s", root, want)
	}
}

func TestRootFourLeaves(t *testing.T) {
	a, b, c, d := sha("a"), sha("b"), sha("c"), sha("d")
	root, _ := Root([]string{a, b, c, d})
	want := sha(sha(a+b) + sha(c+d))
	if root != want {
		t.Fatalf("root = %s, want %s", root, want)
	}
}

func TestRootIsOrderSensitive(t *testing.T) {
	a, b, c := sha("a"), sha("b"), sha("c")
	forward, _ := Root([]string{a, b, c})
	reversed, _ := Root([]string{c, b, a})
	swapped, _ := Root([]string{b, a, c})
	if forward == reversed || forward == swapped {
		t.Fatal("expected permuted input to change the root")
	}

	same, _ := Root([]string{a, a})
	sameAgain, _ := Root([]string{a, a})
	if same != sameAgain {
		t.Fatal("expected identical inputs to produce identical roots")
	}
}

func TestRootDoesNotMutateInput(t *testing.T) {
	leaves := []string{sha("a"), sha("b"), sha("c")}
	_, _ = Root(leaves)
	if len(leaves) != 3 {
		t.Fatalf("input mutated: %v", leaves)
	}
}

func testRow(amount string, ts time.Time) models.Transaction {
	a := decimal.RequireFromString(amount)
	return models.Transaction{
		SequenceID:   7,
		SubjectID:    "42",
		Amount:       a,
		CreatorShare: a.Mul(decimal.RequireFromString("0.6")).Round(2),
		PoolShare:    a.Mul(decimal.RequireFromString("0.3")).Round(2),
		FeeShare:     a.Mul(decimal.RequireFromString("0.1")).Round(2),
		CreatedAt:    ts,
	}
}

func TestLeafHashFieldOrder(t *testing.T) {
	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	row := testRow("100", ts)
	want := sha("100.00|60.00|30.00|10.00|2026-02-01T10:00:00.000Z")
	if got := LeafHash(row); got != want {
		t.Fatalf("leaf hash = %s, want %s", got, want)
	}
}

func TestLeafHashIgnoresIdentityColumns(t *testing.T) {
	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	a := testRow("25", ts)
	b := a
	b.SequenceID = 99
	b.SubjectID = "other"
	if LeafHash(a) != LeafHash(b) {
		t.Fatal("expected leaf hash to cover content fields only")
	}

	c := a
	c.FeeShare = c.FeeShare.Add(decimal.RequireFromString("0.01"))
	if LeafHash(a) == LeafHash(c) {
		t.Fatal("expected content change to change the leaf hash")
	}
}

func TestPageRootChangesWithRowOrder(t *testing.T) {
	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rows := []models.Transaction{testRow("25", ts), testRow("50", ts), testRow("100", ts)}
	root, ok := PageRoot(rows)
	if !ok {
		t.Fatal("expected root")
	}
	rows[0], rows[2] = rows[2], rows[0]
	if swapped, _ := PageRoot(rows); swapped == root {
		t.Fatal("expected reordered page to change the root")
	}
	if _, ok := PageRoot(nil); ok {
		t.Fatal("expected absent root for empty page")
	}
}
