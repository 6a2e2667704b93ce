package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cursor identifies the last row of a previous page under the
// (timestamp DESC, sequence_id DESC) order. It is round-tripped through the
// client and never stored.
type Cursor struct {
	Timestamp  time.Time
	SequenceID int64
}

// CursorOf returns the cursor positioned at tx.
func CursorOf(tx Transaction) Cursor {
	return Cursor{Timestamp: NormalizeTimestamp(tx.CreatedAt), SequenceID: tx.SequenceID}
}

// Before reports whether tx sorts strictly after the cursor row, that is,
// whether it is older under the descending ledger order.
func (c Cursor) Before(tx Transaction) bool {
	ts := NormalizeTimestamp(tx.CreatedAt)
	cts := NormalizeTimestamp(c.Timestamp)
	if ts.Before(cts) {
		return true
	}
	return ts.Equal(cts) && tx.SequenceID < c.SequenceID
}

// Page is one slice of a subject's history. MerkleRoot is empty when Items is.
type Page struct {
	Items      []Transaction
	NextCursor *Cursor
	MerkleRoot string
}

// Summary aggregates a subject's shares.
type Summary struct {
	SubjectID    string
	CreatorTotal decimal.Decimal
	PoolTotal    decimal.Decimal
	Count        int
}
