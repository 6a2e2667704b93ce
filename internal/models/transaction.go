package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the canonical text form of a ledger timestamp.
// Timestamps are stored with millisecond precision in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Transaction is one append-only ledger row produced by a split event.
type Transaction struct {
	SequenceID     int64           // assigned by the store, strictly increasing
	SubjectID      string          // identity the split was recorded for
	Amount         decimal.Decimal // gross amount
	CreatorShare   decimal.Decimal // 60%
	PoolShare      decimal.Decimal // 30%
	FeeShare       decimal.Decimal // remainder, nominally 10%
	IdempotencyKey string
	CreatedAt      time.Time
}

// NormalizeTimestamp truncates t to the precision the ledger stores.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return NormalizeTimestamp(t).Format(TimestampLayout)
}

// ParseTimestamp parses a timestamp produced by FormatTimestamp. RFC 3339
// input with any offset is accepted as well.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, value)
	if err == nil {
		return NormalizeTimestamp(t), nil
	}
	t, err = time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeTimestamp(t), nil
}
