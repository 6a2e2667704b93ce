package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitCommittedTopic is the default topic split events are published to.
const SplitCommittedTopic = "split_committed"

type SplitCommitted struct {
	EventID      string          `json:"event_id"`
	SequenceID   int64           `json:"sequence_id"`
	SubjectID    string          `json:"subject_id"`
	Amount       decimal.Decimal `json:"amount"`
	CreatorShare decimal.Decimal `json:"creator_share"`
	PoolShare    decimal.Decimal `json:"pool_share"`
	FeeShare     decimal.Decimal `json:"fee_share"`
	OccurredAt   time.Time       `json:"occurred_at"`
}
