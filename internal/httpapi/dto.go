package httpapi

import (
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
)

type splitRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type splitResponse struct {
	Status     string          `json:"status"`
	ResolvedID string          `json:"resolved_id"`
	Policy     string          `json:"policy"`
	Split      splitShares     `json:"split"`
	SequenceID int64           `json:"sequence_id"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  string          `json:"timestamp"`
	Replayed   bool            `json:"replayed"`
}

type splitShares struct {
	Creator string `json:"creator"`
	Pool    string `json:"pool"`
	Fee     string `json:"fee"`
}

type transactionItem struct {
	SequenceID   int64  `json:"sequence_id"`
	SubjectID    string `json:"subject_id"`
	Amount       string `json:"amount"`
	CreatorShare string `json:"creator_share"`
	PoolShare    string `json:"pool_share"`
	FeeShare     string `json:"fee_share"`
	Timestamp    string `json:"timestamp"`
}

type cursorDTO struct {
	Timestamp  string `json:"timestamp"`
	SequenceID int64  `json:"sequence_id"`
}

type pageResponse struct {
	Items          []transactionItem `json:"items"`
	NextCursor     *cursorDTO        `json:"next_cursor"`
	PageMerkleRoot *string           `json:"page_merkle_root"`
}

type summaryResponse struct {
	SubjectID    string `json:"subject_id"`
	CreatorTotal string `json:"creator_total"`
	PoolTotal    string `json:"pool_total"`
	Transactions int    `json:"transactions"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toItem(tx models.Transaction) transactionItem {
	return transactionItem{
		SequenceID:   tx.SequenceID,
		SubjectID:    tx.SubjectID,
		Amount:       tx.Amount.StringFixed(2),
		CreatorShare: tx.CreatorShare.StringFixed(2),
		PoolShare:    tx.PoolShare.StringFixed(2),
		FeeShare:     tx.FeeShare.StringFixed(2),
		Timestamp:    models.FormatTimestamp(tx.CreatedAt),
	}
}

func toPageResponse(page models.Page) pageResponse {
	resp := pageResponse{Items: make([]transactionItem, 0, len(page.Items))}
	for _, tx := range page.Items {
		resp.Items = append(resp.Items, toItem(tx))
	}
	if page.NextCursor != nil {
		resp.NextCursor = &cursorDTO{
			Timestamp:  models.FormatTimestamp(page.NextCursor.Timestamp),
			SequenceID: page.NextCursor.SequenceID,
		}
	}
	if page.MerkleRoot != "" {
		root := page.MerkleRoot
		resp.PageMerkleRoot = &root
	}
	return resp
}
