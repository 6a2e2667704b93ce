package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sheikh-saqib/split-ledger-gateway/internal/integrity"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
)

const (
	MinPageLimit     = 1
	MaxPageLimit     = 100
	DefaultPageLimit = 50
)

var ErrInvalidLimit = errors.New("limit must be between 1 and 100")

// Page returns up to limit rows for subjectID older than cursor, newest
// first, with the next cursor and the page's Merkle root. NextCursor is nil
// once the history is exhausted.
func (l *Ledger) Page(ctx context.Context, subjectID string, limit int, cursor *models.Cursor) (models.Page, error) {
	if strings.TrimSpace(subjectID) == "" {
		return models.Page{}, ErrSubjectRequired
	}
	if limit < MinPageLimit || limit > MaxPageLimit {
		return models.Page{}, ErrInvalidLimit
	}

	// One extra row tells us whether another page exists.
	rows, err := l.store.ListTransactions(ctx, subjectID, cursor, limit+1)
	if err != nil {
		return models.Page{}, fmt.Errorf("list transactions: %w", err)
	}

	page := models.Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		next := models.CursorOf(page.Items[limit-1])
		page.NextCursor = &next
	}
	if root, ok := integrity.PageRoot(page.Items); ok {
		page.MerkleRoot = root
	}
	return page, nil
}
