// Package integrity computes per-page Merkle roots over ledger rows.
//
// Roots are ephemeral: they are derived from the exact rows returned in a
// page and are never persisted, so a client can detect tampering within one
// response without downloading the full history.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
)

const leafDelimiter = "|"

// LeafHash returns the hex SHA-256 of the row's content fields in fixed order:
// amount, creator share, pool share, fee share, timestamp.
func LeafHash(tx models.Transaction) string {
	payload := strings.Join([]string{
		tx.Amount.StringFixed(2),
		tx.CreatorShare.StringFixed(2),
		tx.PoolShare.StringFixed(2),
		tx.FeeShare.StringFixed(2),
		models.FormatTimestamp(tx.CreatedAt),
	}, leafDelimiter)
	return hashHex(payload)
}

// Root reduces leaf hashes to a single root. Adjacent hex strings are
// concatenated and hashed; an odd level duplicates its last node. The second
// return value is false when hashes is empty.
func Root(hashes []string) (string, bool) {
	if len(hashes) == 0 {
		return "", false
	}
	level := make([]string, len(hashes))
	copy(level, hashes)

	// A single leaf is still hashed with itself, so root([h]) != h.
	for {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashHex(level[i]+level[i+1]))
		}
		level = next
		if len(level) == 1 {
			return level[0], true
		}
	}
}

// PageRoot hashes each row and returns the root of the page.
func PageRoot(rows []models.Transaction) (string, bool) {
	leaves := make([]string, len(rows))
	for i, row := range rows {
		leaves[i] = LeafHash(row)
	}
	return Root(leaves)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
