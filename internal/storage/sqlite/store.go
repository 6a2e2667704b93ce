package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	interfaces "github.com/sheikh-saqib/split-ledger-gateway/internal/interfaces"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/storage/sqlite/migrations"
)

const (
	insertTransactionQuery = `
INSERT INTO transactions (subject_id, amount, creator_share, pool_share, fee_share, idempotency_key, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectColumns = `sequence_id, subject_id, amount, creator_share, pool_share, fee_share, COALESCE(idempotency_key, ''), created_at`

	findByKeyQuery = `SELECT ` + selectColumns + `
FROM transactions
WHERE subject_id = ? AND idempotency_key = ?`

	firstPageQuery = `SELECT ` + selectColumns + `
FROM transactions
WHERE subject_id = ?
ORDER BY created_at DESC, sequence_id DESC
LIMIT ?`

	nextPageQuery = `SELECT ` + selectColumns + `
FROM transactions
WHERE subject_id = ?
  AND (created_at < ? OR (created_at = ? AND sequence_id < ?))
ORDER BY created_at DESC, sequence_id DESC
LIMIT ?`

	sharesQuery = `SELECT creator_share, pool_share FROM transactions WHERE subject_id = ?`
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements interfaces.LedgerStore over a single SQLite file.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the ledger database at path and applies bundled migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Store{sqlDB: sqlDB}, nil
}

// DB returns the raw database handle.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Close checkpoints the write-ahead log and releases the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	_, _ = s.sqlDB.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return s.sqlDB.Close()
}

func (s *Store) AppendTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	tx.CreatedAt = models.NormalizeTimestamp(tx.CreatedAt)

	var key sql.NullString
	if tx.IdempotencyKey != "" {
		key = sql.NullString{String: tx.IdempotencyKey, Valid: true}
	}

	res, err := s.sqlDB.ExecContext(ctx, insertTransactionQuery,
		tx.SubjectID,
		tx.Amount.String(),
		tx.CreatorShare.String(),
		tx.PoolShare.String(),
		tx.FeeShare.String(),
		key,
		toMillis(tx.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Transaction{}, interfaces.ErrDuplicateIdempotencyKey
		}
		return models.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return models.Transaction{}, fmt.Errorf("read sequence id: %w", err)
	}
	tx.SequenceID = seq
	return tx, nil
}

func (s *Store) FindByIdempotencyKey(ctx context.Context, subjectID, key string) (models.Transaction, bool, error) {
	tx, err := scanTransaction(s.sqlDB.QueryRowContext(ctx, findByKeyQuery, subjectID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, false, nil
	}
	if err != nil {
		return models.Transaction{}, false, fmt.Errorf("find by idempotency key: %w", err)
	}
	return tx, true, nil
}

func (s *Store) ListTransactions(ctx context.Context, subjectID string, before *models.Cursor, limit int) ([]models.Transaction, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if before == nil {
		rows, err = s.sqlDB.QueryContext(ctx, firstPageQuery, subjectID, limit)
	} else {
		ts := toMillis(before.Timestamp)
		rows, err = s.sqlDB.QueryContext(ctx, nextPageQuery, subjectID, ts, ts, before.SequenceID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var result []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}

// Summarize sums shares in decimal arithmetic; SQLite would sum the TEXT
// columns as floating point.
func (s *Store) Summarize(ctx context.Context, subjectID string) (models.Summary, error) {
	rows, err := s.sqlDB.QueryContext(ctx, sharesQuery, subjectID)
	if err != nil {
		return models.Summary{}, fmt.Errorf("query shares: %w", err)
	}
	defer rows.Close()

	summary := models.Summary{SubjectID: subjectID, CreatorTotal: decimal.Zero, PoolTotal: decimal.Zero}
	for rows.Next() {
		var creator, pool decimal.Decimal
		if err := rows.Scan(&creator, &pool); err != nil {
			return models.Summary{}, fmt.Errorf("scan shares: %w", err)
		}
		summary.CreatorTotal = summary.CreatorTotal.Add(creator)
		summary.PoolTotal = summary.PoolTotal.Add(pool)
		summary.Count++
	}
	if err := rows.Err(); err != nil {
		return models.Summary{}, fmt.Errorf("iterate shares: %w", err)
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var (
		tx        models.Transaction
		createdAt int64
	)
	if err := row.Scan(
		&tx.SequenceID,
		&tx.SubjectID,
		&tx.Amount,
		&tx.CreatorShare,
		&tx.PoolShare,
		&tx.FeeShare,
		&tx.IdempotencyKey,
		&createdAt,
	); err != nil {
		return models.Transaction{}, err
	}
	tx.CreatedAt = fromMillis(createdAt)
	return tx, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

var _ interfaces.LedgerStore = (*Store)(nil)
