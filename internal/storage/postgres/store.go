package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	interfaces "github.com/sheikh-saqib/split-ledger-gateway/internal/interfaces" // interface LedgerStore
	"github.com/sheikh-saqib/split-ledger-gateway/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

const selectColumns = `sequence_id, subject_id, amount, creator_share, pool_share, fee_share, COALESCE(idempotency_key, ''), created_at`

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Open connects to dsn and ensures the ledger schema exists.
func Open(ctx context.Context, dsn string) (*PostgresLedgerStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return NewPostgresLedgerStore(db), nil
}

func (p *PostgresLedgerStore) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *PostgresLedgerStore) AppendTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	const query = `INSERT INTO transactions (subject_id, amount, creator_share, pool_share, fee_share, idempotency_key, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING sequence_id`

	tx.CreatedAt = models.NormalizeTimestamp(tx.CreatedAt)

	var key sql.NullString
	if tx.IdempotencyKey != "" {
		key = sql.NullString{String: tx.IdempotencyKey, Valid: true}
	}

	err := p.db.QueryRowContext(ctx, query,
		tx.SubjectID, tx.Amount, tx.CreatorShare, tx.PoolShare, tx.FeeShare, key, tx.CreatedAt,
	).Scan(&tx.SequenceID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.Transaction{}, interfaces.ErrDuplicateIdempotencyKey
		}
		return models.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (p *PostgresLedgerStore) FindByIdempotencyKey(ctx context.Context, subjectID, key string) (models.Transaction, bool, error) {
	query := `SELECT ` + selectColumns + ` FROM transactions
	WHERE subject_id = $1 AND idempotency_key = $2`

	tx, err := scanTransaction(p.db.QueryRowContext(ctx, query, subjectID, key))
	if err == sql.ErrNoRows {
		return models.Transaction{}, false, nil
	}
	if err != nil {
		return models.Transaction{}, false, err
	}
	return tx, true, nil
}

func (p *PostgresLedgerStore) ListTransactions(ctx context.Context, subjectID string, before *models.Cursor, limit int) ([]models.Transaction, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if before == nil {
		query := `SELECT ` + selectColumns + ` FROM transactions
		WHERE subject_id = $1
		ORDER BY created_at DESC, sequence_id DESC
		LIMIT $2`
		rows, err = p.db.QueryContext(ctx, query, subjectID, limit)
	} else {
		// Row-value comparison walks the composite index directly.
		query := `SELECT ` + selectColumns + ` FROM transactions
		WHERE subject_id = $1 AND (created_at, sequence_id) < ($2, $3)
		ORDER BY created_at DESC, sequence_id DESC
		LIMIT $4`
		rows, err = p.db.QueryContext(ctx, query, subjectID, models.NormalizeTimestamp(before.Timestamp), before.SequenceID, limit)
	}
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var entries []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *PostgresLedgerStore) Summarize(ctx context.Context, subjectID string) (models.Summary, error) {
	const query = `SELECT COALESCE(SUM(creator_share), 0), COALESCE(SUM(pool_share), 0), COUNT(*)
	FROM transactions WHERE subject_id = $1`

	summary := models.Summary{SubjectID: subjectID}
	err := p.db.QueryRowContext(ctx, query, subjectID).Scan(&summary.CreatorTotal, &summary.PoolTotal, &summary.Count)
	if err != nil {
		return models.Summary{}, err
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(
		&tx.SequenceID,
		&tx.SubjectID,
		&tx.Amount,
		&tx.CreatorShare,
		&tx.PoolShare,
		&tx.FeeShare,
		&tx.IdempotencyKey,
		&tx.CreatedAt,
	)
	if err != nil {
		return models.Transaction{}, err
	}
	tx.CreatedAt = models.NormalizeTimestamp(tx.CreatedAt)
	return tx, nil
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
