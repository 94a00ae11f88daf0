package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	dErrors "lendgate/pkg/domain-errors"
)

// PostgresStore persists chain records in PostgreSQL. A unique constraint
// on (record_type, block_number) rejects concurrent appends racing for the
// same chain head; callers see a conflict and retry through the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ledgerColumns = `id, record_type, record_id, data_hash, prev_hash, chain_hash,
	transaction_hash, block_number, verification_status, metadata, created_at`

func (s *PostgresStore) Append(ctx context.Context, record *Record) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("encode ledger metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_records (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, record.ID, record.RecordType, record.RecordID, record.DataHash, record.PrevHash,
		record.ChainHash, record.TransactionHash, record.BlockNumber,
		record.VerificationStatus, metadata, record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return dErrors.New(dErrors.CodeConflict, "chain head moved")
		}
		return fmt.Errorf("append ledger record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Head(ctx context.Context, recordType string) (*Record, error) {
	record, err := s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_records
		WHERE record_type = $1
		ORDER BY block_number DESC
		LIMIT 1
	`, recordType))
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, nil
	}
	return record, err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+` FROM ledger_records WHERE id = $1
	`, id))
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Record, error) {
	var (
		r        Record
		metadata []byte
	)
	err := row.Scan(&r.ID, &r.RecordType, &r.RecordID, &r.DataHash, &r.PrevHash,
		&r.ChainHash, &r.TransactionHash, &r.BlockNumber, &r.VerificationStatus,
		&metadata, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "ledger record not found")
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger record: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode ledger metadata: %w", err)
		}
	}
	return &r, nil
}
