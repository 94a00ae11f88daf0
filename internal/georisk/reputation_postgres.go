package georisk

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresReputationStore persists IP reputation records in PostgreSQL.
type PostgresReputationStore struct {
	db *sql.DB
}

func NewPostgresReputationStore(db *sql.DB) *PostgresReputationStore {
	return &PostgresReputationStore{db: db}
}

func (s *PostgresReputationStore) Get(ctx context.Context, ip string) (*ReputationRecord, error) {
	var rec ReputationRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT ip_address, is_allowed, risk_level, country_code, last_seen, COALESCE(notes, '')
		FROM ip_reputation
		WHERE ip_address = $1
	`, ip).Scan(&rec.IPAddress, &rec.IsAllowed, &rec.RiskLevel, &rec.CountryCode, &rec.LastSeen, &rec.Notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ip reputation: %w", err)
	}
	return &rec, nil
}

// Put upserts on ip_address; records are never deleted.
func (s *PostgresReputationStore) Put(ctx context.Context, record ReputationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ip_reputation (ip_address, is_allowed, risk_level, country_code, last_seen, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ip_address) DO UPDATE
		SET is_allowed = EXCLUDED.is_allowed,
		    risk_level = EXCLUDED.risk_level,
		    country_code = EXCLUDED.country_code,
		    last_seen = EXCLUDED.last_seen,
		    notes = EXCLUDED.notes
	`, record.IPAddress, record.IsAllowed, record.RiskLevel, record.CountryCode, record.LastSeen, record.Notes)
	if err != nil {
		return fmt.Errorf("upsert ip reputation: %w", err)
	}
	return nil
}
