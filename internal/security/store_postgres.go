package security

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists security events in PostgreSQL. The table is
// append-only; no update or delete statements exist on purpose.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal security event details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO security_events (id, event_type, severity, user_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
	`, event.ID, event.Type, event.Severity, event.UserID, event.IPAddress, event.UserAgent, details, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, severity, COALESCE(user_id, ''), ip_address, user_agent, details, created_at
		FROM security_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var events []Event
	for rows.Next() {
		var e Event
		var details []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.Severity, &e.UserID, &e.IPAddress, &e.UserAgent, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode security event details: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
