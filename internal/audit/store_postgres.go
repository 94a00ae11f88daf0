package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists audit events in PostgreSQL, append-only.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	oldValues, err := json.Marshal(event.OldValues)
	if err != nil {
		return fmt.Errorf("marshal audit old values: %w", err)
	}
	newValues, err := json.Marshal(event.NewValues)
	if err != nil {
		return fmt.Errorf("marshal audit new values: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, action, table_name, record_id, old_values, new_values, request_id, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	`, event.ID, event.Actor, event.Action, event.TableName, event.RecordID, oldValues, newValues, event.RequestID, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, action, table_name, COALESCE(record_id, ''), old_values, new_values, request_id, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var events []Event
	for rows.Next() {
		var e Event
		var oldValues, newValues []byte
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.TableName, &e.RecordID, &oldValues, &newValues, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if len(oldValues) > 0 {
			_ = json.Unmarshal(oldValues, &e.OldValues) //nolint:errcheck // best-effort decode of legacy rows
		}
		if len(newValues) > 0 {
			_ = json.Unmarshal(newValues, &e.NewValues) //nolint:errcheck // best-effort decode of legacy rows
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
