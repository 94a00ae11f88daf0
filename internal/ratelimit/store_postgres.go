package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresCounterStore persists rate limit counters in PostgreSQL. An
// advisory transaction lock on the key serializes concurrent increments so
// the increment-and-compare is atomic across instances.
type PostgresCounterStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresCounterStore {
	return &PostgresCounterStore{db: db}
}

func (s *PostgresCounterStore) Increment(ctx context.Context, key string, limit int, window time.Duration) (*Decision, error) {
	if key == "" {
		return nil, fmt.Errorf("rate limit key is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("rate limit limit and window must be positive")
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rate limit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1)::bigint)`, key); err != nil {
		return nil, fmt.Errorf("acquire rate limit lock: %w", err)
	}

	var rec Record
	var blockUntil sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT attempt_count, window_start, block_until, is_blocked
		FROM rate_limit_records
		WHERE identifier = $1
	`, key).Scan(&rec.AttemptCount, &rec.WindowStart, &blockUntil, &rec.IsBlocked)
	switch {
	case err == sql.ErrNoRows:
		rec = Record{Identifier: key, WindowStart: now}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rate_limit_records (identifier, attempt_count, window_start, is_blocked)
			VALUES ($1, 0, $2, false)
		`, key, now); err != nil {
			return nil, fmt.Errorf("create rate limit record: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read rate limit record: %w", err)
	default:
		if blockUntil.Valid {
			t := blockUntil.Time
			rec.BlockUntil = &t
		}
	}

	if rec.IsBlocked && rec.BlockUntil != nil && now.Before(*rec.BlockUntil) {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit rate limit tx: %w", err)
		}
		return &Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    *rec.BlockUntil,
			RetryAfter: retryAfterSeconds(*rec.BlockUntil, now),
		}, nil
	}

	if now.After(rec.WindowStart.Add(window)) {
		rec.AttemptCount = 0
		rec.WindowStart = now
	}

	rec.AttemptCount++
	resetAt := rec.WindowStart.Add(window)
	blocked := rec.AttemptCount > limit

	var until any
	if blocked {
		until = resetAt
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE rate_limit_records
		SET attempt_count = $2, window_start = $3, is_blocked = $4, block_until = $5
		WHERE identifier = $1
	`, key, rec.AttemptCount, rec.WindowStart, blocked, until); err != nil {
		return nil, fmt.Errorf("update rate limit record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rate limit tx: %w", err)
	}

	if blocked {
		return &Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt, now),
		}, nil
	}
	return &Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - rec.AttemptCount,
		ResetAt:   resetAt,
	}, nil
}
