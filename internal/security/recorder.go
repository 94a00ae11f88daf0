package security

import (
	"context"
	"log/slog"

	"lendgate/internal/platform/logger"
)

// Store persists security events. Append-only: implementations expose no
// update or delete operations.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Recorder is the single entry point components use to record security
// events. It sanitizes the details payload before it reaches any sink and
// mirrors every event into the structured log.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

func NewRecorder(store Store, log *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: log}
}

// Record sanitizes and appends one security event. Persistence failure is
// logged but not returned: a full security-event store must not take the
// calling operation down with it.
func (r *Recorder) Record(ctx context.Context, event Event) {
	event.Details = logger.Sanitize(event.Details)
	if event.ID == "" {
		e := NewEvent(event.Type, event.Severity)
		e.UserID = event.UserID
		e.IPAddress = event.IPAddress
		e.UserAgent = event.UserAgent
		e.Details = event.Details
		event = e
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "security event",
			"event_type", event.Type,
			"severity", event.Severity,
			"user_id", event.UserID,
			"log_type", "security",
		)
	}

	if r.store == nil {
		return
	}
	if err := r.store.Append(ctx, event); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "failed to persist security event",
			"error", err,
			"event_type", event.Type,
		)
	}
}
