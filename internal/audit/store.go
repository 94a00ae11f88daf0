package audit

import "context"

// Store persists audit events. Append-only by contract.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
