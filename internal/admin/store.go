package admin

import "context"

// Store persists managed users. Implementations return domain errors with
// conflict and not_found codes so the service layer never inspects
// driver-specific failures.
type Store interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*User, error)
}
