// Package admin manages privileged user accounts: creation, update,
// deletion, password reset and listing. Every mutation here is reached only
// through the request gate, which has already authenticated the caller,
// checked rate limits and verified step-up.
package admin

import (
	"context"
	"log/slog"
	"strings"
	"time"

	dErrors "lendgate/pkg/domain-errors"
)

// Service owns user lifecycle business rules. Field-format validation has
// already happened at the gate; this layer enforces cross-record rules.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.logger = log }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries sanitized fields for a new account.
type CreateInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*User, error) {
	role := input.Role
	if role == "" {
		role = RoleViewer
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}

	user, err := NewUser(strings.ToLower(input.Email), input.Password, role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	user.FirstName = input.FirstName
	user.LastName = input.LastName

	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user created", "user_id", user.ID, "role", string(role))
	return user, nil
}

// UpdateInput carries the mutable fields of an account. Nil pointers leave
// the current value untouched.
type UpdateInput struct {
	UserID    string
	FirstName *string
	LastName  *string
	Role      *Role
	Active    *bool
}

func (s *Service) Update(ctx context.Context, input UpdateInput) (*User, error) {
	user, err := s.store.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown role")
		}
		user.Role = *input.Role
	}
	if input.Active != nil {
		user.Active = *input.Active
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the target account. An actor may never delete itself;
// the check runs before any store access so a rejected request leaves no
// side effect.
func (s *Service) Delete(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return dErrors.New(dErrors.CodeForbidden, "cannot delete own account")
	}
	if err := s.store.Delete(ctx, targetID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", targetID, "actor_id", actorID)
	return nil
}

// ResetPassword replaces the target account's password. The new password
// has already passed the password policy at the gate.
func (s *Service) ResetPassword(ctx context.Context, userID, newPassword string) error {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := user.SetPassword(newPassword); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	return s.store.Update(ctx, user)
}

func (s *Service) List(ctx context.Context) ([]UserView, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	return views, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	return s.store.FindByID(ctx, userID)
}
