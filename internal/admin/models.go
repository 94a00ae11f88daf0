package admin

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Role is the coarse authorization tier of a managed account.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleLoanOfficer Role = "loan_officer"
	RoleViewer      Role = "viewer"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleLoanOfficer, RoleViewer:
		return true
	}
	return false
}

// User is a managed account. The password hash never leaves this package;
// API views are built with View().
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Role         Role
	PasswordHash []byte
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser builds an active user with identity, timestamps and a bcrypt
// password hash assigned.
func NewUser(email, password string, role Role) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CheckPassword reports whether the candidate matches the stored hash.
func (u *User) CheckPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(candidate)) == nil
}

// SetPassword replaces the stored hash.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// UserView is the externally visible shape of a user.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) View() UserView {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}
