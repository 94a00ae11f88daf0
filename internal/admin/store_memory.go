package admin

import (
	"context"
	"sort"
	"strings"
	"sync"

	dErrors "lendgate/pkg/domain-errors"
)

// InMemoryStore keeps users in memory. Used in tests and single-node
// development runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (s *InMemoryStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return dErrors.New(dErrors.CodeConflict, "email already registered")
	}
	clone := *user
	s.byID[user.ID] = &clone
	s.byEmail[email] = user.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	clone := *user
	return &clone, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *InMemoryStore) Update(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[user.ID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	delete(s.byEmail, strings.ToLower(existing.Email))
	clone := *user
	s.byID[user.ID] = &clone
	s.byEmail[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	delete(s.byEmail, strings.ToLower(user.Email))
	delete(s.byID, id)
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*User, 0, len(s.byID))
	for _, u := range s.byID {
		clone := *u
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}
