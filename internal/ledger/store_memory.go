package ledger

import (
	"context"
	"sync"

	dErrors "lendgate/pkg/domain-errors"
)

// InMemoryStore keeps chain records in memory, one chain per record type.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Record
	chains map[string][]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[string]*Record),
		chains: make(map[string][]*Record),
	}
}

func (s *InMemoryStore) Append(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.chains[record.RecordType]
	if len(chain) > 0 && chain[len(chain)-1].BlockNumber >= record.BlockNumber {
		return dErrors.New(dErrors.CodeConflict, "chain head moved")
	}
	clone := *record
	s.chains[record.RecordType] = append(chain, &clone)
	s.byID[record.ID] = &clone
	return nil
}

// Head returns nil without error for an empty chain.
func (s *InMemoryStore) Head(_ context.Context, recordType string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[recordType]
	if len(chain) == 0 {
		return nil, nil
	}
	clone := *chain[len(chain)-1]
	return &clone, nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byID[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "ledger record not found")
	}
	clone := *record
	return &clone, nil
}

// ListChain returns the full chain for a record type, oldest first.
func (s *InMemoryStore) ListChain(_ context.Context, recordType string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[recordType]
	out := make([]*Record, 0, len(chain))
	for _, r := range chain {
		clone := *r
		out = append(out, &clone)
	}
	return out, nil
}
