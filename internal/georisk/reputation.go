package georisk

import (
	"context"
	"sync"
	"time"
)

// ReputationRecord is the persisted per-IP reputation state. Created on
// first sighting, updated on each subsequent sighting, never deleted.
type ReputationRecord struct {
	IPAddress   string    `json:"ip_address"`
	IsAllowed   bool      `json:"is_allowed"`
	RiskLevel   Level     `json:"risk_level"`
	CountryCode string    `json:"country_code"`
	LastSeen    time.Time `json:"last_seen"`
	Notes       string    `json:"notes,omitempty"`
}

// ReputationStore persists IP reputation records. Only the risk scorer
// writes to it.
type ReputationStore interface {
	Get(ctx context.Context, ip string) (*ReputationRecord, error)
	Put(ctx context.Context, record ReputationRecord) error
}

// InMemoryReputationStore keeps reputation records in memory.
type InMemoryReputationStore struct {
	mu      sync.RWMutex
	records map[string]ReputationRecord
}

func NewInMemoryReputationStore() *InMemoryReputationStore {
	return &InMemoryReputationStore{records: make(map[string]ReputationRecord)}
}

// Get returns nil without error for unseen IPs.
func (s *InMemoryReputationStore) Get(_ context.Context, ip string) (*ReputationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[ip]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *InMemoryReputationStore) Put(_ context.Context, record ReputationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.IPAddress] = record
	return nil
}
