// Package ledger maintains a per-record-type hash chain over loan records.
// It provides tamper evidence, not consensus: there is no distributed
// ledger behind it, only a chained sha256 commitment in the datastore.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dErrors "lendgate/pkg/domain-errors"
)

// Store persists chain records. Head returns nil for an empty chain;
// Append must reject a record whose block number is not strictly above the
// current head with a conflict error.
type Store interface {
	Append(ctx context.Context, record *Record) error
	Head(ctx context.Context, recordType string) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
}

// Input is one hash-chain write request.
type Input struct {
	RecordType string         `json:"recordType"`
	RecordID   string         `json:"recordId"`
	Data       map[string]any `json:"data"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Service appends records to the chain.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.logger = log }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// appendAttempts bounds head-moved retries under concurrent writers.
const appendAttempts = 3

// Append computes the data hash, links it to the current chain head for
// the record type and persists the new link. Concurrent writers race for
// the head; the loser retries against the new head.
func (s *Service) Append(ctx context.Context, input Input) (*Record, error) {
	var violations []dErrors.FieldError
	if input.RecordType == "" {
		violations = append(violations, dErrors.FieldError{Field: "recordType", Reason: "is required"})
	}
	if input.RecordID == "" {
		violations = append(violations, dErrors.FieldError{Field: "recordId", Reason: "is required"})
	}
	if len(input.Data) == 0 {
		violations = append(violations, dErrors.FieldError{Field: "data", Reason: "is required"})
	}
	if len(violations) > 0 {
		return nil, dErrors.NewValidation(violations)
	}

	dataHash, err := canonicalHash(input.Data)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "data is not hashable")
	}

	var lastErr error
	for range appendAttempts {
		record, err := s.appendOnce(ctx, input, dataHash)
		if err == nil {
			return record, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) appendOnce(ctx context.Context, input Input, dataHash string) (*Record, error) {
	head, err := s.store.Head(ctx, input.RecordType)
	if err != nil {
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	prevHash := genesisHash
	var blockNumber int64 = 1
	if head != nil {
		prevHash = head.ChainHash
		blockNumber = head.BlockNumber + 1
	}

	chainHash := hashHex(prevHash + dataHash)
	record := &Record{
		ID:                 uuid.NewString(),
		RecordType:         input.RecordType,
		RecordID:           input.RecordID,
		DataHash:           dataHash,
		PrevHash:           prevHash,
		ChainHash:          chainHash,
		TransactionHash:    hashHex("tx:" + chainHash),
		BlockNumber:        blockNumber,
		VerificationStatus: StatusVerified,
		Metadata:           input.Metadata,
		CreatedAt:          s.now().UTC(),
	}

	if err := s.store.Append(ctx, record); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ledger record appended",
		"record_type", record.RecordType,
		"block_number", record.BlockNumber,
	)
	return record, nil
}

// Verify recomputes the link of a stored record against its predecessor.
func (s *Service) Verify(ctx context.Context, id string) (*Record, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if hashHex(record.PrevHash+record.DataHash) != record.ChainHash {
		record.VerificationStatus = StatusBroken
	}
	return record, nil
}

// canonicalHash hashes the payload's canonical JSON form. Map keys are
// emitted in sorted order, so two semantically equal payloads always hash
// identically.
func canonicalHash(data map[string]any) (string, error) {
	canonical, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return hashHex(string(canonical)), nil
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
