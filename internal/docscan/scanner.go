// Package docscan screens uploaded loan documents before they enter the
// pipeline. The client computes the file hash; the scanner checks it
// against a known-malware set and applies name and size heuristics. It is
// a screening layer, not an antivirus: low-confidence passes still go
// through human review downstream.
package docscan

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"lendgate/internal/security"
	dErrors "lendgate/pkg/domain-errors"
)

// MaxFileSize above which documents are rejected outright (50 MiB).
const MaxFileSize = 50 << 20

var sha256HexPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Extensions never legitimate for loan documents.
var blockedExtensions = map[string]bool{
	".exe": true, ".dll": true, ".bat": true, ".cmd": true, ".scr": true,
	".com": true, ".pif": true, ".vbs": true, ".js": true, ".jar": true,
	".msi": true, ".ps1": true, ".sh": true,
}

// Double extensions used to disguise executables, e.g. "w2.pdf.exe" is
// caught by the extension check but "statement.exe.pdf" is not.
var suspiciousNamePattern = regexp.MustCompile(`(?i)\.(exe|dll|bat|cmd|scr|vbs|js|jar|msi|ps1)\.`)

// Input is a scan request. The file itself never reaches this service;
// only its hash and descriptive metadata do.
type Input struct {
	FileHash   string `json:"file_hash"`
	FileName   string `json:"file_name"`
	FileSize   int64  `json:"file_size"`
	DocumentID string `json:"document_id,omitempty"`
}

// Result is the outcome of one scan.
type Result struct {
	IsSafe       bool      `json:"is_safe"`
	ScanID       string    `json:"scan_id"`
	ThreatsFound []string  `json:"threats_found"`
	ScanDate     time.Time `json:"scan_date"`
	Confidence   float64   `json:"confidence"`
}

// Scanner checks document metadata against the malware set and heuristics.
type Scanner struct {
	knownBad map[string]bool
	recorder *security.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Scanner)

func WithLogger(log *slog.Logger) Option {
	return func(s *Scanner) { s.logger = log }
}

func WithRecorder(rec *security.Recorder) Option {
	return func(s *Scanner) { s.recorder = rec }
}

// WithKnownHashes seeds the known-malware hash set, lowercased.
func WithKnownHashes(hashes []string) Option {
	return func(s *Scanner) {
		for _, h := range hashes {
			s.knownBad[strings.ToLower(h)] = true
		}
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

func New(opts ...Option) *Scanner {
	s := &Scanner{
		knownBad: make(map[string]bool),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan validates the request and screens the document. Validation failure
// returns an error; a threat finding is not an error, it is a Result with
// IsSafe = false.
func (s *Scanner) Scan(ctx context.Context, input Input) (*Result, error) {
	var violations []dErrors.FieldError
	if !sha256HexPattern.MatchString(input.FileHash) {
		violations = append(violations, dErrors.FieldError{Field: "file_hash", Reason: "must be a 64-character hex SHA-256 digest"})
	}
	if strings.TrimSpace(input.FileName) == "" {
		violations = append(violations, dErrors.FieldError{Field: "file_name", Reason: "is required"})
	}
	if input.FileSize <= 0 {
		violations = append(violations, dErrors.FieldError{Field: "file_size", Reason: "must be positive"})
	}
	if len(violations) > 0 {
		return nil, dErrors.NewValidation(violations)
	}

	result := &Result{
		IsSafe:     true,
		ScanID:     uuid.NewString(),
		ScanDate:   s.now().UTC(),
		Confidence: 0.6,
	}

	hash := strings.ToLower(input.FileHash)
	if s.knownBad[hash] {
		result.ThreatsFound = append(result.ThreatsFound, "known_malware_hash")
		result.Confidence = 0.99
	}

	ext := strings.ToLower(filepath.Ext(input.FileName))
	if blockedExtensions[ext] {
		result.ThreatsFound = append(result.ThreatsFound, "blocked_file_extension")
		result.Confidence = max(result.Confidence, 0.95)
	} else if suspiciousNamePattern.MatchString(input.FileName) {
		result.ThreatsFound = append(result.ThreatsFound, "disguised_executable_name")
		result.Confidence = max(result.Confidence, 0.85)
	}

	if input.FileSize > MaxFileSize {
		result.ThreatsFound = append(result.ThreatsFound, "file_too_large")
		result.Confidence = max(result.Confidence, 0.7)
	}

	if len(result.ThreatsFound) > 0 {
		result.IsSafe = false
		s.reportThreat(ctx, input, result)
	}

	return result, nil
}

func (s *Scanner) reportThreat(ctx context.Context, input Input, result *Result) {
	s.logger.WarnContext(ctx, "document scan flagged threats",
		"scan_id", result.ScanID,
		"threats", result.ThreatsFound,
		"document_id", input.DocumentID,
	)
	if s.recorder == nil {
		return
	}
	event := security.NewEvent(security.EventMalwareDetected, security.SeverityCritical)
	event.Details = map[string]any{
		"scan_id":     result.ScanID,
		"file_hash":   input.FileHash,
		"file_name":   input.FileName,
		"document_id": input.DocumentID,
		"threats":     result.ThreatsFound,
	}
	s.recorder.Record(ctx, event)
}
