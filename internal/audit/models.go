package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one audit-trail row capturing who did what to which record.
// Old/new value payloads are sanitized by the caller before emission; the
// audit layer never sees raw secrets.
type Event struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	TableName string         `json:"table_name"`
	RecordID  string         `json:"record_id,omitempty"`
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent assigns identity and timestamp to an audit event.
func NewEvent(actor, action, tableName string) Event {
	return Event{
		ID:        uuid.NewString(),
		Actor:     actor,
		Action:    action,
		TableName: tableName,
		Timestamp: time.Now().UTC(),
	}
}

// Actions recorded by the gate on behalf of every privileged endpoint.
const (
	ActionUserCreated     = "user_created"
	ActionUserUpdated     = "user_updated"
	ActionUserDeleted     = "user_deleted"
	ActionPasswordReset   = "password_reset"
	ActionUsersListed     = "users_listed"
	ActionLedgerHashed    = "ledger_hashed"
	ActionDocumentScanned = "document_scanned"
	ActionOperationFailed = "operation_failed"
)
