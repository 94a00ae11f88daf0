package http

import (
	"context"
	"net/http"

	"lendgate/internal/audit"
	"lendgate/internal/gate"
	"lendgate/internal/platform/logger"
	"lendgate/internal/platform/middleware"
	"lendgate/internal/platform/middleware/auth"
	"lendgate/internal/ratelimit"
	"lendgate/internal/validate"
	dErrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/httputil"
)

type auditLogRequest struct {
	Action    string         `json:"action" validate:"required,max=100"`
	TableName string         `json:"table_name" validate:"required,max=100"`
	RecordID  string         `json:"record_id"`
	OldValues map[string]any `json:"old_values"`
	NewValues map[string]any `json:"new_values"`
}

// writeAuditLog lets application services append rows to the audit trail
// through the same gate as every other privileged write.
func (h *handlers) writeAuditLog(w http.ResponseWriter, r *http.Request) {
	var req auditLogRequest
	if err := h.decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	spec := gate.Spec{
		Action: ratelimit.ActionAuditWrite,
		// The operation itself is the audit write; the gate does not add a
		// second row on top of it.
	}

	result, err := h.cfg.Gate.Run(r.Context(), spec, gate.Request{
		Validate: func() error {
			var errs validate.Errors
			req.Action = errs.Check("action", validate.FreeText(req.Action, "action", 100))
			req.TableName = errs.Check("table_name", validate.FreeText(req.TableName, "table_name", 100))
			if req.RecordID != "" {
				req.RecordID = errs.Check("record_id", validate.UUID(req.RecordID, "record_id"))
			}
			return errs.Err()
		},
	}, func(ctx context.Context) (any, error) {
		actor := auth.Identity(ctx)
		event := audit.NewEvent(actor.UserID, req.Action, req.TableName)
		event.RecordID = req.RecordID
		event.OldValues = logger.Sanitize(req.OldValues)
		event.NewValues = logger.Sanitize(req.NewValues)
		event.RequestID = middleware.GetRequestID(ctx)
		if err := h.cfg.Audits.Emit(ctx, event); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit write failed")
		}
		return event.ID, nil
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"audit_log_id": result,
	})
}

// listSecurityEvents exposes the recent security-event trail to admins.
func (h *handlers) listSecurityEvents(w http.ResponseWriter, r *http.Request) {
	claims := auth.Identity(r.Context())
	if claims == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing caller identity"))
		return
	}
	if claims.Role != auth.RoleAdmin {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
		return
	}

	events, err := h.cfg.Events.ListRecent(r.Context(), 100)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list security events failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list security events"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    events,
	})
}
