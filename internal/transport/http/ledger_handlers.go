package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/audit"
	"lendgate/internal/ledger"
	"lendgate/internal/platform/middleware"
	"lendgate/internal/platform/middleware/auth"
	"lendgate/internal/platform/middleware/metadata"
	"lendgate/internal/ratelimit"
	dErrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/httputil"
)

// ledgerHash appends a hash-chain record. Authentication is optional here:
// batch jobs write with service tokens, the intake pipeline writes
// anonymously. Anonymous writers are rate-limited by client IP instead of
// caller identity.
func (h *handlers) ledgerHash(w http.ResponseWriter, r *http.Request) {
	var input ledger.Input
	if err := h.decodeBody(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}

	ctx := r.Context()
	actor := "anonymous"
	callerKey := "ip_" + metadata.FromContext(ctx).ClientIP
	if claims := auth.Identity(ctx); claims != nil {
		actor = claims.UserID
		callerKey = claims.UserID
	}

	decision := h.cfg.Limiter.Check(ctx, callerKey, h.cfg.Limiter.PolicyFor(ratelimit.ActionLedgerWrite))
	if !decision.Allowed {
		retryAfter := decision.RetryAfter
		if retryAfter < 1 {
			retryAfter = 1
		}
		httputil.WriteError(w, dErrors.NewRateLimited(retryAfter))
		return
	}

	record, err := h.cfg.Ledger.Append(ctx, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	event := audit.NewEvent(actor, audit.ActionLedgerHashed, "ledger_records")
	event.RecordID = record.ID
	event.NewValues = map[string]any{
		"record_type":  record.RecordType,
		"block_number": record.BlockNumber,
	}
	event.RequestID = middleware.GetRequestID(ctx)
	if err := h.cfg.Audits.Emit(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "audit write failed after ledger append", "error", err)
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":            true,
		"blockchainRecordId": record.ID,
		"dataHash":           record.DataHash,
		"transactionHash":    record.TransactionHash,
		"blockNumber":        record.BlockNumber,
		"blockchainHash":     record.ChainHash,
		"verificationStatus": record.VerificationStatus,
	})
}

// ledgerVerify recomputes the chain link of one stored record and reports
// whether it still holds.
func (h *handlers) ledgerVerify(w http.ResponseWriter, r *http.Request) {
	record, err := h.cfg.Ledger.Verify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"blockchainRecordId": record.ID,
		"blockNumber":        record.BlockNumber,
		"blockchainHash":     record.ChainHash,
		"verificationStatus": record.VerificationStatus,
	})
}
