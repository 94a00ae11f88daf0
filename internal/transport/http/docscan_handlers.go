package http

import (
	"context"
	"net/http"

	"lendgate/internal/audit"
	"lendgate/internal/docscan"
	"lendgate/internal/gate"
	"lendgate/internal/ratelimit"
	"lendgate/pkg/httputil"
)

func (h *handlers) scanDocument(w http.ResponseWriter, r *http.Request) {
	var input docscan.Input
	if err := h.decodeBody(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}

	spec := gate.Spec{
		Action:      ratelimit.ActionDocumentScan,
		AuditAction: audit.ActionDocumentScanned,
		TableName:   "documents",
	}

	result, err := h.cfg.Gate.Run(r.Context(), spec, gate.Request{
		TargetID: input.DocumentID,
		Details:  map[string]any{"file_name": input.FileName, "file_hash": input.FileHash},
	}, func(ctx context.Context) (any, error) {
		return h.cfg.Scanner.Scan(ctx, input)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
