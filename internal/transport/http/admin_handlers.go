package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/admin"
	"lendgate/internal/audit"
	"lendgate/internal/gate"
	"lendgate/internal/platform/middleware/auth"
	"lendgate/internal/platform/privacy"
	"lendgate/internal/ratelimit"
	"lendgate/internal/stepup"
	"lendgate/internal/validate"
	"lendgate/pkg/httputil"
)

type createUserRequest struct {
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	MFAToken  string `json:"mfa_token"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	op := stepup.OpUserCreation
	spec := gate.Spec{
		Action:       ratelimit.ActionUserCreation,
		AuditAction:  audit.ActionUserCreated,
		TableName:    "admin_users",
		RequireAdmin: true,
		StepUp:       &op,
	}

	var input admin.CreateInput
	result, err := h.cfg.Gate.Run(r.Context(), spec, gate.Request{
		StepUpToken: req.MFAToken,
		// The trail keeps a masked address; the full one lives on the record.
		Details:  map[string]any{"email": privacy.MaskEmail(req.Email), "role": req.Role},
		Validate: func() error {
			var errs validate.Errors
			input.Email = errs.Check("email", validate.Email(req.Email))
			if pw := validate.Password(req.Password); !pw.Valid {
				errs.Add("password", pw.Err)
			}
			input.Password = req.Password
			input.FirstName = errs.Check("firstName", validate.Name(req.FirstName, "firstName"))
			input.LastName = errs.Check("lastName", validate.Name(req.LastName, "lastName"))
			input.Role = admin.Role(req.Role)
			return errs.Err()
		},
	}, func(ctx context.Context) (any, error) {
		return h.cfg.Users.Create(ctx, input)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user := result.(*admin.User)
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User created",
		"userId":  user.ID,
	})
}

type updateUserRequest struct {
	MFAToken  string  `json:"mfa_token"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Role      *string `json:"role"`
	Active    *bool   `json:"active"`
}

func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	var req updateUserRequest
	if err := h.decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	op := stepup.OpUserUpdate
	spec := gate.Spec{
		Action:       ratelimit.ActionUserUpdate,
		AuditAction:  audit.ActionUserUpdated,
		TableName:    "admin_users",
		RequireAdmin: true,
		StepUp:       &op,
	}

	input := admin.UpdateInput{Active: req.Active}
	result, err := h.cfg.Gate.Run(r.Context(), spec, gate.Request{
		StepUpToken: req.MFAToken,
		TargetID:    targetID,
		Validate: func() error {
			var errs validate.Errors
			input.UserID = errs.Check("id", validate.UUID(targetID, "id"))
			if req.FirstName != nil {
				first := errs.Check("firstName", validate.Name(*req.FirstName, "firstName"))
				input.FirstName = &first
			}
			if req.LastName != nil {
				last := errs.Check("lastName", validate.Name(*req.LastName, "lastName"))
				input.LastName = &last
			}
			if req.Role != nil {
				role := admin.Role(*req.Role)
				if !role.IsValid() {
					errs.Add("role", "is not a recognized role")
				}
				input.Role = &role
			}
			return errs.Err()
		},
	}, func(ctx context.Context) (any, error) {
		return h.cfg.Users.Update(ctx, input)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user := result.(*admin.User)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    user.View(),
	})
}

type deleteUserRequest struct {
	MFAToken string `json:"mfa_token"`
}

func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	var req deleteUserRequest
	if err := h.decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	op := stepup.OpUserDeletion
	spec := gate.Spec{
		Action:           ratelimit.ActionUserDeletion,
		AuditAction:      audit.ActionUserDeleted,
		TableName:        "admin_users",
		RequireAdmin:     true,
		StepUp:           &op,
		RejectSelfTarget: true,
	}

	_, err := h.cfg.Gate.Run(r.Context(), spec, gate.Request{
		StepUpToken: req.MFAToken,
		TargetID:    targetID,
		Validate: func() error {
			var errs validate.Errors
			errs.Check("id", validate.UUID(targetID, "id"))
			return errs.Err()
		},
	}, func(ctx context.Context) (any, error) {
		actor := auth.Identity(ctx)
		return nil, h.cfg.Users.Delete(ctx, actor.UserID, targetID)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User deleted",
	})
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
	MFAToken    string `json:"mfa_token"`
}

func (h *handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	var req resetPasswordRequest
	if err := h.decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	op := stepup.OpPasswordReset
	spec := gate.Spec{
		Action:       ratelimit.ActionPasswordReset,
		AuditAction:  audit.ActionPasswordReset,
		TableName:    "admin_users",
		RequireAdmin: true,
		StepUp:       &op,
	}

	_, err := h.cfg.Gate.Run(r.Context(), spec, gate.Request{
		StepUpToken: req.MFAToken,
		TargetID:    targetID,
		Validate: func() error {
			var errs validate.Errors
			errs.Check("id", validate.UUID(targetID, "id"))
			if pw := validate.Password(req.NewPassword); !pw.Valid {
				errs.Add("new_password", pw.Err)
			}
			return errs.Err()
		},
	}, func(ctx context.Context) (any, error) {
		return nil, h.cfg.Users.ResetPassword(ctx, targetID, req.NewPassword)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	spec := gate.Spec{
		Action:       ratelimit.ActionListUsers,
		AuditAction:  audit.ActionUsersListed,
		TableName:    "admin_users",
		RequireAdmin: true,
	}

	result, err := h.cfg.Gate.Run(r.Context(), spec, gate.Request{}, func(ctx context.Context) (any, error) {
		return h.cfg.Users.List(ctx)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    result,
	})
}
