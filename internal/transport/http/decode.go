package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "lendgate/pkg/domain-errors"
)

// maxBodyBytes caps request bodies; nothing on this surface legitimately
// approaches it.
const maxBodyBytes = 1 << 20

// decodeBody parses the JSON body into dst and applies its struct
// validation tags. Tag failures aggregate into one validation error so the
// caller sees every missing field at once.
func (h *handlers) decodeBody(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request body")
	}

	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "request validation")
		}
		violations := make([]dErrors.FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			violations = append(violations, dErrors.FieldError{
				Field:  strings.ToLower(fe.Field()),
				Reason: tagReason(fe),
			})
		}
		return dErrors.NewValidation(violations)
	}
	return nil
}

func tagReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "exceeds the maximum length of " + fe.Param()
	case "min":
		return "is below the minimum length of " + fe.Param()
	default:
		return "is invalid"
	}
}
