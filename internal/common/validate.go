package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeAndValidate decodes the request body into dst and runs struct
// validation. The returned error is always an AppError suitable for WriteError.
func DecodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return NewAppError("VALIDATION_ERROR", "malformed request body", http.StatusBadRequest, err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			appErr := NewAppError("VALIDATION_ERROR", "invalid request payload", http.StatusBadRequest, err)
			appErr.Details = map[string]any{"fields": fields}
			return appErr
		}
		return NewAppError("VALIDATION_ERROR", "invalid request payload", http.StatusBadRequest, err)
	}
	return nil
}
