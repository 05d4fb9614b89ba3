package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/runner"
)

// TurnRequest is the body of POST /v1/sessions/{id}/turns.
type TurnRequest struct {
	Token        string `json:"token,omitempty" validate:"omitempty,max=32,printascii"`
	LastQuestion string `json:"last_question,omitempty" validate:"max=1024"`
	Message      string `json:"message" validate:"max=4096"`
}

// AdvanceRequest is the body of POST /v1/turns.
type AdvanceRequest struct {
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=64,printascii"`
	TurnRequest
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, maxBytes int64, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBytes+1))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
			}
			return fmt.Errorf("invalid request body: %s", strings.Join(msgs, ", "))
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// statusFor maps engine errors to HTTP semantics.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrEventNotFound):
		return http.StatusNotFound, "event_not_found"
	case errors.Is(err, domain.ErrStalePosition):
		return http.StatusConflict, "stale_position"
	case errors.Is(err, domain.ErrSessionComplete):
		return http.StatusConflict, "session_complete"
	case errors.Is(err, domain.ErrInvalidPosition):
		return http.StatusBadRequest, "invalid_position"
	case errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8):
		return http.StatusBadRequest, "invalid_input"
	case domain.IsRetryable(err):
		return http.StatusServiceUnavailable, "retryable"
	}
	return http.StatusInternalServerError, "internal"
}
