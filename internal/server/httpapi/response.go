package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
)

// envelope is the body of every successful response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// errorEnvelope is the body of every failed response.
type errorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// statusFor maps sentinel errors to HTTP status codes. Anything unknown is
// an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUploadFailed):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrDuplicateIdentifier):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrSessionExpiredOrReused):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// messageFor hides internal error text behind a generic message.
func messageFor(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return "Internal server error"
	}
	switch {
	case errors.Is(err, common.ErrSessionExpiredOrReused):
		return common.ErrSessionExpiredOrReused.Error()
	case errors.Is(err, common.ErrorUnauthorized):
		return "Unauthorized request"
	}
	return err.Error()
}

func respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	writeJSON(w, status, errorEnvelope{
		StatusCode: status,
		Message:    messageFor(status, err),
		Success:    false,
		Errors:     []string{},
	})
}
