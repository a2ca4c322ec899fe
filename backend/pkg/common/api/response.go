package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
)

// ErrorResponse is the wire shape of every workflow error: a stable kind
// code, a human message and the request trace id.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// WriteError writes a standardized JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, code, message, traceID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
		TraceID: traceID,
	})
}

// WriteAppError maps a kind-tagged workflow error onto its transport status.
func WriteAppError(w http.ResponseWriter, traceID string, err error) {
	kind := apperr.KindOf(err)
	message := "internal error"
	var e *apperr.Error
	if errors.As(err, &e) {
		message = e.Message
	}
	WriteError(w, apperr.HTTPStatus(kind), string(kind), message, traceID)
}

// WriteSuccess writes a standardized JSON success response.
func WriteSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}
