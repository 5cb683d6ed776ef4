// Package handler is the HTTP layer: it parses requests, calls the
// services, and shapes the JSON envelope. Every response carries a
// success flag; errors additionally carry a machine-readable type and a
// human message.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
)

// ErrorResponse is the envelope for every failed request:
//
//	{"success": false, "error": "not_found", "message": "event not found"}
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends a JSON body with the given status. Headers must be set
// before the first write, so the content type goes first.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeSuccess wraps the payload fields in the success envelope:
//
//	{"success": true, "user": {...}, "token": "..."}
func writeSuccess(w http.ResponseWriter, status int, payload map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeError maps a domain error chain to the HTTP status and envelope.
// Unknown errors become a generic 500; their text never reaches the
// client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Success: false,
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Success: false,
		Error:   "internal_error",
		Message: "an unexpected error occurred",
	})
}

// parseObjectID converts a path parameter into an ObjectID once, at the
// HTTP boundary, so the services only ever see typed ids.
func parseObjectID(field, value string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, apperror.ValidationFailed(field, "must be a valid object id")
	}
	return id, nil
}
