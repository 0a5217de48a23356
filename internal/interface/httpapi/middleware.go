// Package httpapi provides HTTP routing and handlers for the roster API.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"rostersync-service/pkg/logger"
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrNotFound      = "not_found"
	ErrBadRequest    = "bad_request"
	ErrConflict      = "conflict"
	ErrInternalError = "internal_error"
	ErrValidation    = "validation_error"
	ErrUnauthorized  = "unauthorized"
)

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type contextKey string

const ownerKey contextKey = "owner"

// OwnerHeader carries the opaque principal id resolved by the upstream
// authentication collaborator. The engine never validates credentials.
const OwnerHeader = "X-Owner-Id"

// Principal extracts the authenticated owner id from the request context.
func Principal(r *http.Request) string {
	if v, ok := r.Context().Value(ownerKey).(string); ok {
		return v
	}
	return ""
}

// Auth rejects requests carrying no principal and stores the owner id on
// the request context for the handlers.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(OwnerHeader)
		if owner == "" {
			WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "Missing principal")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

// RequestLogging logs every request with a generated request id.
func RequestLogging(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			requestID := uuid.NewString()
			next.ServeHTTP(w, r)
			log.Info("Request handled",
				"requestId", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(started).String())
		})
	}
}

// Recovery recovers from handler panics and returns a structured 500.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("Panic recovered", "error", err, "stack", string(debug.Stack()))
					WriteError(w, http.StatusInternalServerError, ErrInternalError, "An unexpected error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
