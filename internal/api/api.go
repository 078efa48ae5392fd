// Package api contains helpers shared by http handlers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/sirupsen/logrus"
)

// Error ...
// swagger:model
type Error struct {
	Error string `json:"error"`
	// Field is set when request is rejected by validation.
	Field string `json:"field,omitempty"`
}

// GetLogger returns logger with request id.
func GetLogger(ctx context.Context) logrus.FieldLogger {
	l := logrus.WithField("layer", "api")

	if id := middleware.GetReqID(ctx); id != "" {
		l = l.WithField("request_id", id)
	}

	return l
}

// WriteOK writes object as json with given status code.
func WriteOK(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logrus.WithError(err).Error("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// WriteError writes error message as json.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteOK(w, status, Error{Error: message})
}

// WriteFieldError writes validation error bound to request field.
func WriteFieldError(w http.ResponseWriter, status int, field, message string) {
	WriteOK(w, status, Error{Error: message, Field: field})
}

// WriteInternalErrorf logs error and writes opaque internal error.
func WriteInternalErrorf(ctx context.Context, w http.ResponseWriter, format string, args ...interface{}) {
	GetLogger(ctx).Errorf(format, args...)

	WriteError(w, http.StatusInternalServerError, fmt.Sprintf("internal error, request id: %s", middleware.GetReqID(ctx)))
}
