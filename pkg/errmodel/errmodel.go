// Package errmodel defines the compact structured error carried across the
// backend API and the MCP tool surface.
package errmodel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Category values.
const (
	CategoryValidation = "validation"
	CategoryStorage    = "storage"
	CategoryQuery      = "query"
	CategoryNetwork    = "network"
	CategorySystem     = "system"
)

const maxMessageLen = 512

// Error is the compact error payload. It implements the error interface.
type Error struct {
	Category string         `json:"category"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// New constructs a compact error.
func New(category, code, message string, ctx map[string]any) *Error {
	return &Error{Category: category, Code: code, Message: truncate(message, maxMessageLen), Context: ctx}
}

// From converts any error into a compact Error. A *Error passes through.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Category: CategorySystem, Code: "internal", Message: truncate(err.Error(), maxMessageLen)}
}

func Validation(code, message string, ctx map[string]any) *Error {
	return New(CategoryValidation, code, message, ctx)
}

func Storage(code, message string, ctx map[string]any) *Error {
	return New(CategoryStorage, code, message, ctx)
}

func Query(code, message string, ctx map[string]any) *Error {
	return New(CategoryQuery, code, message, ctx)
}

func System(code, message string, ctx map[string]any) *Error {
	return New(CategorySystem, code, message, ctx)
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category string) bool {
	ce := From(err)
	return ce != nil && strings.EqualFold(ce.Category, category)
}

// HTTPStatus maps category/code to an HTTP status code.
func HTTPStatus(e *Error) int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Category {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryStorage:
		if e.Code == "not_found" {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case CategoryQuery:
		return http.StatusBadRequest
	case CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteHTTP writes the error envelope {error, trace_id} with the mapped
// status, including the active trace id when the request carries a span.
func WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	ce := From(err)
	if ce == nil {
		ce = &Error{Category: CategorySystem, Code: "internal", Message: "unknown error"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(ce))

	traceID := ""
	if r != nil {
		sc := trace.SpanFromContext(r.Context()).SpanContext()
		if sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":    ce,
		"trace_id": traceID,
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
