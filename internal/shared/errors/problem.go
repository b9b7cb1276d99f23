// Package errors provides RFC 7807 Problem Details for HTTP APIs.
package errors

import (
	"fmt"
	"maps"
	"net/http"
)

// ProblemDetail represents an RFC 7807 Problem Details response.
// See: https://www.rfc-editor.org/rfc/rfc7807
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code for this occurrence.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Instance is a URI reference that identifies the specific occurrence.
	Instance string `json:"instance,omitempty"`
	// Extensions holds machine-readable fields such as kind, reason and retryable.
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Error implements the error interface.
func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// WithDetail returns a copy with the given detail message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithExtension returns a copy with an additional extension property. The
// receiver's map is never written, so templates stay pristine.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	ext := make(map[string]any, len(p.Extensions)+1)
	maps.Copy(ext, p.Extensions)
	ext[key] = value
	p.Extensions = ext
	return p
}

// Retryable reports whether the problem was marked retryable.
func (p ProblemDetail) Retryable() bool {
	retryable, _ := p.Extensions[ExtensionRetryable].(bool)
	return retryable
}

// ExtensionRetryable is the extension key clients read to decide on a retry.
const ExtensionRetryable = "retryable"

// Problem types as URI references.
const (
	TypeValidation         = "/problems/validation-error"
	TypeNotFound           = "/problems/not-found"
	TypeConflict           = "/problems/conflict"
	TypeInternal           = "/problems/internal-error"
	TypeBadRequest         = "/problems/bad-request"
	TypeBusinessRule       = "/problems/business-rule-violation"
	TypeInsufficientStock  = "/problems/insufficient-stock"
	TypeStockRaceLost      = "/problems/stock-race-lost"
	TypeServiceUnavailable = "/problems/service-unavailable"
	TypeOutcomeUnknown     = "/problems/outcome-unknown"
)

// Problem templates.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = ProblemDetail{
		Type:   TypeNotFound,
		Title:  "Resource Not Found",
		Status: http.StatusNotFound,
	}

	// ErrValidation indicates the request failed validation.
	ErrValidation = ProblemDetail{
		Type:   TypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
	}

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = ProblemDetail{
		Type:   TypeBadRequest,
		Title:  "Bad Request",
		Status: http.StatusBadRequest,
	}

	// ErrConflict indicates a conflict with the current state.
	ErrConflict = ProblemDetail{
		Type:   TypeConflict,
		Title:  "Conflict",
		Status: http.StatusConflict,
	}

	// ErrInternal indicates an unexpected server error.
	ErrInternal = ProblemDetail{
		Type:   TypeInternal,
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
	}

	// ErrBusinessRule indicates well-formed input that breaks a business rule.
	ErrBusinessRule = ProblemDetail{
		Type:   TypeBusinessRule,
		Title:  "Business Rule Violation",
		Status: http.StatusBadRequest,
	}

	// ErrInsufficientStock indicates a line asks for more units than are in stock.
	ErrInsufficientStock = ProblemDetail{
		Type:   TypeInsufficientStock,
		Title:  "Insufficient Stock",
		Status: http.StatusBadRequest,
	}

	// ErrStockRaceLost indicates stock changed concurrently; the request may be retried.
	ErrStockRaceLost = ProblemDetail{
		Type:   TypeStockRaceLost,
		Title:  "Stock Changed Concurrently",
		Status: http.StatusConflict,
	}

	// ErrOutcomeUnknown indicates the request timed out while its effect may
	// still be applied; resubmit only under the reported idempotency key.
	ErrOutcomeUnknown = ProblemDetail{
		Type:   TypeOutcomeUnknown,
		Title:  "Outcome Unknown",
		Status: http.StatusGatewayTimeout,
	}

	// ErrServiceUnavailable indicates a transient backend failure.
	ErrServiceUnavailable = ProblemDetail{
		Type:   TypeServiceUnavailable,
		Title:  "Service Unavailable",
		Status: http.StatusServiceUnavailable,
	}
)
