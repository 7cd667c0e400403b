// Package dcerrors defines the structured error vocabulary that crosses the
// service boundary. Every error leaving a service carries a stable code so
// the HTTP layer never leaks a bare exception to callers.
package dcerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, wire-visible error identifier.
type Code string

const (
	// Generic codes used across layers.
	CodeBadRequest  Code = "bad_request"
	CodeNotFound    Code = "not_found"
	CodeInternal    Code = "internal"
	CodeUnavailable Code = "unavailable"

	// Pipeline-specific codes surfaced by the generate and resolve calls.
	CodeLaneRequired          Code = "LANE_REQUIRED"
	CodeMissingRequiredFields Code = "MISSING_REQUIRED_FIELDS"
	CodeUploadFailed          Code = "UPLOAD_FAILED"
	CodeDocumentUpsertFailed  Code = "DOCUMENT_UPSERT_FAILED"
	CodeRegistryLookupFailed  Code = "REGISTRY_LOOKUP_FAILED"
	CodeArtifactNotFound      Code = "ARTIFACT_NOT_FOUND"
)

// Error pairs a code with a human-readable message. It supports wrapping so
// stores can attach the originating failure without losing the code.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error that preserves the underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// MessageOf extracts the message from err without the cause chain.
func MessageOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	return "internal error"
}

// ToHTTPStatus maps codes to HTTP status codes for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeLaneRequired, CodeMissingRequiredFields:
		return http.StatusBadRequest
	case CodeNotFound, CodeArtifactNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeUploadFailed, CodeDocumentUpsertFailed, CodeRegistryLookupFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
