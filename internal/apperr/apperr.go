// Package apperr provides the structured error kinds shared by the stores
// and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeNotFound means a referenced session or visitor does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeSessionClosed means the session exists but has been deactivated;
	// writes against it are rejected.
	CodeSessionClosed Code = "SESSION_CLOSED"

	// CodeValidation means one or more required fields are missing or
	// empty. The Fields map carries every offending field, not just the
	// first.
	CodeValidation Code = "VALIDATION"

	// CodeUnknownSender means a message was posted under a visitor id not
	// registered in the target session.
	CodeUnknownSender Code = "UNKNOWN_SENDER"
)

// HTTPStatus maps a code to the HTTP status the API surfaces it with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeUnknownSender:
		return http.StatusNotFound
	case CodeSessionClosed:
		return http.StatusGone
	case CodeValidation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Error is a domain error with a code and, for validation failures, a
// field→reason map.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", strings.ToLower(string(e.Code)), e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", strings.ToLower(string(e.Code)), strings.Join(parts, "; "))
}

// NotFound reports that the named entity does not exist.
func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

// SessionClosed reports a write against a deactivated session.
func SessionClosed(sessionID string) *Error {
	return &Error{Code: CodeSessionClosed, Message: "session " + sessionID + " is no longer active"}
}

// UnknownSender reports a message posted by a visitor id not registered in
// the target session.
func UnknownSender(visitorID string) *Error {
	return &Error{Code: CodeUnknownSender, Message: "visitor " + visitorID + " is not registered in this session"}
}

// Validation reports missing or empty required fields. The map holds one
// reason per offending field.
func Validation(fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: "validation failed", Fields: fields}
}

// CodeOf extracts the domain code from err, or "" if err is not a domain
// error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given domain code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
