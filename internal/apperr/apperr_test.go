package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeUnknownSender, http.StatusNotFound},
		{CodeSessionClosed, http.StatusGone},
		{CodeValidation, http.StatusUnprocessableEntity},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestValidation_CollectsAllFields(t *testing.T) {
	err := Validation(map[string]string{
		"name":  "name is required",
		"email": "email is required",
	})
	msg := err.Error()
	if !strings.Contains(msg, "name is required") || !strings.Contains(msg, "email is required") {
		t.Errorf("Error() = %q, want both field reasons", msg)
	}
	// Field order in the message is deterministic.
	if strings.Index(msg, "email") > strings.Index(msg, "name") {
		t.Errorf("Error() = %q, want fields sorted", msg)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NotFound("session")); got != CodeNotFound {
		t.Errorf("CodeOf(NotFound) = %q, want %q", got, CodeNotFound)
	}
	if got := CodeOf(errors.New("plain")); got != Code("") {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestCodeOf_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("store: %w", SessionClosed("s1"))
	if !IsCode(wrapped, CodeSessionClosed) {
		t.Errorf("IsCode(wrapped, SessionClosed) = false, want true")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{NotFound("session"), "session not found"},
		{SessionClosed("abc"), "abc"},
		{UnknownSender("v1"), "v1"},
	}
	for _, tt := range tests {
		if !strings.Contains(tt.err.Error(), tt.want) {
			t.Errorf("Error() = %q, want to contain %q", tt.err.Error(), tt.want)
		}
	}
}
