package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/domain/auth_errors"
)

// Error is a non-2xx response.
type Error struct {
	Method string
	Path   string
	Status int
	// Body is the raw response body.
	Body string

	cause error
}

func newError(method, path string, status int, body []byte) *Error {
	e := &Error{Method: method, Path: path, Status: status, Body: string(body)}
	switch status {
	case http.StatusUnauthorized:
		e.cause = auth_errors.ErrNotAuthenticated
	case http.StatusForbidden:
		e.cause = domain.ErrAccessDenied
	case http.StatusNotFound:
		e.cause = domain.ErrNotFound
	}
	return e
}

func (e *Error) Error() string {
	if detail := e.Detail(); detail != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Unwrap exposes the matching sentinel, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Detail extracts a human-readable message from the body. The backend
// answers either {"detail": "..."}, {"error": "..."} or a map of field names
// to lists of messages.
func (e *Error) Detail() string {
	var body map[string]any
	if err := json.Unmarshal([]byte(e.Body), &body); err != nil {
		return strings.TrimSpace(e.Body)
	}
	for _, key := range []string{"detail", "error", "non_field_errors"} {
		if msg := flatten(body[key]); msg != "" {
			return msg
		}
	}

	fields := make([]string, 0, len(body))
	for field := range body {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		if msg := flatten(body[field]); msg != "" {
			parts = append(parts, field+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
