// Package apperr defines the business-layer error taxonomy (spec §7),
// distinct from HTTP status: every error a connector, the connector
// service, or an orchestrator returns is one of these, distinguishable via
// errors.As/errors.Is at package boundaries the way the teacher's own
// cmd/migrate.go wraps errors with fmt.Errorf("...: %w", err).
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy tag carried by every business error.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindUnauthorized      Kind = "unauthorized"
	KindRateLimitExceeded Kind = "rate_limit_exceeded"
	KindLockConflict      Kind = "lock_conflict"
	KindContextNotFound   Kind = "context_not_found"
	KindNotLoggedIn       Kind = "not_logged_in"
	KindSessionCreation   Kind = "session_creation"
	KindBrowserInit       Kind = "browser_init"
	KindNotImplemented    Kind = "not_implemented"
	KindInternal          Kind = "internal"
)

// Error is the common shape every taxonomy row takes.
type Error struct {
	Kind    Kind
	Message string
	// Extra carries kind-specific structured detail, e.g. NotLoggedIn's
	// {platform, context_id, resource_url, requires_login}.
	Extra map[string]any
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, apperr.KindX)-style comparisons against a bare
// *Error carrying only a Kind, as well as matching two *Error values with
// the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func newErr(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...any) error {
	return newErr(KindValidation, fmt.Sprintf(format, args...), nil)
}

func Unauthorized(message string) error {
	return newErr(KindUnauthorized, message, nil)
}

func RateLimitExceeded(operation string) error {
	return newErr(KindRateLimitExceeded, fmt.Sprintf("rate limit exceeded for operation %q", operation), nil)
}

func LockConflict(message string) error {
	return newErr(KindLockConflict, message, nil)
}

// ContextNotFound is the "platform login missing" business error (distinct
// from NotLoggedIn — spec §7).
func ContextNotFound(contextID string) error {
	return &Error{
		Kind:    KindContextNotFound,
		Message: fmt.Sprintf("platform context %q not found", contextID),
		Extra:   map[string]any{"error_type": "context_not_found"},
	}
}

// NotLoggedIn carries the resource_url the caller should present to the
// user to complete login (spec §7).
func NotLoggedIn(platform, contextID, resourceURL string) error {
	return &Error{
		Kind:    KindNotLoggedIn,
		Message: "task-level login required",
		Extra: map[string]any{
			"platform":        platform,
			"context_id":      contextID,
			"resource_url":    resourceURL,
			"requires_login":  true,
		},
	}
}

func SessionCreation(err error) error {
	return newErr(KindSessionCreation, "remote browser provider failed to create a session", err)
}

func BrowserInit(err error) error {
	return newErr(KindBrowserInit, "remote browser provider failed to initialize the browser", err)
}

func NotImplemented(platform string, operation string) error {
	return newErr(KindNotImplemented, fmt.Sprintf("platform %q does not support operation %q", platform, operation), nil)
}

func Internal(err error) error {
	return newErr(KindInternal, "internal error", err)
}

// As is a convenience wrapper over errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
