package accounts

import (
	"errors"
	"net/http"
)

// Kind classifies a service failure
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInternal
)

// Messages shared with the HTTP layer
const (
	MsgInternal      = "Internal server error"
	MsgTokenMissing  = "Unauthorized - Token missing. Please login or signup first."
	MsgTokenInvalid  = "Unauthorized - Invalid or expired token"
	MsgUserNotFound  = "Requested user not found"
	MsgRoleForbidden = "Forbidden - Only Cooler or Coolest Kids are allowed to view other's data. Please change your role first"
)

// Error is returned by every Service operation. Message is safe to show to
// clients except for KindInternal, whose cause is kept in Err.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Err: err}
}

// KindOf returns the kind of err, KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps err to the HTTP status reported to clients.
// Conflicts are reported as 400.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing text of err. Internal causes are
// never exposed.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return MsgInternal
}
