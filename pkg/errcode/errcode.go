// Package errcode defines the error taxonomy surfaced to API callers.
// Every error carries a Kind, which decides the HTTP status, and a stable
// numeric Code, which clients switch on.
package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuth
	KindForbidden
	KindLocked
	KindLimitExceeded
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindLocked:
		return "locked"
	case KindLimitExceeded:
		return "limit_exceeded"
	default:
		return "internal"
	}
}

// Error is the single error type returned by services.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so detailed copies made with
// WithMessage or Wrap still satisfy errors.Is against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// Wrap returns a copy that keeps err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

func New(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrParams          = New(KindValidation, 40000, "invalid request parameters")
	ErrPassword        = New(KindAuth, 40001, "wrong password")
	ErrCheckNotPass    = New(KindValidation, 40002, "parameter check failed")
	ErrParamsNull      = New(KindValidation, 40003, "request parameters are empty")
	ErrAccountExists   = New(KindConflict, 40004, "account already exists")
	ErrNotLogin        = New(KindAuth, 40100, "not logged in")
	ErrNoAuth          = New(KindForbidden, 40101, "permission denied")
	ErrAccountLocked   = New(KindLocked, 40102, "account is locked")
	ErrForbidden       = New(KindForbidden, 40300, "access forbidden")
	ErrAlreadyLimited  = New(KindLimitExceeded, 40301, "limit reached")
	ErrNotFound        = New(KindNotFound, 40400, "requested data does not exist")
	ErrAccountNotFound = New(KindNotFound, 40401, "account does not exist")
	ErrAlreadyJoined   = New(KindConflict, 40900, "already a member of the team")
	ErrTooManyRequests = New(KindLimitExceeded, 42900, "too many requests")
	ErrSystem          = New(KindInternal, 50000, "internal system error")
	ErrOperation       = New(KindInternal, 50001, "operation failed")
	ErrRegister        = New(KindInternal, 50002, "registration insert failed")
)

// From converts any error into an *Error. Errors outside the taxonomy become ErrSystem.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrSystem.Wrap(err)
}

// HTTPStatus maps a Kind to the status code written on the response.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindLocked:
		return http.StatusLocked
	case KindLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsAuth reports whether err belongs to the auth family: bad credentials,
// missing session or insufficient permission.
func IsAuth(err error) bool {
	return IsKind(err, KindAuth) || IsKind(err, KindForbidden)
}
