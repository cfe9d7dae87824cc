package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so that the command surface can turn them
// into notifications.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not_found"
	KindAlreadyExists      ErrorKind = "already_exists"
	KindProtected          ErrorKind = "protected"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindDeliveryFailed     ErrorKind = "delivery_failed"
	KindNoFormsOnPage      ErrorKind = "no_forms_on_page"
)

// Sentinels for errors.Is checks. Every *Error matches the sentinel of its kind.
var (
	ErrValidation         = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrProtected          = errors.New("protected")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDeliveryFailed     = errors.New("delivery failed")
	ErrNoFormsOnPage      = errors.New("no forms on this page")
)

var sentinels = map[ErrorKind]error{
	KindValidation:         ErrValidation,
	KindNotFound:           ErrNotFound,
	KindAlreadyExists:      ErrAlreadyExists,
	KindProtected:          ErrProtected,
	KindStorageUnavailable: ErrStorageUnavailable,
	KindDeliveryFailed:     ErrDeliveryFailed,
	KindNoFormsOnPage:      ErrNoFormsOnPage,
}

// Error is a classified failure raised by an operation.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = sentinels[e.Kind].Error()
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind ErrorKind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation reports bad input such as a disallowed file type or size.
func Validation(op, format string, args ...any) error {
	return newError(KindValidation, op, nil, format, args...)
}

// NotFound reports a missing file or profile.
func NotFound(op, format string, args ...any) error {
	return newError(KindNotFound, op, nil, format, args...)
}

// AlreadyExists reports a name conflict.
func AlreadyExists(op, format string, args ...any) error {
	return newError(KindAlreadyExists, op, nil, format, args...)
}

// Protected reports an attempt to remove a reserved entity.
func Protected(op, format string, args ...any) error {
	return newError(KindProtected, op, nil, format, args...)
}

// StorageUnavailable wraps an underlying tier failure, including quota overflow.
func StorageUnavailable(op string, err error, format string, args ...any) error {
	return newError(KindStorageUnavailable, op, err, format, args...)
}

// DeliveryFailed reports a request that never reached its target page.
func DeliveryFailed(op string, err error, format string, args ...any) error {
	return newError(KindDeliveryFailed, op, err, format, args...)
}

// NoFormsOnPage reports a fill attempt against a page without interactive controls.
func NoFormsOnPage(op string) error {
	return newError(KindNoFormsOnPage, op, nil, "no forms on this page")
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
