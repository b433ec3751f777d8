// Package apperr holds the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindBackend Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "backend"
	}
}

// Error: ошибка с видом и стабильным кодом для клиента.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by code so sentinels survive wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Kind == e.Kind
}

var (
	ErrDuplicateEmail     = &Error{Kind: KindAuth, Code: "email_already_in_use", Msg: "email already in use"}
	ErrWeakCredential     = &Error{Kind: KindAuth, Code: "weak_password", Msg: "password should be at least 6 characters"}
	ErrInvalidCredential  = &Error{Kind: KindAuth, Code: "invalid_credentials", Msg: "invalid email or password"}
	ErrAccountExists      = &Error{Kind: KindConflict, Code: "account_exists", Msg: "account already registered"}
	ErrNotFound           = &Error{Kind: KindNotFound, Code: "not_found", Msg: "not found"}
	ErrForbidden          = &Error{Kind: KindForbidden, Code: "forbidden", Msg: "forbidden"}
	ErrInvalidTransition  = &Error{Kind: KindConflict, Code: "invalid_transition", Msg: "invalid status transition"}
	ErrUploadInProgress   = &Error{Kind: KindConflict, Code: "upload_in_progress", Msg: "an upload is already in progress"}
	ErrChatLocked         = &Error{Kind: KindConflict, Code: "chat_locked", Msg: "chat opens once the match is accepted"}
	ErrEmptyMessage       = &Error{Kind: KindValidation, Code: "empty_message", Msg: "message text is empty"}
	ErrFileTooLarge       = &Error{Kind: KindValidation, Code: "file_too_large", Msg: "File size must be less than 5MB"}
	ErrIterationConsumed  = &Error{Kind: KindConflict, Code: "sequence_consumed", Msg: "sequence already consumed"}
	ErrIdentityMismatched = &Error{Kind: KindAuth, Code: "identity_mismatch", Msg: "identity token does not match email"}
)

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: msg}
}

// Wrap keeps the sentinel's kind and code, attaching the cause.
func Wrap(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Msg: sentinel.Msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindBackend.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackend
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "server_error"
}

// MessageOf returns a client-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
