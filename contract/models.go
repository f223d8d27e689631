package contract

import (
	"errors"
	"strings"
)

var (
	// ErrUpdateNotAllowed signals an exhausted client phone-update
	// quota: clients may set their phone once after the initial unset
	// state.
	ErrUpdateNotAllowed = errors.New("contract: phone update not allowed")
	// ErrForbidden signals an operation invoked by a role that may not
	// perform it.
	ErrForbidden = errors.New("contract: not authorized")
)

// Kind is the machine-readable error tag carried alongside the
// user-facing message in a failure envelope.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindExpired            Kind = "expired"
	KindAlreadyUsed        Kind = "already_used"
	KindInvalidCode        Kind = "invalid_code"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUpdateNotAllowed   Kind = "update_not_allowed"
	KindForbidden          Kind = "forbidden"
	KindInternal           Kind = "internal"
)

// Response is the uniform envelope returned by every facade operation.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
}

func ok[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

func okMsg[T any](data T, message string) Response[T] {
	return Response[T]{Success: true, Data: data, Message: message}
}

// MaskCIN hides all but the last two characters of a national id.
// Presentation layers decide when to call it; records always carry the
// raw value.
func MaskCIN(cin string) string {
	if len(cin) <= 2 {
		return cin
	}
	return strings.Repeat("*", len(cin)-2) + cin[len(cin)-2:]
}
