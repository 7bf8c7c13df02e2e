// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errs classifies domain errors so transports can map them without
// knowing every sentinel.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the error class.
type Kind int

const (
	// Internal is anything unclassified: store failures, bugs in wiring.
	Internal Kind = iota
	// Validation errors are bad input, rejected before touching shared state.
	Validation
	// NotFound means a referenced record does not exist.
	NotFound
	// Conflict errors depend on current state (slot closed, bid outbid).
	Conflict
	// Eligibility errors are expected, frequent outcomes and are not failures.
	Eligibility
	// Invariant violations indicate a bug or corrupted configuration.
	Invariant
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Eligibility:
		return "eligibility"
	case Invariant:
		return "invariant"
	default:
		return "internal"
	}
}

// Error is a classified error with a stable machine readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
	// Notice marks an outcome shown to users as information rather than
	// a failure. Eligibility errors are always notices.
	Notice bool
}

// New creates a sentinel error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by code so a detailed copy still equals its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

// With returns a copy of the sentinel carrying a detail message.
func (e *Error) With(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message + ": " + fmt.Sprintf(format, args...), Err: e.Err, Notice: e.Notice}
}

// Wrap returns a copy of the sentinel wrapping cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause, Notice: e.Notice}
}

// AsNotice returns a copy of the sentinel flagged as informational.
func (e *Error) AsNotice() *Error {
	c := *e
	c.Notice = true
	return &c
}

// KindOf classifies err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// CodeOf returns the code of the first classified error in the chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// Informational reports whether err should be rendered as an informational
// message instead of a failure.
func Informational(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Notice || e.Kind == Eligibility
	}
	return false
}

// Expected reports whether err is a normal business outcome that should not
// be logged as a failure.
func Expected(err error) bool {
	switch KindOf(err) {
	case Validation, NotFound, Conflict, Eligibility:
		return true
	}
	return false
}

// Common validation sentinel for malformed requests.
var ErrInvalidInput = New(Validation, "INVALID_INPUT", "invalid input")
