// Package apperror is the error taxonomy shared by the work-order engine, the
// inventory store and both transports.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation           Kind = "validation"
	KindIllegalTransition    Kind = "illegal_transition"
	KindConflict             Kind = "conflict"
	KindInsufficientStock    Kind = "insufficient_stock"
	KindAuthorization        Kind = "authorization"
	KindNotFound             Kind = "not_found"
	KindConfirmationRequired Kind = "confirmation_required"
	KindSaleLinkage          Kind = "sale_linkage"
	KindInternal             Kind = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Shortage describes one part a start command could not deduct.
type Shortage struct {
	PartID    int64 `json:"part_id"`
	Required  int   `json:"required"`
	Available int   `json:"available"`
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: msg}
}

// ValidationFields carries per-field failures, keyed by field name.
func ValidationFields(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: msg, Details: fields}
}

func IllegalTransition(msg string) *Error {
	return &Error{Kind: KindIllegalTransition, Code: "ILLEGAL_TRANSITION", Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Code: "STATE_CONFLICT", Message: msg}
}

func InsufficientStock(shortages []Shortage) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Code:    "INSUFFICIENT_STOCK",
		Message: fmt.Sprintf("insufficient stock for %d part(s)", len(shortages)),
		Details: shortages,
	}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindAuthorization, Code: "FORBIDDEN", Message: msg}
}

func NotFound(what string, id any) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: fmt.Sprintf("%s %v not found", what, id)}
}

func ConfirmationRequired(code, msg string) *Error {
	return &Error{Kind: KindConfirmationRequired, Code: code, Message: msg}
}

func SaleLinkage(err error) *Error {
	return &Error{Kind: KindSaleLinkage, Code: "SALE_LINKAGE_FAILED", Message: "sale linkage failed, retry after re-fetching the order", Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: msg, Err: err}
}

// KindOf returns the taxonomy kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
