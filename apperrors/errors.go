// Package apperrors defines the error taxonomy shared by services and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation             Kind = "VALIDATION_ERROR"
	KindNotFound               Kind = "NOT_FOUND"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindInvalidAssignment      Kind = "INVALID_ASSIGNMENT"
	KindConflict               Kind = "CONFLICT"
	KindUnauthorized           Kind = "UNAUTHORIZED"
	KindForbidden              Kind = "FORBIDDEN"
	KindInvalidSignature       Kind = "INVALID_SIGNATURE"
	KindGatewayUnavailable     Kind = "PAYMENT_GATEWAY_UNAVAILABLE"
	KindPaymentFailed          Kind = "PAYMENT_FAILED"
	KindUnexpected             Kind = "UNEXPECTED_ERROR"
)

// Error is a domain error raised close to the violation and mapped to HTTP
// by the central error handler.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so sentinel comparisons work across wrapped instances.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// HTTPStatus returns the status code the error surfaces as.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInvalidSignature:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidStateTransition, KindConflict:
		return http.StatusConflict
	case KindInvalidAssignment:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	case KindPaymentFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func NotFound(entity string) *Error {
	return newError(KindNotFound, "%s not found", entity)
}

func OutOfStock(productID int64) *Error {
	return newError(KindValidation, "product %d is out of stock", productID)
}

func InvalidStateTransition(from, to string) *Error {
	return newError(KindInvalidStateTransition, "cannot move order from %s to %s", from, to)
}

// InvalidState rejects an operation the order's current status does not allow.
func InvalidState(format string, args ...any) *Error {
	return newError(KindInvalidStateTransition, format, args...)
}

func InvalidAssignment(format string, args ...any) *Error {
	return newError(KindInvalidAssignment, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func InvalidSignature(err error) *Error {
	return &Error{Kind: KindInvalidSignature, Message: "webhook signature verification failed", Err: err}
}

func GatewayUnavailable(format string, args ...any) *Error {
	return newError(KindGatewayUnavailable, format, args...)
}

func PaymentFailed(format string, args ...any) *Error {
	return newError(KindPaymentFailed, format, args...)
}

// Wrap marks err as unexpected unless it already carries a Kind.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: KindUnexpected, Message: message, Err: err}
}

// KindOf reports the Kind of err, KindUnexpected for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// Sentinels for errors.Is checks.
var (
	ErrShopNotFound    = NotFound("shop")
	ErrProductNotFound = NotFound("product")
	ErrOrderNotFound   = NotFound("order")
	ErrUserNotFound    = NotFound("user")
	ErrStaleOrder      = Conflict("order was modified concurrently, reload and retry")
)
