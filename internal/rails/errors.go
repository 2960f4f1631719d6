package rails

import (
	"context"
	"errors"
	"net"
)

// Class buckets rail failures by how the dispatcher should react.
type Class string

const (
	// ClassTransient failures (timeouts, 5xx, rate limits) are safe to retry.
	ClassTransient Class = "transient"
	// ClassPermanent failures (invalid account, currency mismatch) will never
	// succeed on retry and require an operator.
	ClassPermanent Class = "permanent"
	// ClassAmbiguous failures happened after the request may have reached
	// the rail and the outcome cannot be inferred from the error alone.
	// The requery path resolves the true outcome before any transition.
	ClassAmbiguous Class = "ambiguous"
)

// Error wraps a rail failure with its retry classification.
type Error struct {
	RailClass Class
	Msg       string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Transient(msg string, cause error) *Error {
	return &Error{RailClass: ClassTransient, Msg: msg, Cause: cause}
}

func Permanent(msg string, cause error) *Error {
	return &Error{RailClass: ClassPermanent, Msg: msg, Cause: cause}
}

func Ambiguous(msg string, cause error) *Error {
	return &Error{RailClass: ClassAmbiguous, Msg: msg, Cause: cause}
}

// Classify extracts the failure class from any error returned by a Rail.
// Timeouts count as transient: resubmission carries the same idempotency key,
// so the rail dedupes rather than paying twice. Everything unrecognized
// defaults to transient as well; implementations mark ambiguity explicitly.
func Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}
	var railErr *Error
	if errors.As(err, &railErr) {
		return railErr.RailClass
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	return ClassTransient
}
