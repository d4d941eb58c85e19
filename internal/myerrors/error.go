package myerrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidState
	KindValidation
	KindUnavailable
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation_failure"
	case KindUnavailable:
		return "service_unavailable"
	case KindConflict:
		return "integrity_conflict"
	default:
		return "unknown"
	}
}

// RequestError is an error that is meant to be shown to the API caller as is.
type RequestError struct {
	Kind    Kind
	Message string
	Err     error
}

func (r *RequestError) Error() string {
	return r.Message
}

func (r *RequestError) Unwrap() error {
	return r.Err
}

func newError(kind Kind, err error, format string, args ...any) *RequestError {
	return &RequestError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func NotFound(format string, args ...any) *RequestError {
	return newError(KindNotFound, nil, format, args...)
}

func InvalidState(format string, args ...any) *RequestError {
	return newError(KindInvalidState, nil, format, args...)
}

func Validation(format string, args ...any) *RequestError {
	return newError(KindValidation, nil, format, args...)
}

func Unavailable(err error, format string, args ...any) *RequestError {
	return newError(KindUnavailable, err, format, args...)
}

func Conflict(err error, format string, args ...any) *RequestError {
	return newError(KindConflict, err, format, args...)
}

// KindOf reports the kind of the first RequestError in err's chain.
func KindOf(err error) Kind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return KindUnknown
}
