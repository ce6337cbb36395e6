package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = NewError("NOT_FOUND", "resource not found")
	ErrInternal            = NewError("INTERNAL_ERROR", "internal error")
	ErrConnectionExhausted = NewError("CONNECTION_EXHAUSTED", "connection attempts exhausted")
	ErrDecode              = NewError("DECODE_ERROR", "message payload could not be decoded")
	ErrValidation          = NewError("VALIDATION_ERROR", "validation failed")
	ErrDownstream          = NewError("DOWNSTREAM_ERROR", "downstream dependency failed")
	ErrServiceUnavailable  = NewError("SERVICE_UNAVAILABLE", "service unavailable")
	ErrTimeout             = NewError("TIMEOUT", "operation timed out")
)

type FatalError interface {
	error
	IsFatal() bool
}

// Error is a coded application error. Values declared in this package are
// templates; With* methods return copies.
type Error struct {
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	fatal     *bool
}

func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so errors.Is(err, ErrDecode) works for derived copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// IsFatal reports whether retrying cannot help. It satisfies the FatalError
// interface in pkg/retry, so a fatal *Error stops a retry loop at once.
func (e *Error) IsFatal() bool {
	if e.fatal != nil {
		return *e.fatal
	}

	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return fatalErr.IsFatal()
		}
	}

	return e.permanentCode()
}

func (e *Error) permanentCode() bool {
	switch e.Code {
	case ErrValidation.Code, ErrDecode.Code, ErrNotFound.Code, ErrConnectionExhausted.Code:
		return true
	}
	return false
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithMessage(message string) *Error {
	err := *e
	err.Message = message
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	fatal := true
	err.fatal = &fatal
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// Code returns the code of the outermost *Error in the chain, or "" when
// err carries none.
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func hasCode(err error, code string) bool {
	for err != nil {
		var appErr *Error
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound.Code)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrValidation.Code)
}

func IsDecode(err error) bool {
	return hasCode(err, ErrDecode.Code)
}

func IsDownstream(err error) bool {
	return hasCode(err, ErrDownstream.Code)
}

func IsConnectionExhausted(err error) bool {
	return hasCode(err, ErrConnectionExhausted.Code)
}
