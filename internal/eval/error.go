package eval

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of evaluation fault.
type ErrorCode int

// Stable error codes - do not change values.
const (
	ErrUnboundVar    ErrorCode = 2001 // EV2001: variable read outside its binding
	ErrUnknownBuffer ErrorCode = 2002 // EV2002: load or store to a missing buffer
	ErrOutOfBounds   ErrorCode = 2003 // EV2003: buffer index out of range
	ErrUnknownCall   ErrorCode = 2004 // EV2004: call to an unregistered function
	ErrStepLimit     ErrorCode = 2005 // EV2005: loop iteration budget exhausted
	ErrBadValue      ErrorCode = 2006 // EV2006: value unusable where it appears
)

// String returns the code as "EV2001".
func (c ErrorCode) String() string {
	return fmt.Sprintf("EV%d", c)
}

// Error is a fault raised while running a program.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("eval %s: %s", e.Code, e.Message)
}

func fault(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err carries an evaluation fault with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
