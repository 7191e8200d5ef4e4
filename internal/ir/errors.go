package ir

import (
	"errors"
	"fmt"
)

// InternalError reports a broken invariant inside an optimization pass.
// Passes panic with it; the pass driver recovers it and aborts compilation.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg
}

// Assertf panics with an *InternalError when cond is false.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
	}
}

// Internalf panics with an *InternalError unconditionally.
func Internalf(format string, args ...any) {
	panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
}

// RecoverInternal converts a recovered *InternalError into *errp.
// Other panics are re-raised. Use as `defer ir.RecoverInternal(&err)`.
func RecoverInternal(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*InternalError); ok {
		*errp = errors.Join(*errp, ie)
		return
	}
	panic(r)
}
