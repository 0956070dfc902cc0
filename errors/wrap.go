// Package errors offers the github.com/pkg/errors API, plus the coded PlanError type.
//
// github.com/pkg/errors records a stack for every wrap, which makes logged errors noisy when an error is wrapped
// on every return. Errors created here keep the stack of the first wrap and suppress traces that only repeat the
// stack of their cause.
package errors

import (
	stderrors "errors" //nolint: depguard
	"fmt"
	"io"
	"runtime"

	"github.com/pkg/errors" //nolint: depguard
)

// New returns an error with the supplied message and the stack at the point it was called.
func New(message string) error {
	return newStackErr(nil, message)
}

// Errorf formats according to a format specifier and records the stack at the point it was called.
func Errorf(format string, args ...interface{}) error {
	return newStackErr(nil, fmt.Sprintf(format, args...))
}

// Wrapf annotates err with a formatted message and a stack. Returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return newStackErr(err, fmt.Sprintf(format, args...))
}

// Wrap annotates err with a message and a stack. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return newStackErr(err, message)
}

// WithStack annotates err with a stack. Returns nil if err is nil.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return newStackErr(err, "")
}

// Cause returns the innermost error in the chain of causers.
func Cause(err error) error {
	for err != nil {
		c, ok := err.(causer)
		if !ok || c.Cause() == nil {
			break
		}
		err = c.Cause()
	}
	return err
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }

type stackErr struct {
	cause error
	stack errors.StackTrace
	msg   string
}

func newStackErr(cause error, msg string) error {
	// drop this function and the public caller (e.g. Wrapf) from the trace
	stack := errors.New("").(stackTracer).StackTrace()[2:]
	return &stackErr{
		cause: cause,
		stack: stack,
		msg:   msg,
	}
}

func (e *stackErr) Error() string {
	if e.cause == nil {
		return e.msg
	}
	if e.msg == "" {
		return e.cause.Error()
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *stackErr) Cause() error {
	return e.cause
}

func (e *stackErr) Unwrap() error { return e.cause }

// StackTrace returns nil when the stack only repeats the stack of the cause, so that a report built from a chain
// of wraps normally contains a single root trace.
func (e *stackErr) StackTrace() errors.StackTrace {
	var causeStack errors.StackTrace
	if se, ok := e.cause.(*stackErr); ok {
		causeStack = se.stack
	} else if st, ok := e.cause.(stackTracer); ok {
		causeStack = st.StackTrace()
	}
	if len(causeStack) < len(e.stack) {
		return e.stack
	}
	for i := 1; i < len(e.stack); i++ {
		if causeStack[len(causeStack)-i] != e.stack[len(e.stack)-i] {
			return e.stack
		}
	}
	// the top frame can only be compared by function, the line differs for the usual `return errors.WithStack(err)`
	if frameFunc(causeStack[len(causeStack)-len(e.stack)]) == frameFunc(e.stack[0]) {
		return nil
	}
	return e.stack
}

func frameFunc(f errors.Frame) string {
	pc := uintptr(f) - 1
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	file, _ := fn.FileLine(pc)
	return file + ":" + fn.Name()
}

// nolint:errcheck
func (e *stackErr) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if !s.Flag('+') {
			io.WriteString(s, e.Error())
			return
		}
		if e.cause != nil {
			fmt.Fprintf(s, "%+v", e.cause)
		}
		if e.msg != "" {
			if e.cause != nil {
				io.WriteString(s, "\n")
			}
			io.WriteString(s, e.msg)
		}
		if stack := e.StackTrace(); stack != nil {
			fmt.Fprintf(s, "%+v", stack)
		}
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type causer interface {
	Cause() error
}
