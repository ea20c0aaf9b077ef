// Package errors wraps github.com/pkg/errors so that every error carries a
// stack trace exactly once.  All KGTorrent code should use this package
// instead of the standard library errors package.
package errors

import (
	stderrors "errors"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"
)

// New returns an error with the supplied message and a stack trace.
func New(msg string) error {
	return pkgerrors.New(msg)
}

// Errorf formats according to a format specifier and returns the string as an
// error with a stack trace.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}

// Wrap returns an error annotating err with a stack trace and the supplied
// message.  If err is nil, Wrap returns nil.
func Wrap(err error, msg string) error {
	return pkgerrors.Wrap(err, msg)
}

// Wrapf returns an error annotating err with a stack trace and the format
// specifier.  If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// EnsureStack adds a stack trace to err if it does not already have one.
// Use this when propagating errors from other libraries, so that the origin
// of the error is not lost.
func EnsureStack(err error) error {
	if err == nil {
		return nil
	}
	var st stackTracer
	if stderrors.As(err, &st) {
		return err
	}
	return pkgerrors.WithStack(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error wrapping the provided errors, eliding nils.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// JoinInto joins err into dst.  It is intended for accumulating errors over a
// loop without an intermediate slice.
func JoinInto(dst *error, err error) {
	if err == nil {
		return
	}
	if *dst == nil {
		*dst = err
		return
	}
	*dst = stderrors.Join(*dst, err)
}

// Close closes c and joins any error into retErr, annotated with msg.  Use in
// a defer to avoid losing errors from Close.
func Close(retErr *error, c io.Closer, msg string, args ...interface{}) {
	if err := c.Close(); err != nil {
		JoinInto(retErr, Wrapf(err, msg, args...))
	}
}

// ForEachStackFrame calls cb once per frame of the deepest stack trace in
// err's chain, outermost frame first.
func ForEachStackFrame(err error, cb func(fmt.Formatter)) {
	var deepest stackTracer
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			deepest = st
		}
	}
	if deepest == nil {
		return
	}
	for _, frame := range deepest.StackTrace() {
		cb(frame)
	}
}
