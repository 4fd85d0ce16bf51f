package errors

import (
	"strings"
	"sync"
)

// MultiError collects errors from independent steps, it is safe for concurrent use.
// A nested MultiError is flattened on Append.
type MultiError interface {
	error
	Unwrap() []error
	// ErrorOrNil returns nil if the collection is empty.
	ErrorOrNil() error
	Len() int
	Append(errs ...error)
	AppendWithPrefix(err error, prefix string)
	AppendWithPrefixf(err error, format string, a ...any)
	WrappedErrors() []error
}

type multiError struct {
	lock sync.Mutex
	errs []error
}

func NewMultiError() MultiError {
	return &multiError{}
}

func (e *multiError) Error() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	switch len(e.errs) {
	case 0:
		return ""
	case 1:
		return e.errs[0].Error()
	}

	// One bullet per error, a multi-line error is indented under its bullet
	out := strings.Builder{}
	for i, err := range e.errs {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString("- ")
		out.WriteString(strings.ReplaceAll(err.Error(), "\n", "\n  "))
	}
	return out.String()
}

func (e *multiError) Unwrap() []error {
	return e.WrappedErrors()
}

func (e *multiError) ErrorOrNil() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	return e
}

func (e *multiError) Len() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.errs)
}

func (e *multiError) Append(errs ...error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	for _, err := range errs {
		if err == nil {
			continue
		}
		// Flatten a nested collection
		if nested, ok := err.(interface{ WrappedErrors() []error }); ok { // nolint: errorlint
			e.errs = append(e.errs, nested.WrappedErrors()...)
			continue
		}
		e.errs = append(e.errs, err)
	}
}

func (e *multiError) AppendWithPrefix(err error, prefix string) {
	if err == nil {
		return
	}
	e.Append(PrefixError(err, prefix))
}

func (e *multiError) AppendWithPrefixf(err error, format string, a ...any) {
	if err == nil {
		return
	}
	e.Append(PrefixErrorf(err, format, a...))
}

func (e *multiError) WrappedErrors() []error {
	e.lock.Lock()
	defer e.lock.Unlock()
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}
