package errors

import (
	"fmt"
	"strings"
)

type prefixedError struct {
	prefix string
	err    error
}

// PrefixError adds the prefix before the error message.
// Trailing punctuation of the prefix is dropped, so a sentence can be used as a prefix.
func PrefixError(err error, prefix string) error {
	if err == nil {
		panic("error cannot be nil")
	}
	return &prefixedError{prefix: strings.TrimRight(prefix, ".:"), err: err}
}

func PrefixErrorf(err error, format string, a ...any) error {
	return PrefixError(err, fmt.Sprintf(format, a...))
}

func (e *prefixedError) Unwrap() error {
	return e.err
}

func (e *prefixedError) Error() string {
	msg := e.err.Error()
	// A multi-line message, for example a bulleted MultiError, goes under the prefix
	if strings.Contains(msg, "\n") {
		return e.prefix + ":\n" + msg
	}
	return e.prefix + ": " + msg
}
