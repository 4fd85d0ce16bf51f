// Package errors provides error handling for the whole project.
//
// It extends the standard library with multi errors and prefixed errors,
// both render as readable, optionally bulleted, messages.
package errors

import (
	stderrors "errors"
	"fmt"
)

func New(text string) error {
	return stderrors.New(text)
}

func Errorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// Wrap adds the message before the error, the original error is preserved for Is/As.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func Wrapf(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), err)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}
