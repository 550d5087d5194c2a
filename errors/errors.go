// Package errors wraps github.com/go-errors/errors to give the engine a
// small, consistent error-construction surface: stack-carrying errors with
// optional structured key/value context, matching the call style the
// teacher's own internal errors package uses (errors.New, errors.Wrap,
// errors.WithStack, errors.NewKV).
package errors

import (
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
)

// KV is a single structured key/value pair attached to an error message.
type KV struct {
	Key   string
	Value any
}

// NewKV constructs a KV pair.
func NewKV(key string, value any) KV {
	return KV{Key: key, Value: value}
}

func formatMessage(message string, kvs []KV) string {
	if len(kvs) == 0 {
		return message
	}
	parts := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		parts = append(parts, fmt.Sprintf("%s: %v", kv.Key, kv.Value))
	}
	return fmt.Sprintf("%s (%s)", message, strings.Join(parts, ", "))
}

// New creates a new stack-carrying error with optional structured context.
func New(message string, kvs ...KV) error {
	return goerrors.New(formatMessage(message, kvs))
}

// Wrap wraps inner with an additional message and optional structured
// context, preserving inner's stack if it already carries one.
func Wrap(message string, inner error, kvs ...KV) error {
	if inner == nil {
		return New(message, kvs...)
	}
	wrapped := goerrors.WrapPrefix(inner, formatMessage(message, kvs), 1)
	return wrapped
}

// WithStack attaches a stack trace to err (if it doesn't already carry one)
// plus optional structured context.
func WithStack(err error, kvs ...KV) error {
	if err == nil {
		return nil
	}
	if len(kvs) > 0 {
		return goerrors.WrapPrefix(err, formatMessage("", kvs), 1)
	}
	return goerrors.Wrap(err, 1)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// As finds the first error in err's chain that matches target's type.
func As(err error, target any) bool {
	return goerrors.As(err, target)
}
