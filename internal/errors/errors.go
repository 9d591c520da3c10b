// Package errors defines the engine's error taxonomy: a closed set of
// kinds (not identifiers, per the contract) that callers can switch on
// without depending on error string contents.
package errors

import "fmt"

// Kind is one entry in the engine's error taxonomy.
type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindNotFound     Kind = "NOT_FOUND"
	KindDuplicate    Kind = "DUPLICATE"
	KindStorage      Kind = "STORAGE"
	KindActivation   Kind = "ACTIVATION"
	KindSerialization Kind = "SERIALIZATION"
	KindEvaluator    Kind = "EVALUATOR"
)

// Error is the engine's structured error type. It carries a Kind so
// callers can branch on category, an optional wrapped cause for
// errors.Is/errors.As, and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error    { return newf(KindNotFound, format, args...) }
func Duplicate(format string, args ...any) *Error   { return newf(KindDuplicate, format, args...) }
func Activation(format string, args ...any) *Error  { return newf(KindActivation, format, args...) }
func Serialization(format string, args ...any) *Error {
	return newf(KindSerialization, format, args...)
}
func Evaluator(format string, args ...any) *Error { return newf(KindEvaluator, format, args...) }

// Storage wraps a backing-store failure, preserving the cause for Unwrap.
func Storage(message string, cause error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: cause}
}

// Wrap attaches additional context to err, preserving its Kind if it is
// already one of ours, otherwise classifying it as storage-adjacent
// internal failure via KindStorage since that's the only kind callers of
// Wrap in this codebase use it for (store adapters wrapping driver errors).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return &Error{Kind: e.Kind, Message: fmt.Sprintf("%s: %s", message, e.Message), Err: e.Err}
	}
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

func IsValidation(err error) bool   { return Is(err, KindValidation) }
func IsNotFound(err error) bool     { return Is(err, KindNotFound) }
func IsDuplicate(err error) bool    { return Is(err, KindDuplicate) }
func IsStorage(err error) bool      { return Is(err, KindStorage) }
func IsActivation(err error) bool   { return Is(err, KindActivation) }
func IsSerialization(err error) bool { return Is(err, KindSerialization) }
func IsEvaluator(err error) bool    { return Is(err, KindEvaluator) }
