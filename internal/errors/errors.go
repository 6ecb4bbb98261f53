// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package errors

import (
	"fmt"
	"reflect"
	"strings"
)

type xerror string

func (e xerror) Error() string {
	return string(e)
}

const (
	// Array longer than permitted by D-Bus (64MiB), or a string or signature
	// longer than its length prefix can express
	ErrLengthExceedsMax = xerror("ibus: Variable length object too long")

	// The buffer ended in the middle of a value
	ErrShortBuffer = xerror("ibus: Unexpected end of data")

	// Invalid value for type (e.g. a boolean other than 0 or 1, a string which
	// is not valid UTF-8, or non-zero padding)
	ErrInvalidValue = xerror("ibus: Invalid value for type")

	// Type signature is not well formed
	ErrInvalidSignature = xerror("ibus: Invalid type signature")

	// Decode expected pointer parameter
	ErrNotPointer = xerror("ibus: Expected pointer parameter")

	// Pointer was unexpectedly nil
	ErrNilPointer = xerror("ibus: Unexpected nil pointer")

	// Variants nested deeper than we are willing to follow
	ErrNestingTooDeep = xerror("ibus: Variants nested too deeply")

	// A value on the wire did not have the type the reader asked for. Returned
	// errors are of type TypeMismatchError.
	ErrTypeMismatch = xerror("ibus: Type mismatch")

	// A record was well typed, but is not the shape we expected (wrong
	// structural name, too few fields, unknown discriminant). Returned errors
	// are of type MalformedError.
	ErrMalformed = xerror("ibus: Malformed value")

	// A message was not one of the signals we know how to decode
	ErrUnknownSignal = xerror("ibus: Unknown signal")

	// No IBus bus address could be discovered
	ErrAddressNotFound = xerror("ibus: Bus address not found")
)

type InvalidTypeError struct {
	T reflect.Type
}

func (e InvalidTypeError) Error() string {
	return fmt.Sprintf("ibus: Type '%s' unsupported", e.T)
}

type LengthError struct {
	Actual, Max uint64
}

func (err LengthError) Is(target error) bool {
	return target == ErrLengthExceedsMax
}

func (err LengthError) Error() string {
	return fmt.Sprintf("%s (%d > %d)", ErrLengthExceedsMax, err.Actual, err.Max)
}

type SignatureError struct {
	Signature string
	Reason    string
}

func (err SignatureError) Is(target error) bool {
	return target == ErrInvalidSignature
}

func (err SignatureError) Error() string {
	return fmt.Sprintf("%s '%s': %s", ErrInvalidSignature, err.Signature, err.Reason)
}

// TypeMismatchError reports that the argument at Position had signature
// Actual where Expected was wanted. An empty Actual means the argument list
// ran out.
type TypeMismatchError struct {
	Expected string
	Actual   string
	Position int
}

func (err TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

func (err TypeMismatchError) Error() string {
	if err.Actual == "" {
		return fmt.Sprintf("%s: expected '%s' at argument %d, found end of arguments",
			ErrTypeMismatch, err.Expected, err.Position)
	}
	return fmt.Sprintf("%s: expected '%s' at argument %d, found '%s'",
		ErrTypeMismatch, err.Expected, err.Position, err.Actual)
}

// MalformedError reports a record of the right types but the wrong shape
type MalformedError struct {
	Shape  string
	Reason string
}

func (err MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

func (err MalformedError) Error() string {
	return fmt.Sprintf("%s %s: %s", ErrMalformed, err.Shape, err.Reason)
}

func Malformed(shape, format string, args ...interface{}) error {
	return MalformedError{shape, fmt.Sprintf(format, args...)}
}

type FieldError struct {
	Underlying error
	Path       string
}

func (err FieldError) Unwrap() error {
	return err.Underlying
}

func (err FieldError) Error() string {
	uerr := strings.TrimPrefix(err.Underlying.Error(), "ibus: ")
	return fmt.Sprintf("ibus: %s (at %s)", uerr, err.Path)
}

func WithFieldError(err error, parts ...string) error {
	if err == nil {
		return nil
	}

	var combined string
	if parts[0] == "" {
		parts[0] = "<anonymous>"
	}

	switch len(parts) {
	case 1:
		combined = parts[0]
	default:
		combined = strings.Join(parts, ".")
	}

	switch err := err.(type) {
	case FieldError:
		err.Path = fmt.Sprintf("%s %s", combined, err.Path)
		return err
	default:
		return FieldError{err, combined}
	}
}
