// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

// Package signature parses D-Bus type signatures.
//
// A signature is a sequence of complete types. Basic types are a single type
// code; containers are built from an array prefix (`a`), parenthesised structs
// and brace-delimited dict entries (which may only appear as array elements).
//
// Functions in this package operate on plain strings so that they may be used
// by both the public Signature type and the coder internals.
package signature

import (
	"go.e43.eu/ibus/internal/errors"
)

const (
	Byte       = 'y'
	Bool       = 'b'
	Int16      = 'n'
	Uint16     = 'q'
	Int32      = 'i'
	Uint32     = 'u'
	Int64      = 'x'
	Uint64     = 't'
	Double     = 'd'
	String     = 's'
	ObjectPath = 'o'
	Signature  = 'g'
	UnixFD     = 'h'
	Array      = 'a'
	Variant    = 'v'
	StructOpen = '('
	StructEnd  = ')'
	DictOpen   = '{'
	DictEnd    = '}'
)

const (
	// MaxLength is the longest permitted signature
	MaxLength = 255

	// Maximum nesting of arrays, and separately of structs/dict entries
	maxDepth = 32
)

// IsBasic returns if code is a basic (non-container) type code. Only basic
// types may be used as dict keys.
func IsBasic(code byte) bool {
	switch code {
	case Byte, Bool, Int16, Uint16, Int32, Uint32, Int64, Uint64, Double,
		String, ObjectPath, Signature, UnixFD:
		return true
	default:
		return false
	}
}

// Alignment returns the wire alignment of values whose type begins with code
func Alignment(code byte) int {
	switch code {
	case Byte, Signature, Variant:
		return 1
	case Int16, Uint16:
		return 2
	case Bool, Int32, Uint32, String, ObjectPath, UnixFD, Array:
		return 4
	case Int64, Uint64, Double, StructOpen, DictOpen:
		return 8
	default:
		return 1
	}
}

func invalid(sig, reason string) error {
	return errors.SignatureError{Signature: sig, Reason: reason}
}

// Next splits the first complete type off of sig
func Next(sig string) (first, rest string, err error) {
	n, err := next(sig, sig, 0, 0)
	if err != nil {
		return "", sig, err
	}
	return sig[:n], sig[n:], nil
}

func next(full, sig string, arrays, structs int) (int, error) {
	if sig == "" {
		return 0, invalid(full, "incomplete type")
	}

	switch c := sig[0]; {
	case IsBasic(c) || c == Variant:
		return 1, nil

	case c == Array:
		if arrays >= maxDepth {
			return 0, invalid(full, "arrays nested too deeply")
		}

		if len(sig) > 1 && sig[1] == DictOpen {
			n, err := dictEntry(full, sig[1:], arrays+1, structs)
			return n + 1, err
		}

		n, err := next(full, sig[1:], arrays+1, structs)
		return n + 1, err

	case c == StructOpen:
		if structs >= maxDepth {
			return 0, invalid(full, "structs nested too deeply")
		}

		i, fields := 1, 0
		for {
			if i >= len(sig) {
				return 0, invalid(full, "unterminated struct")
			}
			if sig[i] == StructEnd {
				break
			}

			n, err := next(full, sig[i:], arrays, structs+1)
			if err != nil {
				return 0, err
			}
			i += n
			fields++
		}

		if fields == 0 {
			return 0, invalid(full, "empty struct")
		}
		return i + 1, nil

	case c == DictOpen:
		return 0, invalid(full, "dict entry outside of array")

	default:
		return 0, invalid(full, "unexpected '"+string(c)+"'")
	}
}

// dictEntry parses `{KV}` (sig starts at the opening brace)
func dictEntry(full, sig string, arrays, structs int) (int, error) {
	if structs >= maxDepth {
		return 0, invalid(full, "structs nested too deeply")
	}

	if len(sig) < 2 || !IsBasic(sig[1]) {
		return 0, invalid(full, "dict key must be a basic type")
	}

	n, err := next(full, sig[2:], arrays, structs+1)
	if err != nil {
		return 0, err
	}

	end := 2 + n
	if end >= len(sig) || sig[end] != DictEnd {
		return 0, invalid(full, "dict entry must have exactly two members")
	}
	return end + 1, nil
}

// Split splits sig into its complete types
func Split(sig string) ([]string, error) {
	if len(sig) > MaxLength {
		return nil, errors.LengthError{Actual: uint64(len(sig)), Max: MaxLength}
	}

	var types []string
	for sig != "" {
		first, rest, err := Next(sig)
		if err != nil {
			return nil, err
		}
		types = append(types, first)
		sig = rest
	}
	return types, nil
}

// Validate returns an error if sig is not a valid sequence of complete types
func Validate(sig string) error {
	_, err := Split(sig)
	return err
}

// ValidateSingle returns an error unless sig is exactly one complete type, as
// is required of variant signatures
func ValidateSingle(sig string) error {
	if len(sig) > MaxLength {
		return errors.LengthError{Actual: uint64(len(sig)), Max: MaxLength}
	}

	_, rest, err := Next(sig)
	switch {
	case err != nil:
		return err
	case rest != "":
		return invalid(sig, "expected a single complete type")
	}
	return nil
}

// Fields returns the member types of the struct or dict entry type sig.
// sig must be a single valid complete type.
func Fields(sig string) ([]string, error) {
	if len(sig) < 2 || (sig[0] != StructOpen && sig[0] != DictOpen) {
		return nil, invalid(sig, "not a struct or dict entry")
	}

	var (
		inner  = sig[1 : len(sig)-1]
		fields []string
	)
	for inner != "" {
		first, rest, err := Next(inner)
		if err != nil {
			return nil, err
		}
		fields = append(fields, first)
		inner = rest
	}
	return fields, nil
}

// Elem returns the element type of the array type sig
func Elem(sig string) string {
	return sig[1:]
}

// IsDict returns if sig is an array of dict entries
func IsDict(sig string) bool {
	return len(sig) > 1 && sig[0] == Array && sig[1] == DictOpen
}
