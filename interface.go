// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

// Package ibus implements the client side of the IBus input method protocol's
// rich text encoding, on top of a D-Bus marshaller.
//
// IBus carries text as a D-Bus variant holding a struct whose first member is
// a structural name identifying its shape:
//
//     IBusText      (s a{sv} s v)       name, properties, string, attribute list
//     IBusAttrList  (s a{sv} av)        name, properties, attributes
//     IBusAttribute (s a{sv} u u u u)   name, properties, type, value, start, end
//
// The properties dictionary is reserved and always empty. Each nested shape is
// wrapped in its own variant. Shapes are told apart only by their structural
// name, so decoding always checks it.
//
// Attribute types are:
//
//     type | meaning    | value
//     -----+------------+----------------------------------
//        1 | underline  | 0 none, 1 single, 2 double, 3 low, 4 error
//        2 | foreground | 32-bit color
//        3 | background | 32-bit color
//
// The channel order of colors is not documented by IBus, so colors are
// carried as the raw integer. Attribute ranges are in characters (Unicode code
// points) and are end-exclusive; they are not validated against the string.
//
// Errors fall into two classes. A value which is well typed but the wrong
// shape (a different structural name, too few fields, an unknown attribute
// type) is malformed: errors.Is(err, ErrMalformed) holds, and a tolerant
// client may skip the value. A value of the wrong D-Bus type is a type
// mismatch: errors.Is(err, ErrTypeMismatch) holds, and the message carrying it
// should not be trusted.
//
// The mapping from Go types to D-Bus used by the marshaller is:
//
//                        Go | D-Bus
//     ----------------------+--------------------
//                      bool | b
//              uint8 (byte) | y
//              int16/uint16 | n/q
//              int32/uint32 | i/u
//              int64/uint64 | x/t
//                   float64 | d
//                    string | s
//                ObjectPath | o
//                 Signature | g
//                    UnixFD | h
//      Variant, interface{} | v
//                    []byte | ay
//                 []T, [N]T | aT
//                  map[K]V  | a{KV}
//              struct{ ...} | ( ... )  (exported fields, in order)
//                        *T | T (Go pointers are ignored)
//
// Struct fields tagged `dbus:"-"` are skipped. Types may define their own
// encoding by implementing Marshaler and Unmarshaler.
package ibus

import (
	dbusinterfaces "go.e43.eu/ibus/interfaces"
	"go.e43.eu/ibus/internal/errors"
)

// interface Coder is the top-level interface to the D-Bus marshaller
//
// A coder (which may be safely used from multiple threads) marshals argument
// lists to and from message bodies, caching the codecs it builds for each type
type Coder = dbusinterfaces.Coder

// interface Encoder appends arguments to a message body
type Encoder = dbusinterfaces.Encoder

// interface Decoder reads arguments from a message body
type Decoder = dbusinterfaces.Decoder

// interface Marshaler is implemented by types which encode themselves
type Marshaler = dbusinterfaces.Marshaler

// interface Unmarshaler is implemented by types which decode themselves
type Unmarshaler = dbusinterfaces.Unmarshaler

type (
	Signature  = dbusinterfaces.Signature
	ObjectPath = dbusinterfaces.ObjectPath
	UnixFD     = dbusinterfaces.UnixFD
	Variant    = dbusinterfaces.Variant
)

// TypeMismatchError is returned when a value on the wire is not of the
// expected D-Bus type
type TypeMismatchError = errors.TypeMismatchError

// MalformedError is returned when a value is well typed but not of the
// expected shape
type MalformedError = errors.MalformedError

const (
	ErrTypeMismatch     = errors.ErrTypeMismatch
	ErrMalformed        = errors.ErrMalformed
	ErrInvalidValue     = errors.ErrInvalidValue
	ErrInvalidSignature = errors.ErrInvalidSignature
	ErrLengthExceedsMax = errors.ErrLengthExceedsMax
	ErrShortBuffer      = errors.ErrShortBuffer
	ErrNestingTooDeep   = errors.ErrNestingTooDeep
	ErrNotPointer       = errors.ErrNotPointer
	ErrNilPointer       = errors.ErrNilPointer
	ErrUnknownSignal    = errors.ErrUnknownSignal
	ErrAddressNotFound  = errors.ErrAddressNotFound
)
