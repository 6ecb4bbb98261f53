// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

// Package dbusinterfaces defines the primary interfaces of the D-Bus coder
//
// (This package is primarily separated out in order to permit the implementation to
// be broken down into multiple packages)
package dbusinterfaces

import (
	"encoding/binary"
	"fmt"
	"reflect"
)

// Signature is a D-Bus type signature
type Signature string

// ObjectPath is a D-Bus object path
type ObjectPath string

// UnixFD is an index into the file descriptors which accompany a message
type UnixFD uint32

// Variant is a self-describing value: a single complete type signature,
// and a value of that type.
//
// When decoded without a more specific target, the value is a tree of:
//
//     D-Bus | Go
//     ------+-----------------------------
//         y | byte
//         b | bool
//      n, q | int16, uint16
//      i, u | int32, uint32
//      x, t | int64, uint64
//         d | float64
//         s | string
//         o | ObjectPath
//         g | Signature
//         h | UnixFD
//         v | Variant
//        ay | []byte
//      a{}  | map[interface{}]interface{}
//        aT | []interface{}
//      (..) | []interface{}
type Variant struct {
	Signature Signature
	Value     interface{}
}

func (v Variant) String() string {
	return fmt.Sprintf("<%s %v>", v.Signature, v.Value)
}

// interface Marshaler is the interface implemented by a type which knows how
// to encode itself to D-Bus
type Marshaler interface {
	// DBusSignature returns the single complete type which MarshalDBus writes
	DBusSignature() Signature

	MarshalDBus(e Encoder) error
}

// interface Unmarshaler is the interface implemented by a type which knows how
// to decode itself from D-Bus. It is only consulted when the wire signature
// matches DBusSignature.
type Unmarshaler interface {
	DBusSignature() Signature

	UnmarshalDBus(d Decoder) error
}

// interface Coder is the top-level interface to the D-Bus codec
//
// A coder (which may be safely used from multiple threads) provides the ability
// to marshal argument lists to and from D-Bus message bodies. It caches the
// codecs it builds for each Go type.
type Coder interface {
	// Marshals args into a message body, returning the body's signature
	Marshal(order binary.ByteOrder, args ...interface{}) (Signature, []byte, error)

	// Unmarshals the body (of signature sig) into the objects pointed to by ops
	Unmarshal(order binary.ByteOrder, sig Signature, body []byte, ops ...interface{}) error

	// Constructs a new encoder
	NewEncoder(order binary.ByteOrder) Encoder

	// Constructs a new decoder reading the body, whose signature is sig
	NewDecoder(order binary.ByteOrder, sig Signature, body []byte) Decoder

	// SignatureOf returns the signature o would be encoded with
	SignatureOf(o interface{}) (Signature, error)
}

// interface Encoder is the interface to the D-Bus encoder
//
// When called directly, each method appends one argument to the body and its
// type to the body signature. When called from a Marshaler the signature is
// left alone; the Marshaler's DBusSignature has already been recorded.
type Encoder interface {
	EncodeByte(b byte) error
	EncodeBool(b bool) error
	EncodeInt16(i int16) error
	EncodeUint16(i uint16) error
	EncodeInt32(i int32) error
	EncodeUint32(i uint32) error
	EncodeInt64(i int64) error
	EncodeUint64(i uint64) error
	EncodeDouble(d float64) error
	EncodeString(s string) error
	EncodeObjectPath(p ObjectPath) error
	EncodeSignature(s Signature) error

	// EncodeVariant writes v.Value as a value of type v.Signature, preceded
	// by the signature
	EncodeVariant(v Variant) error

	// Encode writes an object to the encoder (via reflection)
	Encode(o interface{}) error

	// EncodeValue writes an object to the encoder (via reflection)
	EncodeValue(v reflect.Value) error

	// Signature returns the signature of everything encoded so far
	Signature() Signature

	// Bytes returns the encoded body
	Bytes() []byte
}

// interface Decoder is the interface to the D-Bus decoder
//
// When called directly, each method first checks that the next argument in the
// body signature has the requested type and returns a TypeMismatchError if not.
// When called from an Unmarshaler no check is made; the Unmarshaler's
// DBusSignature has already been matched.
type Decoder interface {
	// Peek returns the type of the next argument, or false if there are none
	Peek() (Signature, bool)

	// Remaining returns the number of arguments not yet decoded
	Remaining() int

	DecodeByte() (byte, error)
	DecodeBool() (bool, error)
	DecodeInt16() (int16, error)
	DecodeUint16() (uint16, error)
	DecodeInt32() (int32, error)
	DecodeUint32() (uint32, error)
	DecodeInt64() (int64, error)
	DecodeUint64() (uint64, error)
	DecodeDouble() (float64, error)

	// DecodeString reads a string. The result never aliases the body.
	DecodeString() (string, error)
	DecodeObjectPath() (ObjectPath, error)
	DecodeSignature() (Signature, error)

	// DecodeVariant reads a variant, decoding its content generically
	DecodeVariant() (Variant, error)

	// DecodeAny reads the next argument, whatever its type, generically
	DecodeAny() (interface{}, error)

	// Decode reads the next argument into *op.
	Decode(op interface{}) error

	// DecodeValue reads the next argument into v.
	// v must be a settable value (v.CanSet() is true)
	DecodeValue(v reflect.Value) error
}
