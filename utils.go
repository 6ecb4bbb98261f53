// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	"encoding/binary"

	"go.e43.eu/ibus/internal/coder"
)

// The default coder (used by the package global functions)
//
// This behaves identically to a coder created using NewCoder
var DefaultCoder = coder.NewCoder()

// NativeOrder is the byte order messages built by this package are written in
var NativeOrder binary.ByteOrder = binary.LittleEndian

// Marshals args into a message body, returning the body's signature
func Marshal(args ...interface{}) (Signature, []byte, error) {
	return DefaultCoder.Marshal(NativeOrder, args...)
}

// Unmarshals body (whose signature is sig, and byte order is order) into the
// objects pointed to by ops
func Unmarshal(order binary.ByteOrder, sig Signature, body []byte, ops ...interface{}) error {
	return DefaultCoder.Unmarshal(order, sig, body, ops...)
}

// Constructs a new encoder writing in NativeOrder
func NewEncoder() Encoder {
	return DefaultCoder.NewEncoder(NativeOrder)
}

// Constructs a new decoder which reads body
func NewDecoder(order binary.ByteOrder, sig Signature, body []byte) Decoder {
	return DefaultCoder.NewDecoder(order, sig, body)
}

// SignatureOf returns the D-Bus signature o would be encoded with
func SignatureOf(o interface{}) (Signature, error) {
	return DefaultCoder.SignatureOf(o)
}

// Construct a new Coder
func NewCoder() Coder {
	return coder.NewCoder()
}
