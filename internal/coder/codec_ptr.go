// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package coder

import (
	"reflect"

	"go.e43.eu/ibus/internal/errors"
)

// ptrCodec handles pointers. D-Bus has no optional values, so pointers are
// transparent: they must be non-nil on encode, and are allocated on decode.
type ptrCodec struct {
	elem xCodec
	t    reflect.Type
}

var _ xCodec = &ptrCodec{}

func makePtrCodec(cr *Coder, t reflect.Type, building map[reflect.Type]bool) xCodec {
	elem := cr.codecLocked(t.Elem(), building)
	if ec, ok := elem.(*errorCodec); ok {
		return ec
	}
	return &ptrCodec{elem, t.Elem()}
}

func (c *ptrCodec) signature() string {
	return c.elem.signature()
}

func (c *ptrCodec) accepts(sig string) bool {
	return c.elem.accepts(sig)
}

func (c *ptrCodec) Encode(e *encoder, v reflect.Value) error {
	if v.IsNil() {
		return errors.ErrNilPointer
	}
	return c.elem.Encode(e, v.Elem())
}

func (c *ptrCodec) Decode(d *decoder, sig string, v reflect.Value) error {
	if v.IsNil() {
		v.Set(reflect.New(c.t))
	}
	return c.elem.Decode(d, sig, v.Elem())
}
