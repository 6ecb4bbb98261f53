// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package coder

import (
	"reflect"

	dbusinterfaces "go.e43.eu/ibus/interfaces"
	"go.e43.eu/ibus/internal/errors"
)

// codec embedding a fixed, memoised error (generally
// indicating that a type can't be marshalled)
type errorCodec struct {
	err error
}

func (c *errorCodec) signature() string {
	return ""
}

func (c *errorCodec) accepts(string) bool {
	return false
}

func (c *errorCodec) Encode(e *encoder, v reflect.Value) error {
	return c.err
}

func (c *errorCodec) Decode(d *decoder, sig string, v reflect.Value) error {
	return c.err
}

// marshalerCodec handles types which know how to self marshal. A type may
// implement only one direction; the other is then an error.
type marshalerCodec struct {
	t         reflect.Type
	sig       string
	canEncode bool
	canDecode bool
}

func makeMarshalerCodec(t reflect.Type) xCodec {
	c := &marshalerCodec{
		t:         t,
		canEncode: t.Implements(marshalerType),
		canDecode: reflect.PtrTo(t).Implements(unmarshalerType),
	}

	if c.canDecode {
		c.sig = string(reflect.New(t).Interface().(dbusinterfaces.Unmarshaler).DBusSignature())
	} else {
		c.sig = string(reflect.Zero(t).Interface().(dbusinterfaces.Marshaler).DBusSignature())
	}
	return c
}

func (c *marshalerCodec) signature() string {
	return c.sig
}

func (c *marshalerCodec) accepts(sig string) bool {
	return c.canDecode && sig == c.sig
}

func (c *marshalerCodec) Encode(e *encoder, v reflect.Value) error {
	if !c.canEncode {
		return errors.InvalidTypeError{T: c.t}
	}
	return v.Interface().(dbusinterfaces.Marshaler).MarshalDBus(e)
}

func (c *marshalerCodec) Decode(d *decoder, sig string, v reflect.Value) error {
	if !c.canDecode {
		return errors.InvalidTypeError{T: c.t}
	}

	// Unmarshalers see the decoder from inside a value
	d.depth++
	defer func() { d.depth-- }()

	if v.CanAddr() {
		return v.Addr().Interface().(dbusinterfaces.Unmarshaler).UnmarshalDBus(d)
	}

	p := reflect.New(c.t)
	if err := p.Interface().(dbusinterfaces.Unmarshaler).UnmarshalDBus(d); err != nil {
		return err
	}
	v.Set(p.Elem())
	return nil
}

// variantCodec handles the Variant type
type variantCodec struct{}

var variantCodecI xCodec = &variantCodec{}

func (c *variantCodec) signature() string {
	return "v"
}

func (c *variantCodec) accepts(sig string) bool {
	return sig == "v"
}

func (c *variantCodec) Encode(e *encoder, v reflect.Value) error {
	return e.writeVariant(v.Interface().(dbusinterfaces.Variant))
}

func (c *variantCodec) Decode(d *decoder, _ string, v reflect.Value) error {
	vv, err := d.readVariant()
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(vv))
	return nil
}

// interfaceCodec handles interface{}. Values are encoded as variants of their
// own type; on decode any type is accepted, a variant decoding to Variant and
// anything else to its generic representation.
type interfaceCodec struct{}

var interfaceCodecI xCodec = &interfaceCodec{}

func (c *interfaceCodec) signature() string {
	return "v"
}

func (c *interfaceCodec) accepts(string) bool {
	return true
}

func (c *interfaceCodec) Encode(e *encoder, v reflect.Value) error {
	if v.IsNil() {
		return errors.ErrNilPointer
	}

	inner := v.Elem()
	if inner.Type() == variantType {
		return e.writeVariant(inner.Interface().(dbusinterfaces.Variant))
	}

	ic := e.cr.getCodec(inner.Type())
	if ec, ok := ic.(*errorCodec); ok {
		return ec.err
	}
	return e.writeVariant(dbusinterfaces.Variant{
		Signature: dbusinterfaces.Signature(ic.signature()),
		Value:     inner.Interface(),
	})
}

func (c *interfaceCodec) Decode(d *decoder, sig string, v reflect.Value) error {
	var (
		x   interface{}
		err error
	)

	if sig == "v" {
		x, err = d.readVariant()
	} else {
		x, err = d.decodeAny(sig)
	}

	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(x))
	return nil
}
