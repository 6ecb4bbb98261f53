// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package coder

import (
	"reflect"

	"go.e43.eu/ibus/internal/errors"
)

// bytesCodec handles []byte as `ay`, copying in and out in one go
type bytesCodec struct {
	t reflect.Type
}

var _ xCodec = &bytesCodec{}

type sliceCodec struct {
	elem xCodec
	t    reflect.Type
	sig  string
}

var _ xCodec = &sliceCodec{}

// arrayCodec handles fixed length Go arrays, which are encoded as D-Bus arrays
// but must decode to exactly the right number of elements
type arrayCodec struct {
	elem xCodec
	len  int
	sig  string
}

var _ xCodec = &arrayCodec{}

func makeSliceCodec(cr *Coder, t reflect.Type, building map[reflect.Type]bool) xCodec {
	if t.Elem().Kind() == reflect.Uint8 {
		return &bytesCodec{t}
	}

	elem := cr.codecLocked(t.Elem(), building)
	if ec, ok := elem.(*errorCodec); ok {
		return ec
	}

	return &sliceCodec{
		elem: elem,
		t:    t,
		sig:  "a" + elem.signature(),
	}
}

func makeArrayCodec(cr *Coder, t reflect.Type, building map[reflect.Type]bool) xCodec {
	elem := cr.codecLocked(t.Elem(), building)
	if ec, ok := elem.(*errorCodec); ok {
		return ec
	}

	return &arrayCodec{
		elem: elem,
		len:  t.Len(),
		sig:  "a" + elem.signature(),
	}
}

func (c *bytesCodec) signature() string {
	return "ay"
}

func (c *bytesCodec) accepts(sig string) bool {
	return sig == "ay"
}

func (c *bytesCodec) Encode(e *encoder, v reflect.Value) error {
	return e.writeArray("y", func() error {
		e.buf = append(e.buf, v.Bytes()...)
		return nil
	})
}

func (c *bytesCodec) Decode(d *decoder, _ string, v reflect.Value) error {
	b, err := d.readBytes()
	if err != nil {
		return err
	}

	if len(b) == 0 {
		// Tiny optimisation: Skip allocating zero-length slices
		v.Set(reflect.Zero(c.t))
		return nil
	}
	v.SetBytes(b)
	return nil
}

func (c *sliceCodec) signature() string {
	return c.sig
}

func (c *sliceCodec) accepts(sig string) bool {
	return len(sig) > 1 && sig[0] == 'a' && c.elem.accepts(sig[1:])
}

func (c *sliceCodec) Encode(e *encoder, v reflect.Value) error {
	return e.writeArray(c.sig[1:], func() error {
		for i, l := 0, v.Len(); i < l; i++ {
			if err := c.elem.Encode(e, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *sliceCodec) Decode(d *decoder, sig string, v reflect.Value) error {
	elemSig := sig[1:]
	out := reflect.Zero(c.t)

	err := d.readArray(elemSig, func() error {
		x := reflect.New(c.t.Elem()).Elem()
		if err := c.elem.Decode(d, elemSig, x); err != nil {
			return err
		}
		out = reflect.Append(out, x)
		return nil
	})
	if err != nil {
		return err
	}

	v.Set(out)
	return nil
}

func (c *arrayCodec) signature() string {
	return c.sig
}

func (c *arrayCodec) accepts(sig string) bool {
	return len(sig) > 1 && sig[0] == 'a' && c.elem.accepts(sig[1:])
}

func (c *arrayCodec) Encode(e *encoder, v reflect.Value) error {
	return e.writeArray(c.sig[1:], func() error {
		for i := 0; i < c.len; i++ {
			if err := c.elem.Encode(e, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *arrayCodec) Decode(d *decoder, sig string, v reflect.Value) error {
	elemSig := sig[1:]
	i := 0

	err := d.readArray(elemSig, func() error {
		if i >= c.len {
			return errors.ErrInvalidValue
		}
		if err := c.elem.Decode(d, elemSig, v.Index(i)); err != nil {
			return err
		}
		i++
		return nil
	})

	switch {
	case err != nil:
		return err
	case i != c.len:
		return errors.ErrInvalidValue
	}
	return nil
}
