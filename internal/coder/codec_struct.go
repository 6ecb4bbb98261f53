// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package coder

import (
	"fmt"
	"reflect"
	"strings"

	"go.e43.eu/ibus/internal/errors"
	"go.e43.eu/ibus/internal/signature"
)

// structCodec handles Go structs as D-Bus structs: each exported field, in
// order, is a member. Fields tagged `dbus:"-"` are skipped.
type structCodec struct {
	name   string
	fields []field
	sig    string
}

var _ xCodec = &structCodec{}

type field struct {
	index int
	codec xCodec
	name  string
}

func makeStructCodec(cr *Coder, t reflect.Type, building map[reflect.Type]bool) xCodec {
	c := &structCodec{
		name:   t.Name(),
		fields: make([]field, 0, t.NumField()),
	}

	var sig strings.Builder
	sig.WriteByte('(')

	for i, n := 0, t.NumField(); i < n; i++ {
		f := t.Field(i)
		if f.PkgPath != "" || f.Tag.Get("dbus") == "-" {
			continue
		}

		fc := cr.codecLocked(f.Type, building)
		if ec, ok := fc.(*errorCodec); ok {
			return &errorCodec{errors.WithFieldError(ec.err, c.name, f.Name)}
		}

		c.fields = append(c.fields, field{
			index: i,
			codec: fc,
			name:  f.Name,
		})
		sig.WriteString(fc.signature())
	}

	if len(c.fields) == 0 {
		return &errorCodec{fmt.Errorf("%w (struct has no exported fields)", errors.InvalidTypeError{T: t})}
	}

	sig.WriteByte(')')
	c.sig = sig.String()
	return c
}

func (c *structCodec) signature() string {
	return c.sig
}

func (c *structCodec) accepts(sig string) bool {
	if sig == c.sig {
		return true
	}
	if sig == "" || sig[0] != signature.StructOpen {
		return false
	}

	members, err := signature.Fields(sig)
	if err != nil || len(members) != len(c.fields) {
		return false
	}

	for i, f := range c.fields {
		if !f.codec.accepts(members[i]) {
			return false
		}
	}
	return true
}

func (c *structCodec) Encode(e *encoder, v reflect.Value) error {
	e.align(8)
	for _, f := range c.fields {
		if err := f.codec.Encode(e, v.Field(f.index)); err != nil {
			return errors.WithFieldError(err, c.name, f.name)
		}
	}
	return nil
}

func (c *structCodec) Decode(d *decoder, sig string, v reflect.Value) error {
	members := []string(nil)
	if sig != c.sig {
		var err error
		if members, err = signature.Fields(sig); err != nil {
			return err
		}
	}

	if err := d.align(8); err != nil {
		return err
	}

	for i, f := range c.fields {
		fsig := ""
		if members != nil {
			fsig = members[i]
		} else {
			fsig = f.codec.signature()
		}

		if err := f.codec.Decode(d, fsig, v.Field(f.index)); err != nil {
			return errors.WithFieldError(err, c.name, f.name)
		}
	}
	return nil
}
