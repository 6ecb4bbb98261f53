// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package coder

import (
	"fmt"
	"reflect"
	"sort"

	"go.e43.eu/ibus/internal/errors"
	"go.e43.eu/ibus/internal/signature"
)

// mapCodec handles maps as arrays of dict entries, `a{KV}`
type mapCodec struct {
	keyCodec   xCodec
	valueCodec xCodec
	t, kt, vt  reflect.Type
	sig        string
}

var _ xCodec = &mapCodec{}

func makeMapCodec(cr *Coder, t reflect.Type, building map[reflect.Type]bool) xCodec {
	kc := cr.codecLocked(t.Key(), building)
	if ec, ok := kc.(*errorCodec); ok {
		return ec
	}

	ks := kc.signature()
	if len(ks) != 1 || !signature.IsBasic(ks[0]) {
		return &errorCodec{fmt.Errorf("%w (dict key must be a basic type)", errors.InvalidTypeError{T: t})}
	}

	vc := cr.codecLocked(t.Elem(), building)
	if ec, ok := vc.(*errorCodec); ok {
		return ec
	}

	return &mapCodec{
		keyCodec:   kc,
		valueCodec: vc,
		t:          t,
		kt:         t.Key(),
		vt:         t.Elem(),
		sig:        "a{" + ks + vc.signature() + "}",
	}
}

func (c *mapCodec) signature() string {
	return c.sig
}

func (c *mapCodec) accepts(sig string) bool {
	if !signature.IsDict(sig) {
		return false
	}

	kv, err := signature.Fields(sig[1:])
	return err == nil && len(kv) == 2 && c.keyCodec.accepts(kv[0]) && c.valueCodec.accepts(kv[1])
}

func (c *mapCodec) Encode(e *encoder, v reflect.Value) error {
	return e.writeArray("{", func() error {
		for _, k := range sortedKeys(v) {
			e.align(8)
			if err := c.keyCodec.Encode(e, k); err != nil {
				return err
			}
			if err := c.valueCodec.Encode(e, v.MapIndex(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *mapCodec) Decode(d *decoder, sig string, v reflect.Value) error {
	kv, err := signature.Fields(sig[1:])
	if err != nil {
		return err
	}

	m := reflect.MakeMap(c.t)
	err = d.readArray("{", func() error {
		if err := d.align(8); err != nil {
			return err
		}

		k, vv := reflect.New(c.kt).Elem(), reflect.New(c.vt).Elem()
		if err := c.keyCodec.Decode(d, kv[0], k); err != nil {
			return err
		}
		if err := c.valueCodec.Decode(d, kv[1], vv); err != nil {
			return err
		}

		m.SetMapIndex(k, vv)
		return nil
	})
	if err != nil {
		return err
	}

	v.Set(m)
	return nil
}

// sortedKeys returns the keys of the map v in a stable order, so that the
// same map always encodes to the same bytes
func sortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return lessValue(keys[i], keys[j])
	})
	return keys
}

func lessValue(a, b reflect.Value) bool {
	for a.Kind() == reflect.Interface && !a.IsNil() {
		a = a.Elem()
	}
	for b.Kind() == reflect.Interface && !b.IsNil() {
		b = b.Elem()
	}

	if a.Kind() == b.Kind() {
		switch a.Kind() {
		case reflect.String:
			return a.String() < b.String()
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			return a.Int() < b.Int()
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
			return a.Uint() < b.Uint()
		case reflect.Float32, reflect.Float64:
			return a.Float() < b.Float()
		case reflect.Bool:
			return !a.Bool() && b.Bool()
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
