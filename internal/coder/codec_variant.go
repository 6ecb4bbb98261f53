// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package coder

import (
	"math"
	"reflect"
	"strconv"

	dbusinterfaces "go.e43.eu/ibus/interfaces"
	"go.e43.eu/ibus/internal/errors"
	"go.e43.eu/ibus/internal/signature"
)

// readPrimitive reads a fixed size basic value, returning it as the Go type
// documented on Variant
func (d *decoder) readPrimitive(code byte) (interface{}, error) {
	switch code {
	case 'y':
		return d.readByte()
	case 'b':
		return d.readBool()
	case 'n':
		u, err := d.readUint16()
		return int16(u), err
	case 'q':
		return d.readUint16()
	case 'i':
		u, err := d.readUint32()
		return int32(u), err
	case 'u':
		return d.readUint32()
	case 'h':
		u, err := d.readUint32()
		return dbusinterfaces.UnixFD(u), err
	case 'x':
		u, err := d.readUint64()
		return int64(u), err
	case 't':
		return d.readUint64()
	case 'd':
		u, err := d.readUint64()
		return math.Float64frombits(u), err
	default:
		return nil, errors.SignatureError{Signature: string(code), Reason: "not a fixed size type"}
	}
}

// readBytes reads an `ay`, returning a copy
func (d *decoder) readBytes() ([]byte, error) {
	l, err := d.readUint32()
	switch {
	case err != nil:
		return nil, err
	case l > maxArrayLength:
		return nil, errors.LengthError{Actual: uint64(l), Max: maxArrayLength}
	case l == 0:
		return nil, nil
	}

	b, err := d.take(int(l))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// decodeAny decodes a value of type sig into its generic representation
func (d *decoder) decodeAny(sig string) (interface{}, error) {
	switch code := sig[0]; code {
	case 's':
		return d.readString()

	case 'o':
		s, err := d.readObjectPath()
		return dbusinterfaces.ObjectPath(s), err

	case 'g':
		s, err := d.readSignature()
		return dbusinterfaces.Signature(s), err

	case 'v':
		return d.readVariant()

	case 'a':
		return d.decodeAnyArray(sig)

	case '(':
		members, err := signature.Fields(sig)
		if err != nil {
			return nil, err
		}
		if err := d.align(8); err != nil {
			return nil, err
		}

		out := make([]interface{}, len(members))
		for i, m := range members {
			if out[i], err = d.decodeAny(m); err != nil {
				return nil, errors.WithFieldError(err, sig, strconv.Itoa(i))
			}
		}
		return out, nil

	default:
		return d.readPrimitive(code)
	}
}

func (d *decoder) decodeAnyArray(sig string) (interface{}, error) {
	elemSig := signature.Elem(sig)

	switch {
	case elemSig == "y":
		b, err := d.readBytes()
		if b == nil && err == nil {
			b = []byte{}
		}
		return b, err

	case signature.IsDict(sig):
		kv, err := signature.Fields(elemSig)
		if err != nil {
			return nil, err
		}

		out := make(map[interface{}]interface{})
		err = d.readArray(elemSig, func() error {
			if err := d.align(8); err != nil {
				return err
			}

			k, err := d.decodeAny(kv[0])
			if err != nil {
				return err
			}
			v, err := d.decodeAny(kv[1])
			if err != nil {
				return err
			}

			out[k] = v
			return nil
		})
		return out, err

	default:
		out := []interface{}{}
		err := d.readArray(elemSig, func() error {
			v, err := d.decodeAny(elemSig)
			if err != nil {
				return errors.WithFieldError(err, sig, strconv.Itoa(len(out)))
			}
			out = append(out, v)
			return nil
		})
		return out, err
	}
}

// encodeAny encodes v as a value of type sig. Values whose own type has
// signature sig are encoded directly; otherwise slices may stand in for
// structs and arrays, maps for dicts, and integers for other integer types.
// describe names what v would encode as, for mismatch errors. Values with no
// D-Bus type are named by their Go type.
func describe(c xCodec, v reflect.Value) string {
	if _, ok := c.(*errorCodec); ok || c.signature() == "" {
		return v.Type().String()
	}
	return c.signature()
}

func (e *encoder) encodeAny(sig string, v reflect.Value) error {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr) {
		if v.IsNil() {
			return errors.ErrNilPointer
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return errors.ErrNilPointer
	}

	c := e.cr.getCodec(v.Type())
	if c.signature() == sig {
		return c.Encode(e, v)
	}

	k := v.Kind()
	switch code := sig[0]; {
	case code == signature.StructOpen && (k == reflect.Slice || k == reflect.Array):
		members, err := signature.Fields(sig)
		if err != nil {
			return err
		}
		if v.Len() != len(members) {
			return errors.TypeMismatchError{Expected: sig, Actual: describe(c, v)}
		}

		e.align(8)
		for i, m := range members {
			if err := e.encodeAny(m, v.Index(i)); err != nil {
				return errors.WithFieldError(err, sig, strconv.Itoa(i))
			}
		}
		return nil

	case signature.IsDict(sig) && k == reflect.Map:
		kv, err := signature.Fields(signature.Elem(sig))
		if err != nil {
			return err
		}

		return e.writeArray(signature.Elem(sig), func() error {
			for _, key := range sortedKeys(v) {
				e.align(8)
				if err := e.encodeAny(kv[0], key); err != nil {
					return err
				}
				if err := e.encodeAny(kv[1], v.MapIndex(key)); err != nil {
					return err
				}
			}
			return nil
		})

	case code == signature.Array && !signature.IsDict(sig) && (k == reflect.Slice || k == reflect.Array):
		elemSig := signature.Elem(sig)
		return e.writeArray(elemSig, func() error {
			for i, l := 0, v.Len(); i < l; i++ {
				if err := e.encodeAny(elemSig, v.Index(i)); err != nil {
					return errors.WithFieldError(err, sig, strconv.Itoa(i))
				}
			}
			return nil
		})

	case code == signature.Variant:
		if ec, ok := c.(*errorCodec); ok {
			return ec.err
		}
		return e.writeVariant(dbusinterfaces.Variant{
			Signature: dbusinterfaces.Signature(c.signature()),
			Value:     v.Interface(),
		})

	case len(sig) == 1 && signature.IsBasic(code):
		if ok, err := e.encodeConverted(code, v); ok {
			return err
		}
	}

	return errors.TypeMismatchError{Expected: sig, Actual: describe(c, v)}
}

// encodeConverted encodes v, of some other basic kind, as code. Returns false
// if there is no sensible conversion.
func (e *encoder) encodeConverted(code byte, v reflect.Value) (bool, error) {
	var (
		i       int64
		u       uint64
		signed  bool
		integer = true
	)

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, signed = v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u = v.Uint()
	default:
		integer = false
	}

	inRange := func(min int64, max uint64) bool {
		if signed {
			return i >= min && (i < 0 || uint64(i) <= max)
		}
		return u <= max
	}
	asUint := func() uint64 {
		if signed {
			return uint64(i)
		}
		return u
	}

	switch {
	case code == 's' && v.Kind() == reflect.String:
		return true, e.writeString(v.String())
	case code == 'o' && v.Kind() == reflect.String:
		return true, e.writeObjectPath(v.String())
	case code == 'g' && v.Kind() == reflect.String:
		return true, e.writeSignature(v.String())
	case code == 'b' && v.Kind() == reflect.Bool:
		e.writeBool(v.Bool())
		return true, nil
	case code == 'd' && (v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64):
		e.writeUint64(math.Float64bits(v.Float()))
		return true, nil
	case !integer:
		return false, nil
	}

	var ok bool
	switch code {
	case 'y':
		if ok = inRange(0, math.MaxUint8); ok {
			e.writeByte(byte(asUint()))
		}
	case 'n':
		if ok = inRange(math.MinInt16, math.MaxInt16); ok {
			e.writeUint16(uint16(asUint()))
		}
	case 'q':
		if ok = inRange(0, math.MaxUint16); ok {
			e.writeUint16(uint16(asUint()))
		}
	case 'i':
		if ok = inRange(math.MinInt32, math.MaxInt32); ok {
			e.writeUint32(uint32(asUint()))
		}
	case 'u', 'h':
		if ok = inRange(0, math.MaxUint32); ok {
			e.writeUint32(uint32(asUint()))
		}
	case 'x':
		if ok = inRange(math.MinInt64, math.MaxInt64); ok {
			e.writeUint64(asUint())
		}
	case 't':
		if ok = inRange(0, math.MaxUint64); ok {
			e.writeUint64(asUint())
		}
	default:
		return false, nil
	}

	if !ok {
		return true, errors.ErrInvalidValue
	}
	return true, nil
}
