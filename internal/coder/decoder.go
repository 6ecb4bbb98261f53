// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package coder

import (
	"encoding/binary"
	"math"
	"reflect"
	"sync"

	dbusinterfaces "go.e43.eu/ibus/interfaces"
	"go.e43.eu/ibus/internal/errors"
	"go.e43.eu/ibus/internal/signature"
)

var decoderPool = sync.Pool{
	New: func() interface{} {
		return new(decoder)
	},
}

type decoder struct {
	order binary.ByteOrder

	// Body being decoded, and our offset within it
	buf []byte
	pos int

	// Types of the arguments not yet decoded, and the index of the next
	sig string
	arg int

	// Number of values (and separately variants) we are nested within
	depth    int
	variants int

	cr *Coder
}

var _ dbusinterfaces.Decoder = &decoder{}

func (d *decoder) reset(cr *Coder, order binary.ByteOrder, sig string, body []byte) {
	d.order = order
	d.buf = body
	d.pos = 0
	d.sig = sig
	d.arg = 0
	d.depth = 0
	d.variants = 0
	d.cr = cr
}

// next consumes the type of the next argument, which must be accepted by
// accepts. Within an Unmarshaler there is no next argument, so nothing is
// checked.
func (d *decoder) next(want string, accepts func(string) bool) (string, error) {
	if d.depth > 0 {
		return want, nil
	}

	if d.sig == "" {
		return "", errors.TypeMismatchError{Expected: want, Position: d.arg}
	}

	first, rest, err := signature.Next(d.sig)
	if err != nil {
		return "", err
	}

	if !accepts(first) {
		return "", errors.TypeMismatchError{Expected: want, Actual: first, Position: d.arg}
	}

	d.sig = rest
	d.arg++
	return first, nil
}

func (d *decoder) expect(want string) error {
	_, err := d.next(want, func(s string) bool { return s == want })
	return err
}

func (d *decoder) align(n int) error {
	p := (d.pos + n - 1) &^ (n - 1)
	if p > len(d.buf) {
		return errors.ErrShortBuffer
	}

	for _, b := range d.buf[d.pos:p] {
		if b != 0 {
			return errors.ErrInvalidValue
		}
	}
	d.pos = p
	return nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.buf)-d.pos < n {
		return nil, errors.ErrShortBuffer
	}

	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) readUint16() (uint16, error) {
	if err := d.align(2); err != nil {
		return 0, err
	}
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

func (d *decoder) readUint32() (uint32, error) {
	if err := d.align(4); err != nil {
		return 0, err
	}
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

func (d *decoder) readUint64() (uint64, error) {
	if err := d.align(8); err != nil {
		return 0, err
	}
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return d.order.Uint64(b), nil
}

func (d *decoder) readBool() (bool, error) {
	u, err := d.readUint32()
	switch {
	case err != nil:
		return false, err
	case u == 0:
		return false, nil
	case u == 1:
		return true, nil
	default:
		return false, errors.ErrInvalidValue
	}
}

// readString reads a string. The returned string is a copy, and so outlives
// the buffer.
func (d *decoder) readString() (string, error) {
	l, err := d.readUint32()
	if err != nil {
		return "", err
	}

	if uint64(l) >= uint64(len(d.buf)) {
		return "", errors.ErrShortBuffer
	}

	b, err := d.take(int(l) + 1)
	if err != nil {
		return "", err
	}
	if b[l] != 0 {
		return "", errors.ErrInvalidValue
	}

	s := string(b[:l])
	if err := checkString(s); err != nil {
		return "", err
	}
	return s, nil
}

func (d *decoder) readObjectPath() (string, error) {
	s, err := d.readString()
	if err != nil {
		return "", err
	}
	if err := checkObjectPath(s); err != nil {
		return "", err
	}
	return s, nil
}

func (d *decoder) readSignature() (string, error) {
	l, err := d.readByte()
	if err != nil {
		return "", err
	}

	b, err := d.take(int(l) + 1)
	if err != nil {
		return "", err
	}
	if b[l] != 0 {
		return "", errors.ErrInvalidValue
	}

	s := string(b[:l])
	if err := signature.Validate(s); err != nil {
		return "", err
	}
	return s, nil
}

// readArray reads the header of an array of elemSig, then calls elem until
// the body of the array has been consumed
func (d *decoder) readArray(elemSig string, elem func() error) error {
	l, err := d.readUint32()
	if err != nil {
		return err
	}
	if l > maxArrayLength {
		return errors.LengthError{Actual: uint64(l), Max: maxArrayLength}
	}

	if err := d.align(signature.Alignment(elemSig[0])); err != nil {
		return err
	}

	end := d.pos + int(l)
	if end > len(d.buf) {
		return errors.ErrShortBuffer
	}

	for d.pos < end {
		if err := elem(); err != nil {
			return err
		}
	}

	if d.pos != end {
		// Last element overran the declared length
		return errors.ErrInvalidValue
	}
	return nil
}

func (d *decoder) readVariant() (dbusinterfaces.Variant, error) {
	if d.variants >= maxVariantDepth {
		return dbusinterfaces.Variant{}, errors.ErrNestingTooDeep
	}
	d.variants++
	defer func() { d.variants-- }()

	sig, err := d.readSignature()
	if err != nil {
		return dbusinterfaces.Variant{}, err
	}
	if err := signature.ValidateSingle(sig); err != nil {
		return dbusinterfaces.Variant{}, err
	}

	v, err := d.decodeAny(sig)
	if err != nil {
		return dbusinterfaces.Variant{}, errors.WithFieldError(err, "variant", sig)
	}
	return dbusinterfaces.Variant{Signature: dbusinterfaces.Signature(sig), Value: v}, nil
}

func (d *decoder) Peek() (dbusinterfaces.Signature, bool) {
	first, _, err := signature.Next(d.sig)
	if err != nil {
		return "", false
	}
	return dbusinterfaces.Signature(first), true
}

func (d *decoder) Remaining() int {
	types, _ := signature.Split(d.sig)
	return len(types)
}

func (d *decoder) DecodeByte() (byte, error) {
	if err := d.expect("y"); err != nil {
		return 0, err
	}
	return d.readByte()
}

func (d *decoder) DecodeBool() (bool, error) {
	if err := d.expect("b"); err != nil {
		return false, err
	}
	return d.readBool()
}

func (d *decoder) DecodeInt16() (int16, error) {
	if err := d.expect("n"); err != nil {
		return 0, err
	}
	u, err := d.readUint16()
	return int16(u), err
}

func (d *decoder) DecodeUint16() (uint16, error) {
	if err := d.expect("q"); err != nil {
		return 0, err
	}
	return d.readUint16()
}

func (d *decoder) DecodeInt32() (int32, error) {
	if err := d.expect("i"); err != nil {
		return 0, err
	}
	u, err := d.readUint32()
	return int32(u), err
}

func (d *decoder) DecodeUint32() (uint32, error) {
	if err := d.expect("u"); err != nil {
		return 0, err
	}
	return d.readUint32()
}

func (d *decoder) DecodeInt64() (int64, error) {
	if err := d.expect("x"); err != nil {
		return 0, err
	}
	u, err := d.readUint64()
	return int64(u), err
}

func (d *decoder) DecodeUint64() (uint64, error) {
	if err := d.expect("t"); err != nil {
		return 0, err
	}
	return d.readUint64()
}

func (d *decoder) DecodeDouble() (float64, error) {
	if err := d.expect("d"); err != nil {
		return 0, err
	}
	u, err := d.readUint64()
	return math.Float64frombits(u), err
}

func (d *decoder) DecodeString() (string, error) {
	if err := d.expect("s"); err != nil {
		return "", err
	}
	return d.readString()
}

func (d *decoder) DecodeObjectPath() (dbusinterfaces.ObjectPath, error) {
	if err := d.expect("o"); err != nil {
		return "", err
	}
	s, err := d.readObjectPath()
	return dbusinterfaces.ObjectPath(s), err
}

func (d *decoder) DecodeSignature() (dbusinterfaces.Signature, error) {
	if err := d.expect("g"); err != nil {
		return "", err
	}
	s, err := d.readSignature()
	return dbusinterfaces.Signature(s), err
}

func (d *decoder) DecodeVariant() (dbusinterfaces.Variant, error) {
	if err := d.expect("v"); err != nil {
		return dbusinterfaces.Variant{}, err
	}
	return d.readVariant()
}

// DecodeAny may only be used at argument level, as it is the body signature
// which says what the next value is.
func (d *decoder) DecodeAny() (interface{}, error) {
	if d.depth > 0 {
		return nil, errors.SignatureError{Reason: "DecodeAny called within an Unmarshaler"}
	}

	sig, err := d.next("*", func(string) bool { return true })
	if err != nil {
		return nil, err
	}
	return d.decodeAny(sig)
}

func (d *decoder) Decode(op interface{}) error {
	v := reflect.ValueOf(op)
	switch {
	case v.Kind() != reflect.Ptr:
		return errors.ErrNotPointer
	case v.IsNil():
		return errors.ErrNilPointer
	}

	return d.decodeValue(v.Elem())
}

func (d *decoder) DecodeValue(v reflect.Value) error {
	if !v.CanSet() {
		return errors.ErrNotPointer
	}
	return d.decodeValue(v)
}

func (d *decoder) decodeValue(v reflect.Value) error {
	c := d.cr.getCodec(v.Type())
	if ec, ok := c.(*errorCodec); ok {
		return ec.err
	}

	sig, err := d.next(c.signature(), c.accepts)
	if err != nil {
		return err
	}

	d.depth++
	defer func() { d.depth-- }()
	return c.Decode(d, sig, v)
}

func (d *decoder) release() {
	d.buf = nil
	d.cr = nil
	decoderPool.Put(d)
}
