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

var encoderPool = sync.Pool{
	New: func() interface{} {
		return new(encoder)
	},
}

type encoder struct {
	order binary.ByteOrder

	// Body written so far. Alignment is relative to the start of buf
	buf []byte

	// Signature of the arguments written so far
	sig []byte

	// Number of values we are currently nested within. Only values written at
	// depth 0 are arguments in their own right
	depth int

	// Number of variants we are currently nested within
	variants int

	// Our coder
	cr *Coder

	// Small scratch buffer (avoids needing to ever allocate when writing primitives)
	scratch [8]byte
}

var _ dbusinterfaces.Encoder = &encoder{}

func (e *encoder) reset(cr *Coder, order binary.ByteOrder) {
	e.order = order
	e.buf = e.buf[:0]
	e.sig = e.sig[:0]
	e.depth = 0
	e.variants = 0
	e.cr = cr
}

// arg records an argument of type sig, if we are at argument level
func (e *encoder) arg(sig string) {
	if e.depth == 0 {
		e.sig = append(e.sig, sig...)
	}
}

func (e *encoder) align(n int) {
	for len(e.buf)%n != 0 {
		e.buf = append(e.buf, 0)
	}
}

func (e *encoder) writeByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *encoder) writeUint16(u uint16) {
	e.align(2)
	e.order.PutUint16(e.scratch[0:2], u)
	e.buf = append(e.buf, e.scratch[0:2]...)
}

func (e *encoder) writeUint32(u uint32) {
	e.align(4)
	e.order.PutUint32(e.scratch[0:4], u)
	e.buf = append(e.buf, e.scratch[0:4]...)
}

func (e *encoder) writeUint64(u uint64) {
	e.align(8)
	e.order.PutUint64(e.scratch[0:8], u)
	e.buf = append(e.buf, e.scratch[0:8]...)
}

func (e *encoder) writeBool(b bool) {
	var u uint32
	if b {
		u = 1
	}
	e.writeUint32(u)
}

func (e *encoder) writeString(s string) error {
	if err := checkString(s); err != nil {
		return err
	}
	if uint64(len(s)) > uint64(math.MaxUint32) {
		return errors.LengthError{Actual: uint64(len(s)), Max: math.MaxUint32}
	}

	e.writeUint32(uint32(len(s)))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	return nil
}

func (e *encoder) writeObjectPath(p string) error {
	if err := checkObjectPath(p); err != nil {
		return err
	}
	return e.writeString(p)
}

func (e *encoder) writeSignature(s string) error {
	if err := signature.Validate(s); err != nil {
		return err
	}

	e.writeByte(byte(len(s)))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	return nil
}

// writeArray writes an array of elemSig. body is called to write the elements
// after the length and padding; the length is filled in afterwards.
func (e *encoder) writeArray(elemSig string, body func() error) error {
	e.align(4)
	lenAt := len(e.buf)
	e.buf = append(e.buf, 0, 0, 0, 0)

	// Padding to the element alignment is present even if the array is empty,
	// and is not counted in the length
	e.align(signature.Alignment(elemSig[0]))
	start := len(e.buf)

	if err := body(); err != nil {
		return err
	}

	n := len(e.buf) - start
	if n > maxArrayLength {
		return errors.LengthError{Actual: uint64(n), Max: maxArrayLength}
	}
	e.order.PutUint32(e.buf[lenAt:lenAt+4], uint32(n))
	return nil
}

func (e *encoder) writeVariant(v dbusinterfaces.Variant) error {
	if e.variants >= maxVariantDepth {
		return errors.ErrNestingTooDeep
	}
	e.variants++
	defer func() { e.variants-- }()

	sig := string(v.Signature)
	if err := signature.ValidateSingle(sig); err != nil {
		return err
	}
	if err := e.writeSignature(sig); err != nil {
		return err
	}
	return e.encodeAny(sig, reflect.ValueOf(v.Value))
}

func (e *encoder) EncodeByte(b byte) error {
	e.arg("y")
	e.writeByte(b)
	return nil
}

func (e *encoder) EncodeBool(b bool) error {
	e.arg("b")
	e.writeBool(b)
	return nil
}

func (e *encoder) EncodeInt16(i int16) error {
	e.arg("n")
	e.writeUint16(uint16(i))
	return nil
}

func (e *encoder) EncodeUint16(u uint16) error {
	e.arg("q")
	e.writeUint16(u)
	return nil
}

func (e *encoder) EncodeInt32(i int32) error {
	e.arg("i")
	e.writeUint32(uint32(i))
	return nil
}

func (e *encoder) EncodeUint32(u uint32) error {
	e.arg("u")
	e.writeUint32(u)
	return nil
}

func (e *encoder) EncodeInt64(i int64) error {
	e.arg("x")
	e.writeUint64(uint64(i))
	return nil
}

func (e *encoder) EncodeUint64(u uint64) error {
	e.arg("t")
	e.writeUint64(u)
	return nil
}

func (e *encoder) EncodeDouble(f float64) error {
	e.arg("d")
	e.writeUint64(math.Float64bits(f))
	return nil
}

func (e *encoder) EncodeString(s string) error {
	if err := e.writeString(s); err != nil {
		return err
	}
	e.arg("s")
	return nil
}

func (e *encoder) EncodeObjectPath(p dbusinterfaces.ObjectPath) error {
	if err := e.writeObjectPath(string(p)); err != nil {
		return err
	}
	e.arg("o")
	return nil
}

func (e *encoder) EncodeSignature(s dbusinterfaces.Signature) error {
	if err := e.writeSignature(string(s)); err != nil {
		return err
	}
	e.arg("g")
	return nil
}

func (e *encoder) EncodeVariant(v dbusinterfaces.Variant) error {
	e.depth++
	err := e.writeVariant(v)
	e.depth--
	if err != nil {
		return err
	}
	e.arg("v")
	return nil
}

func (e *encoder) Encode(o interface{}) error {
	if o == nil {
		return errors.ErrNilPointer
	}
	return e.EncodeValue(reflect.ValueOf(o))
}

func (e *encoder) EncodeValue(v reflect.Value) error {
	c := e.cr.getCodec(v.Type())

	e.depth++
	err := c.Encode(e, v)
	e.depth--
	if err != nil {
		return err
	}

	e.arg(c.signature())
	return nil
}

func (e *encoder) Signature() dbusinterfaces.Signature {
	return dbusinterfaces.Signature(e.sig)
}

func (e *encoder) Bytes() []byte {
	return e.buf
}

func (e *encoder) release() {
	e.cr = nil
	encoderPool.Put(e)
}
