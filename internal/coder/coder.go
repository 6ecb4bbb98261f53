// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package coder

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"

	dbusinterfaces "go.e43.eu/ibus/interfaces"
	"go.e43.eu/ibus/internal/errors"
	"go.e43.eu/ibus/internal/signature"
)

const (
	// Longest array body permitted by D-Bus
	maxArrayLength = 1 << 26

	// Deepest nesting of variants we will follow
	maxVariantDepth = 64
)

var (
	marshalerType   = reflect.TypeOf((*dbusinterfaces.Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*dbusinterfaces.Unmarshaler)(nil)).Elem()
	variantType     = reflect.TypeOf(dbusinterfaces.Variant{})
	objectPathType  = reflect.TypeOf(dbusinterfaces.ObjectPath(""))
	signatureType   = reflect.TypeOf(dbusinterfaces.Signature(""))
	unixFDType      = reflect.TypeOf(dbusinterfaces.UnixFD(0))
)

// xCodec knows how to marshal one Go type
type xCodec interface {
	// signature returns the type this codec encodes as
	signature() string

	// accepts returns if this codec can decode values of the wire type sig.
	// This is looser than signature() == sig for types containing interfaces.
	accepts(sig string) bool

	Encode(e *encoder, v reflect.Value) error

	// Decode a value of wire type sig (which accepts() has approved)
	Decode(d *decoder, sig string, v reflect.Value) error
}

type Coder struct {
	knownCodecs sync.Map // map[reflect.Type]xCodec

	// Held while constructing new codecs
	mu sync.Mutex
}

func NewCoder() *Coder {
	return new(Coder)
}

func (cr *Coder) getCodec(t reflect.Type) xCodec {
	// Common case: already known; just lookup type
	c, ok := cr.knownCodecs.Load(t)
	if ok {
		return c.(xCodec)
	}

	// Less common case: need to construct a codec
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.codecLocked(t, make(map[reflect.Type]bool))
}

// codecLocked returns the codec for t, building it if required. building holds
// the types currently under construction; D-Bus signatures are finite, so a
// type which contains itself cannot be represented.
func (cr *Coder) codecLocked(t reflect.Type, building map[reflect.Type]bool) xCodec {
	if c, ok := cr.knownCodecs.Load(t); ok {
		return c.(xCodec)
	}

	if building[t] {
		return &errorCodec{fmt.Errorf("%w (recursive)", errors.InvalidTypeError{T: t})}
	}

	building[t] = true
	c := cr.buildCodec(t, building)
	delete(building, t)

	cr.knownCodecs.Store(t, c)
	return c
}

func (cr *Coder) buildCodec(t reflect.Type, building map[reflect.Type]bool) xCodec {
	k := t.Kind()

	switch {
	case t == variantType:
		return variantCodecI

	case k == reflect.Interface && t.NumMethod() == 0:
		return interfaceCodecI

	case k == reflect.Ptr:
		return makePtrCodec(cr, t, building)

	case t.Implements(marshalerType) || reflect.PtrTo(t).Implements(unmarshalerType):
		return makeMarshalerCodec(t)
	}

	switch t {
	case objectPathType:
		return objectPathCodecI
	case signatureType:
		return signatureCodecI
	case unixFDType:
		return unixFDCodecI
	}

	switch k {
	case reflect.Bool:
		return boolCodecI
	case reflect.Uint8:
		return byteCodecI
	case reflect.Int16:
		return int16CodecI
	case reflect.Uint16:
		return uint16CodecI
	case reflect.Int32:
		return int32CodecI
	case reflect.Uint32:
		return uint32CodecI
	case reflect.Int64:
		return int64CodecI
	case reflect.Uint64:
		return uint64CodecI
	case reflect.Float64:
		return doubleCodecI
	case reflect.String:
		return stringCodecI
	case reflect.Slice:
		return makeSliceCodec(cr, t, building)
	case reflect.Array:
		return makeArrayCodec(cr, t, building)
	case reflect.Map:
		return makeMapCodec(cr, t, building)
	case reflect.Struct:
		return makeStructCodec(cr, t, building)
	default:
		return &errorCodec{errors.InvalidTypeError{T: t}}
	}
}

func (cr *Coder) NewEncoder(order binary.ByteOrder) dbusinterfaces.Encoder {
	return cr.newEncoder(order)
}

func (cr *Coder) newEncoder(order binary.ByteOrder) *encoder {
	e := encoderPool.Get().(*encoder)
	e.reset(cr, order)
	return e
}

func (cr *Coder) NewDecoder(order binary.ByteOrder, sig dbusinterfaces.Signature, body []byte) dbusinterfaces.Decoder {
	return cr.newDecoder(order, string(sig), body)
}

func (cr *Coder) newDecoder(order binary.ByteOrder, sig string, body []byte) *decoder {
	d := decoderPool.Get().(*decoder)
	d.reset(cr, order, sig, body)
	return d
}

func (cr *Coder) Marshal(order binary.ByteOrder, args ...interface{}) (dbusinterfaces.Signature, []byte, error) {
	e := cr.newEncoder(order)
	defer e.release()

	for i, arg := range args {
		if err := e.Encode(arg); err != nil {
			return "", nil, errors.WithFieldError(err, fmt.Sprintf("arg%d", i))
		}
	}

	if len(e.sig) > signature.MaxLength {
		return "", nil, errors.LengthError{Actual: uint64(len(e.sig)), Max: signature.MaxLength}
	}

	return e.Signature(), append([]byte(nil), e.buf...), nil
}

func (cr *Coder) Unmarshal(order binary.ByteOrder, sig dbusinterfaces.Signature, body []byte, ops ...interface{}) error {
	if err := signature.Validate(string(sig)); err != nil {
		return err
	}

	d := cr.newDecoder(order, string(sig), body)
	defer d.release()

	for i, op := range ops {
		if err := d.Decode(op); err != nil {
			return errors.WithFieldError(err, fmt.Sprintf("arg%d", i))
		}
	}
	return nil
}

func (cr *Coder) SignatureOf(o interface{}) (dbusinterfaces.Signature, error) {
	if o == nil {
		return "", errors.ErrNilPointer
	}

	c := cr.getCodec(reflect.TypeOf(o))
	if ec, ok := c.(*errorCodec); ok {
		return "", ec.err
	}
	return dbusinterfaces.Signature(c.signature()), nil
}
