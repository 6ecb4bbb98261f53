// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package coder

import (
	"math"
	"reflect"
)

// primitiveCodec handles the fixed size basic types. Values are accessed by
// kind, so named types (e.g. `type Kind uint32`) are handled too.
type primitiveCodec struct {
	code byte
}

var (
	byteCodecI   xCodec = &primitiveCodec{'y'}
	boolCodecI   xCodec = &primitiveCodec{'b'}
	int16CodecI  xCodec = &primitiveCodec{'n'}
	uint16CodecI xCodec = &primitiveCodec{'q'}
	int32CodecI  xCodec = &primitiveCodec{'i'}
	uint32CodecI xCodec = &primitiveCodec{'u'}
	int64CodecI  xCodec = &primitiveCodec{'x'}
	uint64CodecI xCodec = &primitiveCodec{'t'}
	doubleCodecI xCodec = &primitiveCodec{'d'}
	unixFDCodecI xCodec = &primitiveCodec{'h'}
)

func (c *primitiveCodec) signature() string {
	return string(c.code)
}

func (c *primitiveCodec) accepts(sig string) bool {
	return len(sig) == 1 && sig[0] == c.code
}

func (c *primitiveCodec) Encode(e *encoder, v reflect.Value) error {
	switch c.code {
	case 'y':
		e.writeByte(byte(v.Uint()))
	case 'b':
		e.writeBool(v.Bool())
	case 'n':
		e.writeUint16(uint16(v.Int()))
	case 'q':
		e.writeUint16(uint16(v.Uint()))
	case 'i':
		e.writeUint32(uint32(v.Int()))
	case 'u', 'h':
		e.writeUint32(uint32(v.Uint()))
	case 'x':
		e.writeUint64(uint64(v.Int()))
	case 't':
		e.writeUint64(v.Uint())
	case 'd':
		e.writeUint64(math.Float64bits(v.Float()))
	}
	return nil
}

func (c *primitiveCodec) Decode(d *decoder, _ string, v reflect.Value) error {
	x, err := d.readPrimitive(c.code)
	if err != nil {
		return err
	}

	switch c.code {
	case 'b':
		v.SetBool(x.(bool))
	case 'n':
		v.SetInt(int64(x.(int16)))
	case 'i':
		v.SetInt(int64(x.(int32)))
	case 'x':
		v.SetInt(x.(int64))
	case 'd':
		v.SetFloat(x.(float64))
	default:
		v.SetUint(reflect.ValueOf(x).Uint())
	}
	return nil
}
