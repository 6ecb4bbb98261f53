// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A method call to Reset on /, with no body
var resetCall = le(
	"l", byte(1), byte(0), byte(1), uint32(0), uint32(1),
	uint32(30),
	byte(1), byte(1), "o", byte(0), uint32(1), "/", byte(0), pad(6),
	byte(3), byte(1), "s", byte(0), uint32(5), "Reset", byte(0),
	pad(2),
)

func TestMessageGolden(t *testing.T) {
	m := &Message{
		Order:  binary.LittleEndian,
		Type:   TypeMethodCall,
		Serial: 1,
		Path:   "/",
		Member: "Reset",
	}

	b, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, resetCall, b)

	parsed, err := ParseMessage(resetCall)
	require.NoError(t, err)
	assert.Equal(t, m, parsed)
	assert.Equal(t, "method_call #1 / .Reset()", parsed.String())
}

func TestMessageRoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			sig, body, err := DefaultCoder.Marshal(order, "hello", uint32(42))
			require.NoError(t, err)

			m := &Message{
				Order:       order,
				Type:        TypeMethodCall,
				Flags:       FlagNoReplyExpected,
				Serial:      99,
				Path:        BusPath,
				Interface:   BusInterface,
				Member:      "Echo",
				Destination: BusName,
				Sender:      ":1.7",
				Signature:   sig,
				Body:        body,
			}

			b, err := m.MarshalBinary()
			require.NoError(t, err)
			assert.Zero(t, (len(b)-len(body))%8, "body should start 8 aligned")

			parsed, err := ParseMessage(b)
			require.NoError(t, err)
			assert.Equal(t, m, parsed)

			var (
				s string
				u uint32
			)
			require.NoError(t, DefaultCoder.Unmarshal(order, parsed.Signature, parsed.Body, &s, &u))
			assert.Equal(t, "hello", s)
			assert.Equal(t, uint32(42), u)
		})
	}
}

func TestReplyMessages(t *testing.T) {
	call := &Message{Type: TypeMethodCall, Serial: 5, Path: "/", Member: "Ping", Sender: ":1.2"}

	reply, err := NewMethodReturn(call, true)
	require.NoError(t, err)
	reply.Serial = 6
	assert.Equal(t, uint32(5), reply.ReplySerial)
	assert.Equal(t, ":1.2", reply.Destination)

	b, err := reply.MarshalBinary()
	require.NoError(t, err)
	parsed, err := ParseMessage(b)
	require.NoError(t, err)
	assert.Equal(t, reply, parsed)
	assert.Equal(t, "method_return #6 reply to #5 (b)", parsed.String())

	errReply := &Message{Type: TypeError, Serial: 7, ReplySerial: 5, ErrorName: "org.example.Failed"}
	b, err = errReply.MarshalBinary()
	require.NoError(t, err)
	parsed, err = ParseMessage(b)
	require.NoError(t, err)
	assert.Equal(t, "org.example.Failed", parsed.ErrorName)
	assert.Equal(t, NativeOrder, parsed.Order)
}

func TestReadMessage(t *testing.T) {
	second := &Message{Type: TypeSignal, Serial: 2, Path: "/", Interface: "org.example", Member: "Tick"}
	b, err := second.MarshalBinary()
	require.NoError(t, err)

	stream := append(append([]byte(nil), resetCall...), b...)
	r := bytes.NewReader(stream)

	m, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, "Reset", m.Member)

	m, err = ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, "Tick", m.Member)

	_, err = ReadMessage(r)
	assert.Equal(t, io.EOF, err)

	for _, n := range []int{4, fixedHeaderLength, len(resetCall) - 1} {
		_, err = ReadMessage(bytes.NewReader(resetCall[:n]))
		assert.Equalf(t, io.ErrUnexpectedEOF, err, "truncated to %d", n)
	}
}

func TestMessageMalformed(t *testing.T) {
	modified := func(i int, b byte) []byte {
		out := append([]byte(nil), resetCall...)
		out[i] = b
		return out
	}

	t.Run("trailing data", func(t *testing.T) {
		_, err := ParseMessage(append(append([]byte(nil), resetCall...), 0))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("short", func(t *testing.T) {
		_, err := ParseMessage(resetCall[:len(resetCall)-8])
		assert.ErrorIs(t, err, ErrShortBuffer)

		_, err = ParseMessage(resetCall[:10])
		assert.ErrorIs(t, err, ErrShortBuffer)
	})

	t.Run("endianness", func(t *testing.T) {
		_, err := ParseMessage(modified(0, 'X'))
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("version", func(t *testing.T) {
		_, err := ParseMessage(modified(3, 2))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("serial zero", func(t *testing.T) {
		_, err := ParseMessage(modified(8, 0))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ParseMessage(modified(1, 9))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("too long", func(t *testing.T) {
		b := append([]byte(nil), resetCall...)
		binary.LittleEndian.PutUint32(b[4:], maxMessageLength)
		_, err := ParseMessage(b)
		assert.ErrorIs(t, err, ErrLengthExceedsMax)
	})

	t.Run("missing fields", func(t *testing.T) {
		for _, m := range []*Message{
			{Type: TypeMethodCall, Serial: 1, Member: "Reset"},
			{Type: TypeMethodCall, Serial: 1, Path: "/"},
			{Type: TypeSignal, Serial: 1, Path: "/", Member: "Tick"},
			{Type: TypeError, Serial: 1, ReplySerial: 1},
			{Type: TypeMethodReturn, Serial: 1},
			{Type: TypeMethodReturn, Serial: 1, ReplySerial: 1, Body: []byte{1}},
		} {
			_, err := m.MarshalBinary()
			assert.ErrorIsf(t, err, ErrMalformed, "%v", m)
		}
	})
}

func TestMessageHeaderFields(t *testing.T) {
	encode := func(fields ...headerField) []byte {
		h := header{
			Endianness: 'l',
			Type:       TypeMethodCall,
			Version:    protocolVersion,
			Serial:     1,
			Fields:     fields,
		}
		_, b, err := DefaultCoder.Marshal(binary.LittleEndian, h)
		require.NoError(t, err)
		for len(b)%8 != 0 {
			b = append(b, 0)
		}
		return b
	}
	path := headerField{fieldPath, Variant{Signature: "o", Value: ObjectPath("/")}}

	t.Run("wrong type", func(t *testing.T) {
		b := encode(path, headerField{fieldMember, Variant{Signature: "u", Value: uint32(3)}})
		_, err := ParseMessage(b)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("unknown field ignored", func(t *testing.T) {
		b := encode(
			path,
			headerField{42, Variant{Signature: "s", Value: "future"}},
			headerField{fieldMember, Variant{Signature: "s", Value: "Reset"}},
		)
		m, err := ParseMessage(b)
		require.NoError(t, err)
		assert.Equal(t, "Reset", m.Member)
	})
}

func TestWriteTo(t *testing.T) {
	var buf bytes.Buffer
	m := &Message{Order: binary.LittleEndian, Type: TypeMethodCall, Serial: 1, Path: "/", Member: "Reset"}

	n, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(resetCall)), n)
	assert.Equal(t, resetCall, buf.Bytes())
}
