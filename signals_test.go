// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContextPath ObjectPath = "/org/freedesktop/IBus/InputContext_1"

// roundTrip sends a signal through the wire format
func roundTrip(t *testing.T, order binary.ByteOrder, s Signal) *Message {
	t.Helper()

	m, err := NewSignal(testContextPath, InputContextInterface, s)
	require.NoError(t, err)
	m.Serial = 7
	m.Sender = ":1.4"

	if order != NativeOrder {
		// Re-encode the body in the requested order
		m.Order = order
		_, m.Body, err = DefaultCoder.Marshal(order, s.Args()...)
		require.NoError(t, err)
	}

	b, err := m.MarshalBinary()
	require.NoError(t, err)

	out, err := ParseMessage(b)
	require.NoError(t, err)
	return out
}

func TestCommitText(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			m := roundTrip(t, order, CommitTextSignal{NewText("ム")})
			assert.Equal(t, "CommitText", m.Member)
			assert.Equal(t, Signature("v"), m.Signature)

			s, err := DefaultCodec.DecodeSignal(m)
			require.NoError(t, err)
			require.IsType(t, CommitTextSignal{}, s)

			commit := s.(CommitTextSignal)
			assert.Equal(t, "ム", commit.Text.String())
			assert.Empty(t, commit.Text.Attributes())
		})
	}
}

func TestUpdatePreeditText(t *testing.T) {
	sent := UpdatePreeditTextSignal{
		Text:      NewText("ｍ", NewUnderline(UnderlineSingle, 0, 1)),
		CursorPos: 1,
		Visible:   true,
	}

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			m := roundTrip(t, order, sent)
			assert.Equal(t, Signature("vub"), m.Signature)

			s, err := DefaultCodec.DecodeSignal(m)
			require.NoError(t, err)
			assert.Equal(t, sent, s)

			preedit := s.(UpdatePreeditTextSignal)
			assert.Equal(t, "ｍ", preedit.Text.String())
			assert.Equal(t, AttributeList{NewUnderline(UnderlineSingle, 0, 1)}, preedit.Text.Attributes())
			assert.Equal(t, uint32(1), preedit.CursorPos)
			assert.True(t, preedit.Visible)
			assert.Equal(t, 2, preedit.CursorColumn())
		})
	}
}

func TestEmptyPreedit(t *testing.T) {
	sent := UpdatePreeditTextSignal{Text: NewText("")}
	m := roundTrip(t, NativeOrder, sent)

	s, err := DefaultCodec.DecodeSignal(m)
	require.NoError(t, err)
	assert.Equal(t, sent, s)
	assert.Equal(t, 0, s.(UpdatePreeditTextSignal).CursorColumn())
}

func TestCursorColumn(t *testing.T) {
	for _, tc := range []struct {
		text   string
		cursor uint32
		column int
	}{
		{"", 0, 0},
		{"abc", 2, 2},
		{"にほん", 2, 4},
		{"aにb", 3, 4},
		{"ab", 10, 2},
	} {
		s := UpdatePreeditTextSignal{Text: NewText(tc.text), CursorPos: tc.cursor}
		assert.Equalf(t, tc.column, s.CursorColumn(), "%q at %d", tc.text, tc.cursor)
	}
}

func TestReadSignalArguments(t *testing.T) {
	t.Run("commit text", func(t *testing.T) {
		sig, body, err := Marshal(NewText("x"))
		require.NoError(t, err)

		s, err := DefaultCodec.ReadCommitText(NewDecoder(NativeOrder, sig, body))
		require.NoError(t, err)
		assert.Equal(t, CommitTextSignal{NewText("x")}, s)
	})

	t.Run("preedit cursor mistyped", func(t *testing.T) {
		sig, body, err := Marshal(NewText("x"), "1", true)
		require.NoError(t, err)

		_, err = DefaultCodec.ReadUpdatePreeditText(NewDecoder(NativeOrder, sig, body))
		assert.ErrorIs(t, err, ErrTypeMismatch)

		var tme TypeMismatchError
		require.ErrorAs(t, err, &tme)
		assert.Equal(t, TypeMismatchError{Expected: "u", Actual: "s", Position: 1}, tme)
	})

	t.Run("preedit truncated", func(t *testing.T) {
		sig, body, err := Marshal(NewText("x"), uint32(1))
		require.NoError(t, err)

		_, err = DefaultCodec.ReadUpdatePreeditText(NewDecoder(NativeOrder, sig, body))
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("commit text not a variant", func(t *testing.T) {
		sig, body, err := Marshal("ム")
		require.NoError(t, err)

		_, err = DefaultCodec.ReadCommitText(NewDecoder(NativeOrder, sig, body))
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("commit text of the wrong shape", func(t *testing.T) {
		sig, body, err := Marshal(AttributeList{NewUnderline(UnderlineSingle, 0, 1)})
		require.NoError(t, err)

		_, err = DefaultCodec.ReadCommitText(NewDecoder(NativeOrder, sig, body))
		assert.ErrorIs(t, err, ErrMalformed)
		assert.NotErrorIs(t, err, ErrTypeMismatch)
	})
}

func TestDecodeSignalDispatch(t *testing.T) {
	for _, s := range []Signal{ShowPreeditTextSignal{}, HidePreeditTextSignal{}} {
		m := roundTrip(t, NativeOrder, s)
		assert.Equal(t, Signature(""), m.Signature)

		got, err := DefaultCodec.DecodeSignal(m)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	t.Run("unknown member", func(t *testing.T) {
		m := &Message{Type: TypeSignal, Serial: 1, Path: testContextPath, Interface: InputContextInterface, Member: "UpdateLookupTable"}
		_, err := DefaultCodec.DecodeSignal(m)
		assert.ErrorIs(t, err, ErrUnknownSignal)
	})

	t.Run("other interface", func(t *testing.T) {
		m, err := NewSignal("/", "org.example.Other", CommitTextSignal{NewText("x")})
		require.NoError(t, err)
		_, err = DefaultCodec.DecodeSignal(m)
		assert.ErrorIs(t, err, ErrUnknownSignal)
	})

	t.Run("method call", func(t *testing.T) {
		m, err := NewMethodCall(BusName, testContextPath, InputContextInterface, "CommitText", NewText("x"))
		require.NoError(t, err)
		_, err = DefaultCodec.DecodeSignal(m)
		assert.ErrorIs(t, err, ErrUnknownSignal)
	})

	t.Run("failure returns no signal", func(t *testing.T) {
		sig, body, err := Marshal(uint32(1))
		require.NoError(t, err)
		m := &Message{
			Type:      TypeSignal,
			Serial:    1,
			Path:      testContextPath,
			Interface: InputContextInterface,
			Member:    "CommitText",
			Signature: sig,
			Body:      body,
		}

		s, err := DefaultCodec.DecodeSignal(m)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.Nil(t, s)
	})
}
