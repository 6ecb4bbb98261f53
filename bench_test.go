// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"io"
	"testing"
)

func EncodeBenchmarkCommon(b *testing.B, ob interface{}) {
	b.Run("DBusMarshal", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _, err := Marshal(ob)
			if err != nil {
				b.Fatalf("Marshal: %s", err)
			}
		}
	})

	b.Run("JSONMarshal", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, err := json.Marshal(ob)
			if err != nil {
				b.Fatalf("json.Marshal: %s", err)
			}
		}
	})

	b.Run("DBusEncoder", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			e := NewEncoder()
			if err := e.Encode(ob); err != nil {
				b.Fatalf("Encode: %s", err)
			}
		}
	})

	b.Run("GobEncoderDiscard", func(b *testing.B) {
		w := gob.NewEncoder(io.Discard)
		for i := 0; i < b.N; i++ {
			if err := w.Encode(ob); err != nil {
				b.Fatalf("Encode: %s", err)
			}
		}
	})

	b.Run("JSONEncoderBuffer", func(b *testing.B) {
		var buf bytes.Buffer
		w := json.NewEncoder(&buf)
		for i := 0; i < b.N; i++ {
			if err := w.Encode(ob); err != nil {
				b.Fatalf("Encode: %s", err)
			}

			if (i % 2048) == 0 {
				buf.Reset()
			}
		}
	})
}

func BenchmarkUint32Encode(b *testing.B) {
	EncodeBenchmarkCommon(b, uint32(123))
}

func BenchmarkStringEncode(b *testing.B) {
	EncodeBenchmarkCommon(b, "Hello World")
}

func BenchmarkSimpleStructEncode(b *testing.B) {
	type S struct {
		X int32
		Y int64
		S string
		O []byte
	}

	s := &S{
		X: 123456,
		Y: 12345678,
		S: "Hello Encoders",
		O: []byte("Byte Slice"),
	}

	EncodeBenchmarkCommon(b, s)
}

func BenchmarkDictEncode(b *testing.B) {
	EncodeBenchmarkCommon(b, map[string]uint32{
		"preedit_text":   1,
		"auxiliary_text": 2,
		"lookup_table":   4,
		"focus":          8,
	})
}

func benchmarkText() Text {
	return NewText("にほんごをにゅうりょく",
		NewUnderline(UnderlineSingle, 0, 5),
		NewForeground(0x00ff0000, 5, 11),
		NewBackground(0x000000ff, 5, 11),
	)
}

// Text has no exported fields, so only the wire encoding is measured
func BenchmarkTextEncode(b *testing.B) {
	t := benchmarkText()
	for i := 0; i < b.N; i++ {
		if _, _, err := Marshal(t); err != nil {
			b.Fatalf("Marshal: %s", err)
		}
	}
}

func BenchmarkTextDecode(b *testing.B) {
	sig, body, err := Marshal(benchmarkText())
	if err != nil {
		b.Fatalf("Marshal: %s", err)
	}

	b.Run("Text", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var t Text
			if err := Unmarshal(NativeOrder, sig, body, &t); err != nil {
				b.Fatalf("Unmarshal: %s", err)
			}
		}
	})

	b.Run("Generic", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var v Variant
			if err := Unmarshal(NativeOrder, sig, body, &v); err != nil {
				b.Fatalf("Unmarshal: %s", err)
			}
		}
	})
}
