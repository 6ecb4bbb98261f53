// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDirection int

const (
	bothTest testDirection = iota
	encodeTest
	decodeTest
)

type testcase struct {
	// Name of this test case
	Name string

	// Which directions to run this test in (defaults to both)
	Direction testDirection

	// Byte order of Bytes (defaults to little endian)
	Order binary.ByteOrder

	// The object to marshal, or to use for comparison on unmarshalling
	Object interface{}

	// The signature the object is marshalled with
	Signature Signature

	// The encoded representation of the object
	Bytes []byte

	// Error expected on en/decode
	EncErrorIs error
	DecErrorIs error

	// Comparator to use (instead of default) after successful decoding
	DecodeComparator func(t *testing.T, expt, actual interface{})
}

func RunTestcases(t *testing.T, tcs []testcase) {
	// Preprocess testcases:
	// * Default the byte order
	// * Insert the default DecoderComparator
	for i := range tcs {
		tc := &tcs[i]

		if tc.Order == nil {
			tc.Order = binary.LittleEndian
		}

		if tc.DecodeComparator == nil {
			tc.DecodeComparator = func(t *testing.T, l, r interface{}) {
				t.Helper()
				assert.Equal(t, l, r, "unmarshal output should match")
			}
		}
	}

	generatedTestcases := append([]testcase(nil), tcs...)
	t.Parallel()

	// For every case which decodes successfully, check that losing the last
	// byte is caught
	for _, tc := range tcs {
		if tc.Direction == encodeTest || tc.DecErrorIs != nil || len(tc.Bytes) == 0 {
			continue
		}
		tc := tc
		tc.Name += "+truncated"
		tc.Direction = decodeTest
		tc.Bytes = tc.Bytes[:len(tc.Bytes)-1]
		tc.DecErrorIs = ErrShortBuffer

		generatedTestcases = append(generatedTestcases, tc)
	}

	for _, tc := range generatedTestcases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			if tc.Direction != decodeTest {
				encode := func(t *testing.T, o interface{}) {
					e := DefaultCoder.NewEncoder(tc.Order)
					err := e.Encode(o)
					if tc.EncErrorIs != nil {
						require.Error(t, err, "Encoding should have returned an error")
						require.Truef(t, errors.Is(err, tc.EncErrorIs), "Error expected to be %s, but was %s", tc.EncErrorIs, err)
					} else {
						require.NoError(t, err, "Encode should succeed")
						assert.Equal(t, tc.Signature, e.Signature(), "Expected signature to match")
						assert.Equal(t, tc.Bytes, e.Bytes(), "Expected written data to match expected")
					}
				}

				t.Run("Encode", func(t *testing.T) {
					t.Parallel()
					encode(t, tc.Object)
				})

				// Pointers are transparent, so a pointer to the object must
				// encode identically
				t.Run("EncodePtr", func(t *testing.T) {
					t.Parallel()
					v := reflect.ValueOf(tc.Object)
					vp := reflect.New(v.Type())
					vp.Elem().Set(v)
					encode(t, vp.Interface())
				})
			}

			if tc.Direction != encodeTest {
				t.Run("Decode", func(t *testing.T) {
					t.Parallel()

					d := DefaultCoder.NewDecoder(tc.Order, tc.Signature, tc.Bytes)

					// If tc.Object is of type T, then construct new(T)
					tgtp := reflect.New(reflect.TypeOf(tc.Object)).Interface()

					err := d.Decode(tgtp)
					if tc.DecErrorIs != nil {
						if assert.Error(t, err, "Decoding should have returned an error") {
							assert.Truef(t, errors.Is(err, tc.DecErrorIs), "Error expected to be %s, but was %s", tc.DecErrorIs, err)
						} else {
							t.Logf("Returned %+v", tgtp)
						}
					} else {
						require.NoError(t, err, "Decode should succeed")
						assert.Equal(t, 0, d.Remaining(), "Decoder left arguments undecoded")

						// Dereference the pointer to get a T for comparison purposes
						o := reflect.ValueOf(tgtp).Elem().Interface()
						tc.DecodeComparator(t, o, tc.Object)
					}
				})
			}
		})
	}
}

// le and be build test vectors from their parts
func le(parts ...interface{}) []byte {
	return join(binary.LittleEndian, parts...)
}

func be(parts ...interface{}) []byte {
	return join(binary.BigEndian, parts...)
}

// join concatenates parts: bytes as is, strings as their bytes, and unsigned
// integers in order. Padding must be given explicitly.
func join(order binary.AppendByteOrder, parts ...interface{}) []byte {
	var out []byte
	for _, p := range parts {
		switch p := p.(type) {
		case byte:
			out = append(out, p)
		case []byte:
			out = append(out, p...)
		case string:
			out = append(out, p...)
		case uint16:
			out = order.AppendUint16(out, p)
		case uint32:
			out = order.AppendUint32(out, p)
		case uint64:
			out = order.AppendUint64(out, p)
		default:
			panic("join: unsupported part")
		}
	}
	return out
}

// pad returns n zero bytes
func pad(n int) []byte {
	return make([]byte, n)
}
