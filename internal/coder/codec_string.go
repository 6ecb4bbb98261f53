// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package coder

import (
	"reflect"
	"strings"
	"unicode/utf8"

	"go.e43.eu/ibus/internal/errors"
)

// stringCodec handles the string-like types: strings, object paths and
// signatures
type stringCodec struct {
	code byte
}

var (
	stringCodecI     xCodec = &stringCodec{'s'}
	objectPathCodecI xCodec = &stringCodec{'o'}
	signatureCodecI  xCodec = &stringCodec{'g'}
)

func (c *stringCodec) signature() string {
	return string(c.code)
}

func (c *stringCodec) accepts(sig string) bool {
	return len(sig) == 1 && sig[0] == c.code
}

func (c *stringCodec) Encode(e *encoder, v reflect.Value) error {
	switch c.code {
	case 'o':
		return e.writeObjectPath(v.String())
	case 'g':
		return e.writeSignature(v.String())
	default:
		return e.writeString(v.String())
	}
}

func (c *stringCodec) Decode(d *decoder, _ string, v reflect.Value) error {
	var (
		s   string
		err error
	)

	switch c.code {
	case 'o':
		s, err = d.readObjectPath()
	case 'g':
		s, err = d.readSignature()
	default:
		s, err = d.readString()
	}

	if err != nil {
		return err
	}
	v.SetString(s)
	return nil
}

// checkString verifies s may be sent as a D-Bus string: valid UTF-8 without
// any embedded NULs
func checkString(s string) error {
	if !utf8.ValidString(s) || strings.IndexByte(s, 0) >= 0 {
		return errors.ErrInvalidValue
	}
	return nil
}

// checkObjectPath verifies p is a valid object path: "/", or a sequence of
// non-empty "/"-prefixed elements of [A-Za-z0-9_]
func checkObjectPath(p string) error {
	if p == "/" {
		return nil
	}
	if p == "" || p[0] != '/' || p[len(p)-1] == '/' {
		return errors.ErrInvalidValue
	}

	for _, elem := range strings.Split(p[1:], "/") {
		if elem == "" {
			return errors.ErrInvalidValue
		}

		for i := 0; i < len(elem); i++ {
			switch c := elem[i]; {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			default:
				return errors.ErrInvalidValue
			}
		}
	}
	return nil
}
