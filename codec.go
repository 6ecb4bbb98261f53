// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"unicode/utf8"

	"go.e43.eu/ibus/internal/errors"
	"go.e43.eu/ibus/internal/signature"
)

// ListPolicy says what to do with a malformed attribute in a list
type ListPolicy int

const (
	// SkipMalformed drops malformed attributes, keeping the rest of the list
	SkipMalformed ListPolicy = iota

	// RejectMalformed fails the whole list
	RejectMalformed
)

func (p ListPolicy) String() string {
	switch p {
	case SkipMalformed:
		return "skip"
	case RejectMalformed:
		return "reject"
	default:
		return fmt.Sprintf("ListPolicy(%d)", int(p))
	}
}

// Codec decodes IBus text from variants. The zero value is ready to use.
//
// Decoding distinguishes values of the wrong shape (errors.Is(err,
// ErrMalformed)), which are logged and may be tolerated, from values of the
// wrong type (errors.Is(err, ErrTypeMismatch)), which are never tolerated.
type Codec struct {
	// Logger receives diagnostics about dropped values. If nil, slog.Default()
	Logger *slog.Logger

	// Policy applied to malformed attributes within a list
	Policy ListPolicy
}

// The codec used by the UnmarshalDBus methods
var DefaultCodec = &Codec{}

func (c *Codec) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// malformed logs and returns a MalformedError
func (c *Codec) malformed(shape, format string, args ...interface{}) error {
	err := errors.Malformed(shape, format, args...)
	c.logger().Debug("ibus: structural mismatch", "shape", shape, "error", err)
	return err
}

// record is a decoded struct, read positionally
type record struct {
	shape  string
	types  []string
	fields []interface{}
}

// record checks that v holds a struct named shape with at least min fields.
// Fields beyond those we read are ignored.
func (c *Codec) record(shape string, v Variant, min int) (record, error) {
	v, err := normalize(v)
	if err != nil {
		return record{}, err
	}

	sig := string(v.Signature)
	if sig == "" || sig[0] != signature.StructOpen {
		return record{}, c.malformed(shape, "variant holds '%s', not a struct", sig)
	}

	types, err := signature.Fields(sig)
	if err != nil {
		return record{}, err
	}
	fields, ok := v.Value.([]interface{})
	if !ok || len(fields) != len(types) {
		return record{}, errors.TypeMismatchError{Expected: sig, Actual: fmt.Sprintf("%T", v.Value)}
	}

	r := record{shape, types, fields}
	if len(fields) < min {
		return record{}, c.malformed(shape, "%d fields, expected at least %d", len(fields), min)
	}

	name, err := r.string(0)
	if err != nil {
		return record{}, err
	}
	if name != shape {
		return record{}, c.malformed(shape, "structural name is '%s'", name)
	}
	return r, nil
}

// normalize converts a variant built in Go (with a typed value) into the
// generic form the decoder produces, by way of the wire
func normalize(v Variant) (Variant, error) {
	if _, ok := v.Value.([]interface{}); ok || v.Value == nil {
		return v, nil
	}

	sig, body, err := DefaultCoder.Marshal(NativeOrder, v)
	if err != nil {
		return Variant{}, err
	}

	var out Variant
	err = DefaultCoder.Unmarshal(NativeOrder, sig, body, &out)
	return out, err
}

// mismatch reports field i as not of type want. When the signature claims
// want, the value itself is at fault, so its Go type is reported.
func (r record) mismatch(i int, want string, value interface{}) error {
	actual := r.types[i]
	if actual == want {
		actual = fmt.Sprintf("%T", value)
	}
	return errors.WithFieldError(
		errors.TypeMismatchError{Expected: want, Actual: actual, Position: i},
		r.shape, strconv.Itoa(i))
}

func (r record) string(i int) (string, error) {
	s, ok := r.fields[i].(string)
	if !ok {
		return "", r.mismatch(i, "s", r.fields[i])
	}
	return s, nil
}

func (r record) uint32(i int) (uint32, error) {
	u, ok := r.fields[i].(uint32)
	if !ok {
		return 0, r.mismatch(i, "u", r.fields[i])
	}
	return u, nil
}

func (r record) variant(i int) (Variant, error) {
	v, ok := r.fields[i].(Variant)
	if !ok {
		return Variant{}, r.mismatch(i, "v", r.fields[i])
	}
	return v, nil
}

func (r record) variants(i int) ([]Variant, error) {
	if r.types[i] != "av" {
		return nil, r.mismatch(i, "av", r.fields[i])
	}

	elems, _ := r.fields[i].([]interface{})
	out := make([]Variant, len(elems))
	for j, e := range elems {
		v, ok := e.(Variant)
		if !ok {
			return nil, r.mismatch(i, "av", e)
		}
		out[j] = v
	}
	return out, nil
}

// DecodeAttribute decodes a serialized attribute
func (c *Codec) DecodeAttribute(v Variant) (Attribute, error) {
	r, err := c.record(attributeName, v, 6)
	if err != nil {
		return Attribute{}, err
	}

	var vals [4]uint32
	for i := range vals {
		if vals[i], err = r.uint32(2 + i); err != nil {
			return Attribute{}, err
		}
	}
	typ, value, start, end := AttributeType(vals[0]), vals[1], vals[2], vals[3]

	var kind AttributeKind
	switch typ {
	case AttributeUnderline:
		u := UnderlineKind(value)
		if !u.valid() {
			c.logger().Warn("ibus: unknown underline kind", "kind", value)
			return Attribute{}, errors.Malformed(attributeName, "unknown underline kind %d", value)
		}
		kind = Underline{u}
	case AttributeForeground:
		kind = Foreground{Color(value)}
	case AttributeBackground:
		kind = Background{Color(value)}
	default:
		c.logger().Warn("ibus: unknown attribute type", "type", uint32(typ))
		return Attribute{}, errors.Malformed(attributeName, "unknown attribute type %d", uint32(typ))
	}

	return Attribute{Kind: kind, StartIndex: start, EndIndex: end}, nil
}

// DecodeAttributeList decodes a serialized attribute list. Malformed members
// are handled according to c.Policy.
func (c *Codec) DecodeAttributeList(v Variant) (AttributeList, error) {
	r, err := c.record(attributeListName, v, 3)
	if err != nil {
		return nil, err
	}

	elems, err := r.variants(2)
	if err != nil {
		return nil, err
	}

	var out AttributeList
	for i, ev := range elems {
		a, err := c.DecodeAttribute(ev)
		switch {
		case err == nil:
			out = append(out, a)
		case stderrors.Is(err, errors.ErrMalformed) && c.Policy == SkipMalformed:
			c.logger().Warn("ibus: skipping malformed attribute", "index", i, "error", err)
		default:
			return nil, errors.WithFieldError(err, attributeListName, strconv.Itoa(i))
		}
	}
	return out, nil
}

// DecodeText decodes a serialized text. If its attribute list is malformed,
// the text is returned without attributes.
func (c *Codec) DecodeText(v Variant) (Text, error) {
	r, err := c.record(textName, v, 4)
	if err != nil {
		return Text{}, err
	}

	s, err := r.string(2)
	if err != nil {
		return Text{}, err
	}
	lv, err := r.variant(3)
	if err != nil {
		return Text{}, err
	}

	attrs, err := c.DecodeAttributeList(lv)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrMalformed):
		c.logger().Warn("ibus: ignoring malformed attribute list", "length", utf8.RuneCountInString(s), "error", err)
		attrs = nil
	default:
		return Text{}, errors.WithFieldError(err, textName, "3")
	}

	return Text{str: s, attributes: attrs}, nil
}
