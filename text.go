// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	"fmt"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"go.e43.eu/ibus/internal/errors"
)

// Structural names identifying each serialized shape
const (
	textName          = "IBusText"
	attributeListName = "IBusAttrList"
	attributeName     = "IBusAttribute"
)

// Wire signatures of the struct inside each shape's variant
const (
	textSignature          Signature = "(sa{sv}sv)"
	attributeListSignature Signature = "(sa{sv}av)"
	attributeSignature     Signature = "(sa{sv}uuuu)"
)

// UnderlineKind is the style of an underline attribute
type UnderlineKind uint32

const (
	UnderlineNone UnderlineKind = iota
	UnderlineSingle
	UnderlineDouble
	UnderlineLow
	UnderlineError
)

func (k UnderlineKind) String() string {
	switch k {
	case UnderlineNone:
		return "none"
	case UnderlineSingle:
		return "single"
	case UnderlineDouble:
		return "double"
	case UnderlineLow:
		return "low"
	case UnderlineError:
		return "error"
	default:
		return fmt.Sprintf("UnderlineKind(%d)", uint32(k))
	}
}

func (k UnderlineKind) valid() bool {
	return k <= UnderlineError
}

// AttributeType is the wire discriminant of an attribute
type AttributeType uint32

const (
	AttributeUnderline  AttributeType = 1
	AttributeForeground AttributeType = 2
	AttributeBackground AttributeType = 3
)

func (t AttributeType) String() string {
	switch t {
	case AttributeUnderline:
		return "underline"
	case AttributeForeground:
		return "foreground"
	case AttributeBackground:
		return "background"
	default:
		return fmt.Sprintf("AttributeType(%d)", uint32(t))
	}
}

// Color is a 32-bit color as sent by IBus. The order of its channels is not
// specified, so it is not interpreted.
type Color uint32

func (c Color) String() string {
	return fmt.Sprintf("#%08x", uint32(c))
}

// AttributeKind is the styling an attribute applies. It is one of Underline,
// Foreground or Background.
type AttributeKind interface {
	// Type returns the wire discriminant
	Type() AttributeType

	// Value returns the wire value
	Value() uint32

	isAttributeKind()
}

type Underline struct {
	Kind UnderlineKind
}

type Foreground struct {
	Color Color
}

type Background struct {
	Color Color
}

func (Underline) Type() AttributeType  { return AttributeUnderline }
func (Foreground) Type() AttributeType { return AttributeForeground }
func (Background) Type() AttributeType { return AttributeBackground }

func (u Underline) Value() uint32  { return uint32(u.Kind) }
func (f Foreground) Value() uint32 { return uint32(f.Color) }
func (b Background) Value() uint32 { return uint32(b.Color) }

func (Underline) isAttributeKind()  {}
func (Foreground) isAttributeKind() {}
func (Background) isAttributeKind() {}

// Attribute styles the characters [StartIndex, EndIndex) of a Text. Indices
// count Unicode code points, and are not checked against the text.
type Attribute struct {
	Kind       AttributeKind
	StartIndex uint32
	EndIndex   uint32
}

func NewUnderline(kind UnderlineKind, start, end uint32) Attribute {
	return Attribute{Underline{kind}, start, end}
}

func NewForeground(color Color, start, end uint32) Attribute {
	return Attribute{Foreground{color}, start, end}
}

func NewBackground(color Color, start, end uint32) Attribute {
	return Attribute{Background{color}, start, end}
}

func (a Attribute) String() string {
	if a.Kind == nil {
		return fmt.Sprintf("invalid[%d:%d]", a.StartIndex, a.EndIndex)
	}
	return fmt.Sprintf("%s(%d)[%d:%d]", a.Kind.Type(), a.Kind.Value(), a.StartIndex, a.EndIndex)
}

// AttributeList is an ordered sequence of attributes. Order is preserved, and
// duplicates and overlaps are permitted.
type AttributeList []Attribute

// Text is a string and the attributes styling it
type Text struct {
	str        string
	attributes AttributeList
}

// NewText constructs a text which shares s. The attributes are copied.
func NewText(s string, attributes ...Attribute) Text {
	return Text{
		str:        s,
		attributes: append(AttributeList(nil), attributes...),
	}
}

// NewTextBytes constructs a text owning a copy of b. b must be valid UTF-8.
func NewTextBytes(b []byte, attributes ...Attribute) (Text, error) {
	if !utf8.Valid(b) {
		return Text{}, errors.ErrInvalidValue
	}
	return NewText(string(b), attributes...), nil
}

func (t Text) String() string {
	return t.str
}

// Attributes returns a copy of the text's attributes
func (t Text) Attributes() AttributeList {
	return append(AttributeList(nil), t.attributes...)
}

// Len returns the length of the text in characters
func (t Text) Len() int {
	return utf8.RuneCountInString(t.str)
}

// Width returns the number of terminal columns the text occupies
func (t Text) Width() int {
	return runewidth.StringWidth(t.str)
}

// Slice returns the characters covered by a, clamped to the text
func (t Text) Slice(a Attribute) string {
	return runeSlice(t.str, int(a.StartIndex), int(a.EndIndex))
}

// runeSlice returns the characters [start, end) of s. Out of range indices are
// clamped.
func runeSlice(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end <= start {
		return ""
	}

	from, to := len(s), len(s)
	i := 0
	for off := range s {
		if i == start {
			from = off
		}
		if i == end {
			to = off
			break
		}
		i++
	}
	if from > to {
		return ""
	}
	return s[from:to]
}

// Wire records. Encoding goes through these; decoding is done by Codec, which
// tolerates extra trailing fields.
type attributeRecord struct {
	Name       string
	Properties map[string]Variant
	Type       uint32
	Value      uint32
	Start      uint32
	End        uint32
}

type attributeListRecord struct {
	Name       string
	Properties map[string]Variant
	Attributes []Attribute
}

type textRecord struct {
	Name       string
	Properties map[string]Variant
	Text       string
	Attributes AttributeList
}

// Variant returns the attribute in its serialized form
func (a Attribute) Variant() (Variant, error) {
	if a.Kind == nil {
		return Variant{}, errors.Malformed(attributeName, "no kind")
	}

	return Variant{
		Signature: attributeSignature,
		Value: attributeRecord{
			Name:  attributeName,
			Type:  uint32(a.Kind.Type()),
			Value: a.Kind.Value(),
			Start: a.StartIndex,
			End:   a.EndIndex,
		},
	}, nil
}

func (a Attribute) DBusSignature() Signature {
	return "v"
}

func (a Attribute) MarshalDBus(e Encoder) error {
	v, err := a.Variant()
	if err != nil {
		return err
	}
	return e.EncodeVariant(v)
}

func (a *Attribute) UnmarshalDBus(d Decoder) error {
	v, err := d.DecodeVariant()
	if err != nil {
		return err
	}

	*a, err = DefaultCodec.DecodeAttribute(v)
	return err
}

// Variant returns the list in its serialized form
func (l AttributeList) Variant() Variant {
	return Variant{
		Signature: attributeListSignature,
		Value: attributeListRecord{
			Name:       attributeListName,
			Attributes: []Attribute(l),
		},
	}
}

func (l AttributeList) DBusSignature() Signature {
	return "v"
}

func (l AttributeList) MarshalDBus(e Encoder) error {
	return e.EncodeVariant(l.Variant())
}

func (l *AttributeList) UnmarshalDBus(d Decoder) error {
	v, err := d.DecodeVariant()
	if err != nil {
		return err
	}

	*l, err = DefaultCodec.DecodeAttributeList(v)
	return err
}

// Variant returns the text in its serialized form
func (t Text) Variant() Variant {
	return Variant{
		Signature: textSignature,
		Value: textRecord{
			Name:       textName,
			Text:       t.str,
			Attributes: t.attributes,
		},
	}
}

func (t Text) DBusSignature() Signature {
	return "v"
}

func (t Text) MarshalDBus(e Encoder) error {
	return e.EncodeVariant(t.Variant())
}

func (t *Text) UnmarshalDBus(d Decoder) error {
	v, err := d.DecodeVariant()
	if err != nil {
		return err
	}

	*t, err = DefaultCodec.DecodeText(v)
	return err
}
