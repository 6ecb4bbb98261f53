// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.e43.eu/ibus/internal/errors"
)

// MessageType is the kind of a D-Bus message
type MessageType byte

const (
	TypeInvalid MessageType = iota
	TypeMethodCall
	TypeMethodReturn
	TypeError
	TypeSignal
)

func (t MessageType) String() string {
	switch t {
	case TypeMethodCall:
		return "method_call"
	case TypeMethodReturn:
		return "method_return"
	case TypeError:
		return "error"
	case TypeSignal:
		return "signal"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(t))
	}
}

type MessageFlags byte

const (
	FlagNoReplyExpected MessageFlags = 1 << iota
	FlagNoAutoStart
	FlagAllowInteractiveAuthorization
)

const (
	protocolVersion = 1

	// Fixed part of the header, up to and including the field array length
	fixedHeaderLength = 16

	// Longest message permitted by D-Bus
	maxMessageLength = 1 << 27
)

// Header field codes
const (
	fieldPath        byte = 1
	fieldInterface   byte = 2
	fieldMember      byte = 3
	fieldErrorName   byte = 4
	fieldReplySerial byte = 5
	fieldDestination byte = 6
	fieldSender      byte = 7
	fieldSignature   byte = 8
	fieldUnixFDs     byte = 9
)

// Message is a D-Bus message. Body holds the arguments, whose types are given
// by Signature, in byte order Order.
type Message struct {
	Order  binary.ByteOrder
	Type   MessageType
	Flags  MessageFlags
	Serial uint32

	Path        ObjectPath
	Interface   string
	Member      string
	ErrorName   string
	ReplySerial uint32
	Destination string
	Sender      string
	UnixFDs     uint32

	Signature Signature
	Body      []byte
}

type headerField struct {
	Code  byte
	Value Variant
}

// header is the message header as it appears on the wire, (yyyyuua(yv))
type header struct {
	Endianness byte
	Type       MessageType
	Flags      MessageFlags
	Version    byte
	BodyLength uint32
	Serial     uint32
	Fields     []headerField
}

func (m *Message) order() binary.ByteOrder {
	if m.Order == nil {
		return NativeOrder
	}
	return m.Order
}

// Decoder returns a decoder over the message's arguments
func (m *Message) Decoder() Decoder {
	return DefaultCoder.NewDecoder(m.order(), m.Signature, m.Body)
}

func (m *Message) String() string {
	switch m.Type {
	case TypeMethodReturn:
		return fmt.Sprintf("%s #%d reply to #%d (%s)", m.Type, m.Serial, m.ReplySerial, m.Signature)
	case TypeError:
		return fmt.Sprintf("%s #%d %s reply to #%d", m.Type, m.Serial, m.ErrorName, m.ReplySerial)
	default:
		return fmt.Sprintf("%s #%d %s %s.%s(%s)", m.Type, m.Serial, m.Path, m.Interface, m.Member, m.Signature)
	}
}

// validate checks that the header fields required for the message's type are
// present
func (m *Message) validate() error {
	missing := func(field string) error {
		return errors.Malformed("message", "%s without %s", m.Type, field)
	}

	if m.Serial == 0 {
		return missing("serial")
	}

	switch m.Type {
	case TypeMethodCall:
		if m.Path == "" {
			return missing("path")
		}
		if m.Member == "" {
			return missing("member")
		}
	case TypeSignal:
		if m.Path == "" {
			return missing("path")
		}
		if m.Interface == "" {
			return missing("interface")
		}
		if m.Member == "" {
			return missing("member")
		}
	case TypeError:
		if m.ErrorName == "" {
			return missing("error name")
		}
		if m.ReplySerial == 0 {
			return missing("reply serial")
		}
	case TypeMethodReturn:
		if m.ReplySerial == 0 {
			return missing("reply serial")
		}
	default:
		return errors.Malformed("message", "unknown message type %d", byte(m.Type))
	}

	if len(m.Body) > 0 && m.Signature == "" {
		return missing("signature")
	}
	return nil
}

func (m *Message) header() header {
	h := header{
		Type:       m.Type,
		Flags:      m.Flags,
		Version:    protocolVersion,
		BodyLength: uint32(len(m.Body)),
		Serial:     m.Serial,
	}

	if m.order() == binary.BigEndian {
		h.Endianness = 'B'
	} else {
		h.Endianness = 'l'
	}

	add := func(code byte, sig Signature, value interface{}) {
		h.Fields = append(h.Fields, headerField{code, Variant{Signature: sig, Value: value}})
	}

	if m.Path != "" {
		add(fieldPath, "o", m.Path)
	}
	if m.Interface != "" {
		add(fieldInterface, "s", m.Interface)
	}
	if m.Member != "" {
		add(fieldMember, "s", m.Member)
	}
	if m.ErrorName != "" {
		add(fieldErrorName, "s", m.ErrorName)
	}
	if m.ReplySerial != 0 {
		add(fieldReplySerial, "u", m.ReplySerial)
	}
	if m.Destination != "" {
		add(fieldDestination, "s", m.Destination)
	}
	if m.Sender != "" {
		add(fieldSender, "s", m.Sender)
	}
	if m.Signature != "" {
		add(fieldSignature, "g", m.Signature)
	}
	if m.UnixFDs != 0 {
		add(fieldUnixFDs, "u", m.UnixFDs)
	}
	return h
}

// MarshalBinary returns the message in wire format
func (m *Message) MarshalBinary() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	_, buf, err := DefaultCoder.Marshal(m.order(), m.header())
	if err != nil {
		return nil, errors.WithFieldError(err, "header")
	}

	for len(buf)%8 != 0 {
		buf = append(buf, 0)
	}
	if len(buf)+len(m.Body) > maxMessageLength {
		return nil, errors.LengthError{Actual: uint64(len(buf) + len(m.Body)), Max: maxMessageLength}
	}
	return append(buf, m.Body...), nil
}

// WriteTo writes the message in wire format to w
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	b, err := m.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

func byteOrder(e byte) (binary.ByteOrder, error) {
	switch e {
	case 'l':
		return binary.LittleEndian, nil
	case 'B':
		return binary.BigEndian, nil
	default:
		return nil, errors.WithFieldError(errors.ErrInvalidValue, "header", "endianness")
	}
}

// messageLength returns the total length of the message whose fixed header is
// b
func messageLength(b []byte) (int, error) {
	if len(b) < fixedHeaderLength {
		return 0, errors.ErrShortBuffer
	}

	order, err := byteOrder(b[0])
	if err != nil {
		return 0, err
	}

	body := uint64(order.Uint32(b[4:8]))
	fields := uint64(order.Uint32(b[12:16]))
	n := (fixedHeaderLength+fields+7)&^7 + body
	if n > maxMessageLength {
		return 0, errors.LengthError{Actual: n, Max: maxMessageLength}
	}
	return int(n), nil
}

// ParseMessage parses a single message, which must occupy all of b. The
// message does not alias b.
func ParseMessage(b []byte) (*Message, error) {
	n, err := messageLength(b)
	switch {
	case err != nil:
		return nil, err
	case n > len(b):
		return nil, errors.ErrShortBuffer
	case n < len(b):
		return nil, errors.Malformed("message", "%d bytes of trailing data", len(b)-n)
	}

	order, _ := byteOrder(b[0])
	var h header
	if err := DefaultCoder.Unmarshal(order, "(yyyyuua(yv))", b, &h); err != nil {
		return nil, errors.WithFieldError(err, "header")
	}
	if h.Version != protocolVersion {
		return nil, errors.Malformed("message", "protocol version %d", h.Version)
	}

	m := &Message{
		Order:  order,
		Type:   h.Type,
		Flags:  h.Flags,
		Serial: h.Serial,
	}
	for _, f := range h.Fields {
		if err := m.setField(f); err != nil {
			return nil, err
		}
	}

	start := n - int(h.BodyLength)
	if h.BodyLength > 0 {
		m.Body = append([]byte(nil), b[start:]...)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// setField stores a header field. Unknown fields are ignored.
func (m *Message) setField(f headerField) error {
	var (
		want Signature
		ok   bool
	)

	switch f.Code {
	case fieldPath:
		want = "o"
		m.Path, ok = f.Value.Value.(ObjectPath)
	case fieldInterface:
		want = "s"
		m.Interface, ok = f.Value.Value.(string)
	case fieldMember:
		want = "s"
		m.Member, ok = f.Value.Value.(string)
	case fieldErrorName:
		want = "s"
		m.ErrorName, ok = f.Value.Value.(string)
	case fieldReplySerial:
		want = "u"
		m.ReplySerial, ok = f.Value.Value.(uint32)
	case fieldDestination:
		want = "s"
		m.Destination, ok = f.Value.Value.(string)
	case fieldSender:
		want = "s"
		m.Sender, ok = f.Value.Value.(string)
	case fieldSignature:
		want = "g"
		m.Signature, ok = f.Value.Value.(Signature)
	case fieldUnixFDs:
		want = "u"
		m.UnixFDs, ok = f.Value.Value.(uint32)
	default:
		return nil
	}

	if !ok {
		return errors.WithFieldError(
			errors.TypeMismatchError{Expected: string(want), Actual: string(f.Value.Signature), Position: int(f.Code)},
			"header", fmt.Sprintf("field%d", f.Code))
	}
	return nil
}

// ReadMessage reads one message from r. If r is at end of file, io.EOF is
// returned.
func ReadMessage(r io.Reader) (*Message, error) {
	fixed := make([]byte, fixedHeaderLength)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, err
	}

	n, err := messageLength(fixed)
	if err != nil {
		return nil, err
	}

	b := make([]byte, n)
	copy(b, fixed)
	if _, err := io.ReadFull(r, b[fixedHeaderLength:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return ParseMessage(b)
}

// NewSignal constructs a signal message. The serial is left for the caller to
// assign.
func NewSignal(path ObjectPath, iface string, s Signal) (*Message, error) {
	sig, body, err := Marshal(s.Args()...)
	if err != nil {
		return nil, err
	}

	return &Message{
		Order:     NativeOrder,
		Type:      TypeSignal,
		Path:      path,
		Interface: iface,
		Member:    s.SignalName(),
		Signature: sig,
		Body:      body,
	}, nil
}

// NewMethodCall constructs a method call message. The serial is left for the
// caller to assign.
func NewMethodCall(dest string, path ObjectPath, iface, member string, args ...interface{}) (*Message, error) {
	sig, body, err := Marshal(args...)
	if err != nil {
		return nil, err
	}

	return &Message{
		Order:       NativeOrder,
		Type:        TypeMethodCall,
		Destination: dest,
		Path:        path,
		Interface:   iface,
		Member:      member,
		Signature:   sig,
		Body:        body,
	}, nil
}

// NewMethodReturn constructs a reply to call
func NewMethodReturn(call *Message, args ...interface{}) (*Message, error) {
	sig, body, err := Marshal(args...)
	if err != nil {
		return nil, err
	}

	return &Message{
		Order:       NativeOrder,
		Type:        TypeMethodReturn,
		ReplySerial: call.Serial,
		Destination: call.Sender,
		Signature:   sig,
		Body:        body,
	}, nil
}
