// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	"fmt"
	"strings"

	"go.e43.eu/ibus/internal/errors"
)

const (
	BusName                         = "org.freedesktop.IBus"
	BusPath              ObjectPath = "/org/freedesktop/IBus"
	BusInterface                    = "org.freedesktop.IBus"
	InputContextInterface           = "org.freedesktop.IBus.InputContext"
)

// Capabilities are the features a client supports, as passed to
// SetCapabilities
type Capabilities uint32

const (
	CapPreeditText Capabilities = 1 << iota
	CapAuxiliaryText
	CapLookupTable
	CapFocus
	CapProperty
	CapSurroundingText
)

var capabilityNames = []string{
	"preedit_text",
	"auxiliary_text",
	"lookup_table",
	"focus",
	"property",
	"surrounding_text",
}

func (c Capabilities) String() string {
	return flagString(uint32(c), capabilityNames)
}

// Modifiers is the modifier and button state accompanying a key event
type Modifiers uint32

const (
	ModShift Modifiers = 1 << iota
	ModLock
	ModControl
	ModMod1
	ModMod2
	ModMod3
	ModMod4
	ModMod5
	ModButton1
	ModButton2
	ModButton3
	ModButton4
	ModButton5
)

const (
	ModSuper   Modifiers = 1 << 26
	ModHyper   Modifiers = 1 << 27
	ModMeta    Modifiers = 1 << 28
	ModRelease Modifiers = 1 << 30
)

var modifierNames = []string{
	0:  "shift",
	1:  "lock",
	2:  "control",
	3:  "mod1",
	4:  "mod2",
	5:  "mod3",
	6:  "mod4",
	7:  "mod5",
	8:  "button1",
	9:  "button2",
	10: "button3",
	11: "button4",
	12: "button5",
	26: "super",
	27: "hyper",
	28: "meta",
	30: "release",
}

func (m Modifiers) String() string {
	return flagString(uint32(m), modifierNames)
}

// flagString joins the names of the bits set in v with '|'. Bits without a
// name are printed together in hex.
func flagString(v uint32, names []string) string {
	var out []string
	for i, name := range names {
		if name != "" && v&(1<<i) != 0 {
			out = append(out, name)
			v &^= 1 << i
		}
	}
	if v != 0 {
		out = append(out, fmt.Sprintf("%#x", v))
	}
	if len(out) == 0 {
		return "0"
	}
	return strings.Join(out, "|")
}

// MethodError is an error reply to a method call
type MethodError struct {
	Name    string
	Message string
}

func (e MethodError) Error() string {
	if e.Message == "" {
		return "ibus: " + e.Name
	}
	return fmt.Sprintf("ibus: %s: %s", e.Name, e.Message)
}

// checkReply returns an error unless m is a method return. Error replies are
// returned as MethodError.
func checkReply(m *Message) error {
	switch m.Type {
	case TypeMethodReturn:
		return nil
	case TypeError:
		e := MethodError{Name: m.ErrorName}
		d := m.Decoder()
		if s, ok := d.Peek(); ok && s == "s" {
			msg, err := d.DecodeString()
			if err != nil {
				return errors.WithFieldError(err, m.ErrorName, "message")
			}
			e.Message = msg
		}
		return e
	default:
		return errors.Malformed("reply", "unexpected %s", m.Type)
	}
}

// CreateInputContext builds the call asking the bus for a new input context
func CreateInputContext(name string) (*Message, error) {
	return NewMethodCall(BusName, BusPath, BusInterface, "CreateInputContext", name)
}

// InputContext is a handle on an input context owned by the bus
type InputContext struct {
	Path ObjectPath
}

// ReadCreateInputContextReply reads the reply to CreateInputContext
func ReadCreateInputContextReply(m *Message) (InputContext, error) {
	if err := checkReply(m); err != nil {
		return InputContext{}, err
	}

	p, err := m.Decoder().DecodeObjectPath()
	if err != nil {
		return InputContext{}, err
	}
	return InputContext{p}, nil
}

func (ic InputContext) call(member string, args ...interface{}) (*Message, error) {
	return NewMethodCall(BusName, ic.Path, InputContextInterface, member, args...)
}

// ProcessKeyEvent builds a call passing a key event to the input method
func (ic InputContext) ProcessKeyEvent(keyval, keycode uint32, state Modifiers) (*Message, error) {
	return ic.call("ProcessKeyEvent", keyval, keycode, uint32(state))
}

// ReadProcessKeyEventReply returns whether the input method handled the key.
// A key may be unhandled when the client's capabilities are not set.
func ReadProcessKeyEventReply(m *Message) (bool, error) {
	if err := checkReply(m); err != nil {
		return false, err
	}
	return m.Decoder().DecodeBool()
}

func (ic InputContext) SetCapabilities(caps Capabilities) (*Message, error) {
	return ic.call("SetCapabilities", uint32(caps))
}

// SetCursorLocation builds a call placing the candidate window. x and y are
// in screen pixels; w and h may be zero.
func (ic InputContext) SetCursorLocation(x, y, w, h int32) (*Message, error) {
	return ic.call("SetCursorLocation", x, y, w, h)
}

// SetSurroundingText builds a call telling the input method about the text
// around the cursor. cursor and anchor are in characters.
func (ic InputContext) SetSurroundingText(t Text, cursor, anchor uint32) (*Message, error) {
	return ic.call("SetSurroundingText", t, cursor, anchor)
}

func (ic InputContext) FocusIn() (*Message, error) {
	return ic.call("FocusIn")
}

func (ic InputContext) FocusOut() (*Message, error) {
	return ic.call("FocusOut")
}

func (ic InputContext) Reset() (*Message, error) {
	return ic.call("Reset")
}

// MatchRule returns the bus match rule selecting the signal member from this
// input context. An empty member matches all of its signals.
func (ic InputContext) MatchRule(member string) string {
	rule := fmt.Sprintf("type='signal',interface='%s',path='%s'", InputContextInterface, ic.Path)
	if member != "" {
		rule += fmt.Sprintf(",member='%s'", member)
	}
	return rule
}
