// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	"fmt"

	"github.com/mattn/go-runewidth"
	"go.e43.eu/ibus/internal/errors"
)

// Signal is a decoded input context signal
type Signal interface {
	// SignalName returns the D-Bus member name of the signal
	SignalName() string

	// Args returns the signal's arguments, for encoding
	Args() []interface{}
}

// CommitTextSignal asks the client to insert text at the cursor
type CommitTextSignal struct {
	Text Text
}

func (CommitTextSignal) SignalName() string { return "CommitText" }

func (s CommitTextSignal) Args() []interface{} {
	return []interface{}{s.Text}
}

// UpdatePreeditTextSignal replaces the in-progress composition. CursorPos is
// in characters.
type UpdatePreeditTextSignal struct {
	Text      Text
	CursorPos uint32
	Visible   bool
}

func (UpdatePreeditTextSignal) SignalName() string { return "UpdatePreeditText" }

func (s UpdatePreeditTextSignal) Args() []interface{} {
	return []interface{}{s.Text, s.CursorPos, s.Visible}
}

// CursorColumn returns the terminal column the cursor sits at
func (s UpdatePreeditTextSignal) CursorColumn() int {
	return runewidth.StringWidth(runeSlice(s.Text.str, 0, int(s.CursorPos)))
}

type ShowPreeditTextSignal struct{}

func (ShowPreeditTextSignal) SignalName() string  { return "ShowPreeditText" }
func (ShowPreeditTextSignal) Args() []interface{} { return nil }

type HidePreeditTextSignal struct{}

func (HidePreeditTextSignal) SignalName() string  { return "HidePreeditText" }
func (HidePreeditTextSignal) Args() []interface{} { return nil }

// readText reads a text argument. A variant of the wrong shape is malformed;
// any other type is a mismatch.
func (c *Codec) readText(d Decoder) (Text, error) {
	v, err := d.DecodeVariant()
	if err != nil {
		return Text{}, err
	}
	return c.DecodeText(v)
}

// ReadCommitText decodes the arguments of a CommitText signal
func (c *Codec) ReadCommitText(d Decoder) (CommitTextSignal, error) {
	t, err := c.readText(d)
	if err != nil {
		return CommitTextSignal{}, errors.WithFieldError(err, "CommitText", "text")
	}
	return CommitTextSignal{t}, nil
}

// ReadUpdatePreeditText decodes the arguments of an UpdatePreeditText signal
func (c *Codec) ReadUpdatePreeditText(d Decoder) (UpdatePreeditTextSignal, error) {
	var (
		s   UpdatePreeditTextSignal
		err error
	)

	if s.Text, err = c.readText(d); err != nil {
		return UpdatePreeditTextSignal{}, errors.WithFieldError(err, "UpdatePreeditText", "text")
	}
	if s.CursorPos, err = d.DecodeUint32(); err != nil {
		return UpdatePreeditTextSignal{}, errors.WithFieldError(err, "UpdatePreeditText", "cursor_pos")
	}
	if s.Visible, err = d.DecodeBool(); err != nil {
		return UpdatePreeditTextSignal{}, errors.WithFieldError(err, "UpdatePreeditText", "visible")
	}
	return s, nil
}

// DecodeSignal decodes an input context signal message. Messages which are not
// signals we know about return an error satisfying errors.Is(err,
// ErrUnknownSignal).
func (c *Codec) DecodeSignal(m *Message) (Signal, error) {
	if m.Type != TypeSignal || m.Interface != InputContextInterface {
		return nil, fmt.Errorf("%w: %s %s.%s", errors.ErrUnknownSignal, m.Type, m.Interface, m.Member)
	}

	var (
		s   Signal
		err error
	)

	d := m.Decoder()
	switch m.Member {
	case "CommitText":
		s, err = c.ReadCommitText(d)
	case "UpdatePreeditText":
		s, err = c.ReadUpdatePreeditText(d)
	case "ShowPreeditText":
		return ShowPreeditTextSignal{}, nil
	case "HidePreeditText":
		return HidePreeditTextSignal{}, nil
	default:
		return nil, fmt.Errorf("%w: %s.%s", errors.ErrUnknownSignal, m.Interface, m.Member)
	}

	if err != nil {
		return nil, err
	}
	return s, nil
}
