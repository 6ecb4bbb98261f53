// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package main

import (
	"go.e43.eu/ibus"
)

// signalRecord is the printed form of a signal
type signalRecord struct {
	Serial       uint32            `json:"serial" yaml:"serial" cbor:"serial"`
	Sender       string            `json:"sender,omitempty" yaml:"sender,omitempty" cbor:"sender,omitempty"`
	Path         string            `json:"path" yaml:"path" cbor:"path"`
	Signal       string            `json:"signal" yaml:"signal" cbor:"signal"`
	Text         *string           `json:"text,omitempty" yaml:"text,omitempty" cbor:"text,omitempty"`
	Width        *int              `json:"width,omitempty" yaml:"width,omitempty" cbor:"width,omitempty"`
	Attributes   []attributeRecord `json:"attributes,omitempty" yaml:"attributes,omitempty" cbor:"attributes,omitempty"`
	CursorPos    *uint32           `json:"cursor_pos,omitempty" yaml:"cursor_pos,omitempty" cbor:"cursor_pos,omitempty"`
	CursorColumn *int              `json:"cursor_column,omitempty" yaml:"cursor_column,omitempty" cbor:"cursor_column,omitempty"`
	Visible      *bool             `json:"visible,omitempty" yaml:"visible,omitempty" cbor:"visible,omitempty"`
}

type attributeRecord struct {
	Type   string `json:"type" yaml:"type" cbor:"type"`
	Value  string `json:"value" yaml:"value" cbor:"value"`
	Start  uint32 `json:"start" yaml:"start" cbor:"start"`
	End    uint32 `json:"end" yaml:"end" cbor:"end"`
	Covers string `json:"covers" yaml:"covers" cbor:"covers"`
}

func newSignalRecord(m *ibus.Message, s ibus.Signal) signalRecord {
	r := signalRecord{
		Serial: m.Serial,
		Sender: m.Sender,
		Path:   string(m.Path),
		Signal: s.SignalName(),
	}

	switch s := s.(type) {
	case ibus.CommitTextSignal:
		r.setText(s.Text)
	case ibus.UpdatePreeditTextSignal:
		r.setText(s.Text)
		col := s.CursorColumn()
		r.CursorPos = &s.CursorPos
		r.CursorColumn = &col
		r.Visible = &s.Visible
	}
	return r
}

func (r *signalRecord) setText(t ibus.Text) {
	str, width := t.String(), t.Width()
	r.Text = &str
	r.Width = &width

	for _, a := range t.Attributes() {
		var value string
		switch k := a.Kind.(type) {
		case ibus.Underline:
			value = k.Kind.String()
		case ibus.Foreground:
			value = k.Color.String()
		case ibus.Background:
			value = k.Color.String()
		}

		r.Attributes = append(r.Attributes, attributeRecord{
			Type:   a.Kind.Type().String(),
			Value:  value,
			Start:  a.StartIndex,
			End:    a.EndIndex,
			Covers: t.Slice(a),
		})
	}
}
