// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"go.e43.eu/ibus"
)

const contextPath ibus.ObjectPath = "/org/freedesktop/IBus/InputContext_3"

// capture builds a stream of messages. The serials count up from 1.
func capture(t *testing.T, msgs ...*ibus.Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	for i, m := range msgs {
		m.Serial = uint32(i + 1)
		_, err := m.WriteTo(&buf)
		require.NoError(t, err)
	}
	return buf.Bytes()
}

func signal(t *testing.T, s ibus.Signal) *ibus.Message {
	t.Helper()
	m, err := ibus.NewSignal(contextPath, ibus.InputContextInterface, s)
	require.NoError(t, err)
	m.Sender = ":1.9"
	return m
}

// badCommit is a CommitText whose argument is not a variant
func badCommit(t *testing.T) *ibus.Message {
	t.Helper()
	sig, body, err := ibus.Marshal("x")
	require.NoError(t, err)
	return &ibus.Message{
		Type:      ibus.TypeSignal,
		Path:      contextPath,
		Interface: ibus.InputContextInterface,
		Member:    "CommitText",
		Signature: sig,
		Body:      body,
	}
}

func sampleCapture(t *testing.T) []byte {
	other, err := ibus.NewMethodCall(ibus.BusName, ibus.BusPath, ibus.BusInterface, "Ping")
	require.NoError(t, err)

	return capture(t,
		other,
		signal(t, ibus.UpdatePreeditTextSignal{
			Text:      ibus.NewText("ｍ", ibus.NewUnderline(ibus.UnderlineSingle, 0, 1)),
			CursorPos: 1,
			Visible:   true,
		}),
		signal(t, ibus.CommitTextSignal{Text: ibus.NewText("ム")}),
	)
}

func runDecode(t *testing.T, stdin []byte, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, bytes.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestDecodeJSON(t *testing.T) {
	out, _, err := runDecode(t, sampleCapture(t), "--format", "json")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var preedit map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &preedit))
	assert.Equal(t, map[string]interface{}{
		"serial": 2.0,
		"sender": ":1.9",
		"path":   string(contextPath),
		"signal": "UpdatePreeditText",
		"text":   "ｍ",
		"width":  2.0,
		"attributes": []interface{}{
			map[string]interface{}{
				"type":   "underline",
				"value":  "single",
				"start":  0.0,
				"end":    1.0,
				"covers": "ｍ",
			},
		},
		"cursor_pos":    1.0,
		"cursor_column": 2.0,
		"visible":       true,
	}, preedit)

	var commit map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &commit))
	assert.Equal(t, "CommitText", commit["signal"])
	assert.Equal(t, "ム", commit["text"])
	assert.NotContains(t, commit, "attributes")
	assert.NotContains(t, commit, "cursor_pos")
}

func TestDecodeYAML(t *testing.T) {
	out, _, err := runDecode(t, sampleCapture(t))
	require.NoError(t, err)

	dec := yaml.NewDecoder(strings.NewReader(out))
	var records []signalRecord
	for {
		var r struct {
			Signal string `yaml:"signal"`
			Text   string `yaml:"text"`
		}
		if err := dec.Decode(&r); err != nil {
			break
		}
		records = append(records, signalRecord{Signal: r.Signal, Text: &r.Text})
	}
	require.Len(t, records, 2)
	assert.Equal(t, "UpdatePreeditText", records[0].Signal)
	assert.Equal(t, "ム", *records[1].Text)
}

func TestDecodeCBOR(t *testing.T) {
	out, _, err := runDecode(t, sampleCapture(t), "-f", "cbor")
	require.NoError(t, err)

	dec := cbor.NewDecoder(strings.NewReader(out))
	var first, second signalRecord
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))

	assert.Equal(t, "UpdatePreeditText", first.Signal)
	require.NotNil(t, first.CursorColumn)
	assert.Equal(t, 2, *first.CursorColumn)
	assert.Equal(t, []attributeRecord{{Type: "underline", Value: "single", Start: 0, End: 1, Covers: "ｍ"}}, first.Attributes)
	assert.Equal(t, uint32(3), second.Serial)
}

func TestDecodeHex(t *testing.T) {
	raw := hex.EncodeToString(capture(t, signal(t, ibus.CommitTextSignal{Text: ibus.NewText("abc")})))

	// Split across lines, as from a dump
	var spaced strings.Builder
	for i := 0; i < len(raw); i += 32 {
		end := i + 32
		if end > len(raw) {
			end = len(raw)
		}
		spaced.WriteString(raw[i:end])
		spaced.WriteString("\n")
	}

	out, _, err := runDecode(t, []byte(spaced.String()), "--hex", "-f", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"text":"abc"`)

	_, _, err = runDecode(t, []byte("zz"), "--hex")
	assert.Error(t, err)
}

func TestDecodeUndecodable(t *testing.T) {
	stream := capture(t,
		badCommit(t),
		signal(t, ibus.CommitTextSignal{Text: ibus.NewText("ok")}),
	)

	out, logs, err := runDecode(t, stream, "-f", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"text":"ok"`)
	assert.Contains(t, logs, "undecodable signal")

	_, _, err = runDecode(t, stream, "-f", "json", "--strict")
	assert.ErrorIs(t, err, ibus.ErrTypeMismatch)
}

func TestDecodeTruncated(t *testing.T) {
	stream := sampleCapture(t)
	_, _, err := runDecode(t, stream[:len(stream)-3], "-f", "json")
	assert.Error(t, err)
}

func TestDecodeFlags(t *testing.T) {
	_, _, err := runDecode(t, nil, "--format", "xml")
	assert.EqualError(t, err, "unknown format 'xml'")

	_, _, err = runDecode(t, nil, "--log-level", "loud")
	assert.Error(t, err)

	_, _, err = runDecode(t, nil, "extra")
	assert.EqualError(t, err, "unexpected argument: extra")

	_, stderr, err := runDecode(t, nil, "--help")
	assert.NoError(t, err)
	assert.Contains(t, stderr, "--format")

	out, _, err := runDecode(t, nil, "-f", "json")
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestDebugLogsSkippedMessages(t *testing.T) {
	_, logs, err := runDecode(t, sampleCapture(t), "--log-level", "debug", "-f", "json")
	require.NoError(t, err)
	assert.Contains(t, logs, "skipping message")
}
