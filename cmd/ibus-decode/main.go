// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

// ibus-decode prints the IBus input context signals found in a capture of raw
// D-Bus messages. Messages which are not input context signals are skipped.
package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"go.e43.eu/ibus"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	input    string
	hex      bool
	format   string
	strict   bool
	logLevel string
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("ibus-decode", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.input, "input", "i", "-", "capture to read (- for stdin)")
	flagSet.BoolVar(&opts.hex, "hex", false, "input is hex encoded (whitespace is ignored)")
	flagSet.StringVarP(&opts.format, "format", "f", "yaml", "output format: yaml, json or cbor")
	flagSet.BoolVar(&opts.strict, "strict", false, "stop at the first undecodable signal, and reject lists with malformed attributes")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	out, flush, err := newWriter(opts.format, stdout)
	if err != nil {
		return err
	}

	in := stdin
	if opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	if opts.hex {
		if in, err = decodeHex(in); err != nil {
			return err
		}
	}

	codec := &ibus.Codec{Logger: logger}
	if opts.strict {
		codec.Policy = ibus.RejectMalformed
	}

	d := &dumper{
		codec:  codec,
		logger: logger,
		strict: opts.strict,
		out:    out,
	}
	if err := d.dump(bufio.NewReader(in)); err != nil {
		return err
	}
	return flush()
}

func decodeHex(r io.Reader) (io.Reader, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	s := strings.Join(strings.Fields(string(b)), "")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("--hex: %w", err)
	}
	return bytes.NewReader(raw), nil
}

// writer emits one record
type writer func(v interface{}) error

// newWriter returns a writer for format, and a function to flush it once done
func newWriter(format string, w io.Writer) (writer, func() error, error) {
	nop := func() error { return nil }

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return enc.Encode, enc.Close, nil
	case "json":
		return json.NewEncoder(w).Encode, nop, nil
	case "cbor":
		mode, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return nil, nil, err
		}
		return mode.NewEncoder(w).Encode, nop, nil
	default:
		return nil, nil, fmt.Errorf("unknown format '%s'", format)
	}
}

type dumper struct {
	codec  *ibus.Codec
	logger *slog.Logger
	strict bool
	out    writer
}

func (d *dumper) dump(r io.Reader) error {
	for {
		m, err := ibus.ReadMessage(r)
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			// Framing is lost; nothing after this can be trusted
			return fmt.Errorf("reading message: %w", err)
		}

		s, err := d.codec.DecodeSignal(m)
		switch {
		case stderrors.Is(err, ibus.ErrUnknownSignal):
			d.logger.Debug("skipping message", "message", m.String())
			continue
		case err != nil && d.strict:
			return fmt.Errorf("message %d: %w", m.Serial, err)
		case err != nil:
			d.logger.Warn("undecodable signal", "message", m.String(), "error", err)
			continue
		}

		if err := d.out(newSignalRecord(m, s)); err != nil {
			return err
		}
	}
}
