// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

// Package address finds the address of the IBus daemon's private bus, and
// parses D-Bus server addresses
package address

import (
	"bufio"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"

	"go.e43.eu/ibus/internal/errors"
)

// Files which may hold the machine ID, in order of preference
var machineIDFiles = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

const addressPrefix = "IBUS_ADDRESS="

// Env looks up an environment variable, as os.LookupEnv
type Env func(key string) (string, bool)

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errors.ErrAddressNotFound, fmt.Sprintf(format, args...))
}

// rel converts an absolute path to one usable with an fs.FS rooted at /
func rel(p string) string {
	return strings.TrimPrefix(path.Clean(p), "/")
}

// Lookup returns the IBus address. IBUS_ADDRESS takes precedence; otherwise
// the address is read from the file the daemon writes for this machine and
// display, under $XDG_CONFIG_HOME/ibus/bus. Absolute paths are resolved
// within fsys.
func Lookup(env Env, fsys fs.FS) (string, error) {
	if addr, ok := env("IBUS_ADDRESS"); ok && addr != "" {
		return addr, nil
	}

	file, err := BusFile(env, fsys)
	if err != nil {
		return "", err
	}

	f, err := fsys.Open(rel(file))
	if err != nil {
		return "", notFound("%v", err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimLeft(s.Text(), " \t")
		if addr := strings.TrimPrefix(line, addressPrefix); addr != line {
			return addr, nil
		}
	}
	if err := s.Err(); err != nil {
		return "", fmt.Errorf("ibus: reading %s: %w", file, err)
	}
	return "", notFound("no %s line in %s", addressPrefix, file)
}

// BusFile returns the path of the file holding the IBus address
func BusFile(env Env, fsys fs.FS) (string, error) {
	display, ok := env("DISPLAY")
	if !ok || display == "" {
		display = ":0.0"
	}

	host, num, ok := strings.Cut(display, ":")
	if !ok {
		return "", notFound("no display number in DISPLAY '%s'", display)
	}
	num, _, _ = strings.Cut(num, ".")
	if host == "" {
		host = "unix"
	}

	var config string
	if xdg, ok := env("XDG_CONFIG_HOME"); ok && xdg != "" {
		config = xdg
	} else if home, ok := env("HOME"); ok && home != "" {
		config = path.Join(home, ".config")
	} else {
		return "", notFound("neither XDG_CONFIG_HOME nor HOME are set")
	}

	id, err := MachineID(fsys)
	if err != nil {
		return "", err
	}

	return path.Join(config, "ibus", "bus", fmt.Sprintf("%s-%s-%s", id, host, num)), nil
}

// MachineID reads the D-Bus machine ID
func MachineID(fsys fs.FS) (string, error) {
	for _, name := range machineIDFiles {
		b, err := fs.ReadFile(fsys, rel(name))
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	}
	return "", notFound("no machine ID")
}

// Endpoint is one of the alternatives in a D-Bus server address
type Endpoint struct {
	Transport string
	Params    map[string]string
}

func (e Endpoint) String() string {
	keys := make([]string, 0, len(e.Params))
	for k := range e.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(e.Transport)
	b.WriteByte(':')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(escape(e.Params[k]))
	}
	return b.String()
}

// Parse parses a D-Bus server address, a ';' separated list of
// transport:key=value,... endpoints
func Parse(addr string) ([]Endpoint, error) {
	var out []Endpoint

	for _, part := range strings.Split(addr, ";") {
		if part == "" {
			continue
		}

		transport, params, ok := strings.Cut(part, ":")
		if !ok || transport == "" {
			return nil, errors.Malformed("address", "no transport in '%s'", part)
		}

		ep := Endpoint{Transport: transport, Params: make(map[string]string)}
		for _, kv := range strings.Split(params, ",") {
			if kv == "" {
				continue
			}

			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, errors.Malformed("address", "bad parameter '%s'", kv)
			}
			if _, dup := ep.Params[k]; dup {
				return nil, errors.Malformed("address", "duplicate parameter '%s'", k)
			}

			uv, err := url.PathUnescape(v)
			if err != nil {
				return nil, errors.Malformed("address", "bad escape in '%s'", kv)
			}
			ep.Params[k] = uv
		}
		out = append(out, ep)
	}

	if len(out) == 0 {
		return nil, errors.Malformed("address", "empty address")
	}
	return out, nil
}

// escape applies D-Bus address escaping: bytes outside a small optionally
// escaped set are written as %xx
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			strings.IndexByte("-_/.\\*", c) >= 0:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02x", c)
		}
	}
	return b.String()
}
