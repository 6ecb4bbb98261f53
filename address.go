// Copyright 2020 Erin Shepherd
// SPDX-License-Identifier: ISC

package ibus

import (
	"os"

	"go.e43.eu/ibus/internal/address"
)

// Endpoint is one alternative of a D-Bus server address, such as
// unix:path=/tmp/dbus-1234,guid=...
type Endpoint = address.Endpoint

// Address returns the address of the IBus daemon's bus, from the environment
// or from the address file the daemon writes. Fails with ErrAddressNotFound.
func Address() (string, error) {
	return address.Lookup(os.LookupEnv, os.DirFS("/"))
}

// ParseAddress splits a D-Bus server address into its endpoints
func ParseAddress(addr string) ([]Endpoint, error) {
	return address.Parse(addr)
}
