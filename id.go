// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSessionID returns a UUIDv7 identifying a session.
//
// Session IDs are used as name-index-independent identifiers for
// correlating log records and attributes across a session's lifetime;
// they have no bearing on the chain's own name-based entry index.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSessionID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
