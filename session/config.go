// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"net"
	"time"

	"github.com/bassosimone/iochain"
)

// Config holds the reference session implementation's own configuration,
// layered on top of [iochain.Config] for the fields the chain itself
// needs (logger, error classifier, clock).
type Config struct {
	// Logger is the [iochain.SLogger] to use for structured logging of
	// dial, connection I/O, and chain events.
	//
	// Set by [NewConfig] to [iochain.DefaultSLogger].
	Logger iochain.SLogger

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [iochain.DefaultErrClassifier].
	ErrClassifier iochain.ErrClassifier

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// Dialer is the [Dialer] used to establish outbound connections.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// UseReadOperation enables read-operation polling: received messages,
	// end-of-session, and exceptions are also offered to a bounded mailbox
	// consumable via [*Session.Read], in addition to being dispatched to
	// the [iochain.Handler] (spec §4.4, §6).
	//
	// Set by [NewConfig] to false.
	UseReadOperation bool

	// ReadMailboxCapacity bounds the read-operation mailbox.
	//
	// Set by [NewConfig] to 16.
	ReadMailboxCapacity int
}

// NewConfig returns a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Logger:              iochain.DefaultSLogger(),
		ErrClassifier:       iochain.DefaultErrClassifier,
		TimeNow:             time.Now,
		Dialer:              &net.Dialer{},
		UseReadOperation:    false,
		ReadMailboxCapacity: 16,
	}
}

// iochainConfig projects cfg onto the subset of fields [iochain.Chain]
// itself needs.
func (cfg *Config) iochainConfig() *iochain.Config {
	return &iochain.Config{
		Logger:        cfg.Logger,
		ErrClassifier: cfg.ErrClassifier,
		TimeNow:       cfg.TimeNow,
	}
}
