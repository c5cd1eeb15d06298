// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

import "time"

// Config holds common configuration for chain operations.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Logger is the [SLogger] to use for structured logging of chain
	// lifecycle and dispatch events.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Logger:        DefaultSLogger(),
		ErrClassifier: DefaultErrClassifier,
		TimeNow:       time.Now,
	}
}
