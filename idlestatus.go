// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

// IdleStatus identifies which side of a session has gone idle.
type IdleStatus int

const (
	// ReaderIdle means no message has been received for the configured interval.
	ReaderIdle IdleStatus = iota
	// WriterIdle means no message has been written for the configured interval.
	WriterIdle
	// BothIdle means both the reader and writer sides are idle.
	BothIdle
)

// String implements [fmt.Stringer].
func (s IdleStatus) String() string {
	switch s {
	case ReaderIdle:
		return "readerIdle"
	case WriterIdle:
		return "writerIdle"
	case BothIdle:
		return "bothIdle"
	default:
		return "unknown"
	}
}
