// SPDX-License-Identifier: GPL-3.0-or-later

package session

import "context"

// readResult is one message, end-of-session, or failure notification
// offered to a session's read-operation mailbox.
type readResult struct {
	message any
	closed  bool
	err     error
}

// readMailbox is a bounded, drop-oldest mailbox bridging the tail
// filter's per-event offers ([iochain.Session.OfferReadFuture] and
// friends) to a synchronous [*Session.Read] caller, for sessions
// configured for read-operation polling (spec §4.4, §6).
//
// Bounding the mailbox, rather than queuing without limit, keeps a
// session that nobody is reading from from accumulating unbounded
// memory; once full, the oldest unread notification is discarded to
// make room for the newest.
type readMailbox struct {
	ch chan readResult
}

func newReadMailbox(capacity int) *readMailbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &readMailbox{ch: make(chan readResult, capacity)}
}

func (m *readMailbox) offer(r readResult) {
	select {
	case m.ch <- r:
		return
	default:
	}
	select {
	case <-m.ch:
	default:
	}
	select {
	case m.ch <- r:
	default:
	}
}

// read blocks until a message, close, or failure notification is
// available, or ctx is done.
func (m *readMailbox) read(ctx context.Context) (message any, closed bool, err error) {
	select {
	case r := <-m.ch:
		return r.message, r.closed, r.err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
