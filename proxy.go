// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

import "fmt"

// successorProxy is the concrete [NextFilter] bound to one [Entry].
//
// It holds only its owning entry; every Fire* method re-reads
// entry.next/entry.prev at call time before dispatching, which is what
// makes traversal observe structural changes made earlier in the same
// dispatch (spec §3 invariant 5, §8 property 4).
type successorProxy struct {
	entry *Entry
}

var _ NextFilter = &successorProxy{}

func (p *successorProxy) FireSessionCreated(session Session) {
	if n := p.entry.next; n != nil {
		p.entry.chain.invokeSessionCreated(n, session)
	}
}

func (p *successorProxy) FireSessionOpened(session Session) {
	if n := p.entry.next; n != nil {
		p.entry.chain.invokeSessionOpened(n, session)
	}
}

func (p *successorProxy) FireSessionClosed(session Session) {
	if n := p.entry.next; n != nil {
		p.entry.chain.invokeSessionClosed(n, session)
	}
}

func (p *successorProxy) FireSessionIdle(session Session, status IdleStatus) {
	if n := p.entry.next; n != nil {
		p.entry.chain.invokeSessionIdle(n, session, status)
	}
}

func (p *successorProxy) FireMessageReceived(session Session, message any) {
	if n := p.entry.next; n != nil {
		p.entry.chain.invokeMessageReceived(n, session, message)
	}
}

func (p *successorProxy) FireMessageSent(session Session, req *WriteRequest) {
	if n := p.entry.next; n != nil {
		p.entry.chain.invokeMessageSent(n, session, req)
	}
}

func (p *successorProxy) FireExceptionCaught(session Session, cause error) {
	if n := p.entry.next; n != nil {
		p.entry.chain.invokeExceptionCaught(n, session, cause)
	}
}

func (p *successorProxy) FireFilterWrite(session Session, req *WriteRequest) {
	if prev := p.entry.prev; prev != nil {
		p.entry.chain.invokeFilterWrite(prev, session, req)
	}
}

func (p *successorProxy) FireFilterClose(session Session) {
	if prev := p.entry.prev; prev != nil {
		p.entry.chain.invokeFilterClose(prev, session)
	}
}

// safeCall runs fn, converting any panic into an error so that a filter
// which panics is treated exactly like one that returns an error (spec
// §7: "filter pipelines never silently drop traversal due to a thrown
// exception").
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("iochain: filter panicked: %v", r)
		}
	}()
	return fn()
}
