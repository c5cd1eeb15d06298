// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

// NextFilter is the handle a [Filter] uses to resume traversal: the
// "successor proxy" of spec §4.5. Each [Entry] owns exactly one, and
// hands it to its filter's methods as the next argument.
//
// A NextFilter resolves the entry to dispatch to lazily, at call time,
// by reading its owning entry's current prev/next pointers — not at
// proxy-construction time — so a filter that mutates the chain (add,
// remove, replace) during its own callback is safely observed by the
// remainder of the same dispatch (spec §3 invariant 5, §8 property 4).
//
// Forward methods (the seven inbound events) dispatch to the owning
// entry's next; the two outbound methods dispatch to its prev. This is
// the dual relationship described in spec §4.5.
type NextFilter interface {
	FireSessionCreated(session Session)
	FireSessionOpened(session Session)
	FireSessionClosed(session Session)
	FireSessionIdle(session Session, status IdleStatus)
	FireMessageReceived(session Session, message any)
	FireMessageSent(session Session, req *WriteRequest)
	FireExceptionCaught(session Session, cause error)
	FireFilterWrite(session Session, req *WriteRequest)
	FireFilterClose(session Session)
}

// Filter is one addressable stage of a [Chain].
//
// Each event method receives the [NextFilter] handle for its own entry so
// it can resume traversal (forwarding, transforming, or swallowing the
// event as it sees fit). Lifecycle hooks are invoked only around
// structural add/remove, never around [Chain.Replace] (spec §4.1).
//
// Implementations should embed [FilterAdapter] and override only the
// methods they care about; unoverridden methods then default to
// forwarding the event unchanged, per spec §6's "default-adapter
// semantics".
type Filter interface {
	SessionCreated(next NextFilter, session Session) error
	SessionOpened(next NextFilter, session Session) error
	SessionClosed(next NextFilter, session Session) error
	SessionIdle(next NextFilter, session Session, status IdleStatus) error
	MessageReceived(next NextFilter, session Session, message any) error
	MessageSent(next NextFilter, session Session, req *WriteRequest) error
	ExceptionCaught(next NextFilter, session Session, cause error) error
	FilterWrite(next NextFilter, session Session, req *WriteRequest) error
	FilterClose(next NextFilter, session Session) error

	OnPreAdd(chain *Chain, name string, next NextFilter) error
	OnPostAdd(chain *Chain, name string, next NextFilter) error
	OnPreRemove(chain *Chain, name string, next NextFilter) error
	OnPostRemove(chain *Chain, name string, next NextFilter) error

	// Type returns a stable tag identifying this filter's kind, used by
	// the by-type lookup/remove/replace operations (spec §9: "maps to a
	// tagged variant discriminator"). Return "" if the filter has no
	// meaningful type tag.
	Type() string
}

// FilterAdapter provides default-adapter behavior for every [Filter]
// method: every event is forwarded unchanged via [NextFilter], and every
// lifecycle hook is a no-op. Embed it in a concrete filter and override
// only what that filter actually needs to handle.
type FilterAdapter struct{}

var _ Filter = FilterAdapter{}

func (FilterAdapter) SessionCreated(next NextFilter, session Session) error {
	next.FireSessionCreated(session)
	return nil
}

func (FilterAdapter) SessionOpened(next NextFilter, session Session) error {
	next.FireSessionOpened(session)
	return nil
}

func (FilterAdapter) SessionClosed(next NextFilter, session Session) error {
	next.FireSessionClosed(session)
	return nil
}

func (FilterAdapter) SessionIdle(next NextFilter, session Session, status IdleStatus) error {
	next.FireSessionIdle(session, status)
	return nil
}

func (FilterAdapter) MessageReceived(next NextFilter, session Session, message any) error {
	next.FireMessageReceived(session, message)
	return nil
}

func (FilterAdapter) MessageSent(next NextFilter, session Session, req *WriteRequest) error {
	next.FireMessageSent(session, req)
	return nil
}

func (FilterAdapter) ExceptionCaught(next NextFilter, session Session, cause error) error {
	next.FireExceptionCaught(session, cause)
	return nil
}

func (FilterAdapter) FilterWrite(next NextFilter, session Session, req *WriteRequest) error {
	next.FireFilterWrite(session, req)
	return nil
}

func (FilterAdapter) FilterClose(next NextFilter, session Session) error {
	next.FireFilterClose(session)
	return nil
}

func (FilterAdapter) OnPreAdd(chain *Chain, name string, next NextFilter) error    { return nil }
func (FilterAdapter) OnPostAdd(chain *Chain, name string, next NextFilter) error   { return nil }
func (FilterAdapter) OnPreRemove(chain *Chain, name string, next NextFilter) error { return nil }
func (FilterAdapter) OnPostRemove(chain *Chain, name string, next NextFilter) error {
	return nil
}

// Type implements [Filter]. FilterAdapter itself has no meaningful tag;
// embedders that want by-type lookup to find them should override it.
func (FilterAdapter) Type() string { return "" }
