// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Chain is a bidirectional pipeline of named [Filter] entries bracketed by
// fixed head and tail sentinels (spec §3, §4.1). Inbound events enter at
// head and travel toward tail; outbound events enter at tail and travel
// toward head.
//
// All mutation methods acquire the chain's own intrinsic lock, a
// reentrant mutex: a lifecycle hook invoked while the lock is held may
// call back into another mutation method on the same goroutine without
// deadlocking (spec §5).
type Chain struct {
	mu            *reentrantMutex
	session       Session
	logger        SLogger
	errClassifier ErrClassifier
	timeNow       func() time.Time

	head *Entry
	tail *Entry

	index map[string]*Entry
}

// New returns an empty [*Chain] bound to session, with only the head and
// tail sentinels installed. A nil cfg is equivalent to [NewConfig]'s
// defaults.
func New(session Session, cfg *Config) *Chain {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := &Chain{
		mu:            newReentrantMutex(),
		session:       session,
		logger:        cfg.Logger,
		errClassifier: cfg.ErrClassifier,
		timeNow:       cfg.TimeNow,
		index:         make(map[string]*Entry),
	}
	c.head = newEntry(c, "", headFilter{})
	c.tail = newEntry(c, "", &tailFilter{chain: c})
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// NewFrom returns a new [*Chain] bound to session, structurally cloned
// from source: every entry of source is appended in order, under the new
// chain's own head/tail, without invoking any lifecycle hook (spec §9:
// "copy constructor — structural clone, no lifecycle replay"). Filters
// are shared, not duplicated; see DESIGN.md for the open question this
// resolves.
func NewFrom(session Session, cfg *Config, source *Chain) *Chain {
	c := New(session, cfg)
	for _, e := range source.GetAll() {
		c.mu.Lock()
		c.cloneAppend(e.name, e.filter)
		c.mu.Unlock()
	}
	return c
}

func (c *Chain) now() time.Time {
	return c.timeNow()
}

// Session returns the session this chain is bound to.
func (c *Chain) Session() Session {
	return c.session
}

// Head returns the chain's head sentinel entry.
func (c *Chain) Head() *Entry {
	return c.head
}

// Tail returns the chain's tail sentinel entry.
func (c *Chain) Tail() *Entry {
	return c.tail
}

// --- registration protocol (spec §4.1) ---------------------------------

// cloneAppend splices a new entry immediately before tail without running
// any lifecycle hook. Caller must hold the lock.
func (c *Chain) cloneAppend(name string, filter Filter) *Entry {
	prev := c.tail.prev
	e := newEntry(c, name, filter)
	e.prev = prev
	e.next = prev.next
	prev.next.prev = e
	prev.next = e
	c.index[name] = e
	return e
}

// register splices a new entry after prevEntry, running onPreAdd before
// the splice and onPostAdd after it. A failing onPostAdd rolls the splice
// back (spec §4.1, §7.2).
func (c *Chain) register(prevEntry *Entry, name string, filter Filter) (*Entry, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if filter == nil {
		return nil, ErrNilFilter
	}
	if _, exists := c.index[name]; exists {
		return nil, ErrDuplicateName
	}

	e := newEntry(c, name, filter)
	e.prev = prevEntry
	e.next = prevEntry.next

	if err := safeCall(func() error { return filter.OnPreAdd(c, name, e.proxy) }); err != nil {
		return nil, &LifecycleError{Phase: PhasePreAdd, Name: name, Filter: filter, Session: c.session, Cause: err}
	}

	prevEntry.next.prev = e
	prevEntry.next = e
	c.index[name] = e

	if err := safeCall(func() error { return filter.OnPostAdd(c, name, e.proxy) }); err != nil {
		c.unsplice(e)
		return nil, &LifecycleError{Phase: PhasePostAdd, Name: name, Filter: filter, Session: c.session, Cause: err}
	}

	c.logger.Info("filterChainAdd", slog.String("name", name), slog.String("type", filter.Type()))
	return e, nil
}

// unsplice removes e from the linked structure and the name index.
// Caller must hold the lock.
func (c *Chain) unsplice(e *Entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.index, e.name)
	e.prev = nil
	e.next = nil
}

// deregister runs onPreRemove, unsplices e, then runs onPostRemove (spec §4.1).
func (c *Chain) deregister(e *Entry) error {
	filter, name := e.filter, e.name

	if err := safeCall(func() error { return filter.OnPreRemove(c, name, e.proxy) }); err != nil {
		return &LifecycleError{Phase: PhasePreRemove, Name: name, Filter: filter, Session: c.session, Cause: err}
	}

	c.unsplice(e)

	if err := safeCall(func() error { return filter.OnPostRemove(c, name, e.proxy) }); err != nil {
		return &LifecycleError{Phase: PhasePostRemove, Name: name, Filter: filter, Session: c.session, Cause: err}
	}

	c.logger.Info("filterChainRemove", slog.String("name", name))
	return nil
}

// --- mutation API --------------------------------------------------------

// AddFirst registers filter as the new first entry, immediately after head.
func (c *Chain) AddFirst(name string, filter Filter) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(c.head, name, filter)
}

// AddLast registers filter as the new last entry, immediately before tail.
func (c *Chain) AddLast(name string, filter Filter) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(c.tail.prev, name, filter)
}

// AddBefore registers filter immediately before the entry named baseName.
func (c *Chain) AddBefore(baseName, name string, filter Filter) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	base, ok := c.index[baseName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBaseNameMissing, baseName)
	}
	return c.register(base.prev, name, filter)
}

// AddAfter registers filter immediately after the entry named baseName.
func (c *Chain) AddAfter(baseName, name string, filter Filter) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	base, ok := c.index[baseName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBaseNameMissing, baseName)
	}
	return c.register(base, name, filter)
}

// Remove deregisters the entry named name.
func (c *Chain) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.index[name]
	if !ok {
		return ErrNameNotFound
	}
	return c.deregister(e)
}

// RemoveFilter deregisters the entry whose filter is filter, by identity.
func (c *Chain) RemoveFilter(filter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.findLocked(func(e *Entry) bool { return e.filter == filter })
	if e == nil {
		return ErrFilterNotFound
	}
	return c.deregister(e)
}

// RemoveType deregisters the first entry (head to tail) whose filter's
// Type matches tag.
func (c *Chain) RemoveType(tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.findLocked(func(e *Entry) bool { return e.filter.Type() == tag })
	if e == nil {
		return ErrFilterNotFound
	}
	return c.deregister(e)
}

// Replace swaps the filter registered under name for newFilter, without
// invoking any lifecycle hook (spec §4.1: "replace never triggers the
// add/remove lifecycle").
func (c *Chain) Replace(name string, newFilter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.index[name]
	if !ok {
		return ErrNameNotFound
	}
	e.filter = newFilter
	return nil
}

// ReplaceFilter swaps oldFilter for newFilter, by identity.
func (c *Chain) ReplaceFilter(oldFilter, newFilter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.findLocked(func(e *Entry) bool { return e.filter == oldFilter })
	if e == nil {
		return ErrFilterNotFound
	}
	e.filter = newFilter
	return nil
}

// ReplaceType swaps the first entry (head to tail) whose filter's Type
// matches tag for newFilter.
func (c *Chain) ReplaceType(tag string, newFilter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.findLocked(func(e *Entry) bool { return e.filter.Type() == tag })
	if e == nil {
		return ErrFilterNotFound
	}
	e.filter = newFilter
	return nil
}

// Clear deregisters every user entry, head to tail. It is best-effort: a
// failure deregistering one entry does not prevent the rest from being
// attempted; the first error encountered, if any, is returned (spec
// §7.5).
func (c *Chain) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, e := range c.getAllLocked() {
		if c.index[e.name] != e {
			// Already removed, or replaced by name, as a side effect of an
			// earlier entry's own lifecycle hook in this same Clear.
			continue
		}
		if err := c.deregister(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// --- lookups --------------------------------------------------------------

// Get returns the filter registered under name.
func (c *Chain) Get(name string) (Filter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return e.filter, true
}

// GetEntry returns the entry registered under name.
func (c *Chain) GetEntry(name string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.index[name]
	return e, ok
}

// GetNextFilter returns the successor proxy bound to the entry registered
// under name, the handle a caller outside the dispatch loop would use to
// fire a one-off event starting just past that entry.
func (c *Chain) GetNextFilter(name string) (NextFilter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return e.proxy, true
}

// GetType returns the filter of the first entry (head to tail) whose
// Type matches tag.
func (c *Chain) GetType(tag string) (Filter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.findLocked(func(e *Entry) bool { return e.filter.Type() == tag })
	if e == nil {
		return nil, false
	}
	return e.filter, true
}

// Contains reports whether a filter is registered under name.
func (c *Chain) Contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[name]
	return ok
}

// ContainsFilter reports whether filter, by identity, is registered.
func (c *Chain) ContainsFilter(filter Filter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(func(e *Entry) bool { return e.filter == filter }) != nil
}

// ContainsType reports whether any registered filter's Type matches tag.
func (c *Chain) ContainsType(tag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(func(e *Entry) bool { return e.filter.Type() == tag }) != nil
}

// Find returns the first user entry (head to tail) for which predicate
// returns true, generalizing the by-name/by-filter/by-type lookups above
// to an arbitrary condition (spec's Design Notes: "filtering by type
// without reflection").
func (c *Chain) Find(predicate func(*Entry) bool) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(predicate)
}

func (c *Chain) findLocked(predicate func(*Entry) bool) *Entry {
	for e := c.head.next; e != c.tail; e = e.next {
		if predicate(e) {
			return e
		}
	}
	return nil
}

// GetAll returns a defensive-copy snapshot of the chain's user entries,
// head to tail.
func (c *Chain) GetAll() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getAllLocked()
}

func (c *Chain) getAllLocked() []*Entry {
	out := make([]*Entry, 0, len(c.index))
	for e := c.head.next; e != c.tail; e = e.next {
		out = append(out, e)
	}
	return out
}

// GetAllReversed returns a defensive-copy snapshot of the chain's user
// entries, tail to head.
func (c *Chain) GetAllReversed() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entry, 0, len(c.index))
	for e := c.tail.prev; e != c.head; e = e.prev {
		out = append(out, e)
	}
	return out
}

// String renders the chain as "head -> name1 -> name2 -> tail", for
// debugging and log output.
func (c *Chain) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := []string{"head"}
	for e := c.head.next; e != c.tail; e = e.next {
		parts = append(parts, e.name)
	}
	parts = append(parts, "tail")
	return strings.Join(parts, " -> ")
}

// --- dispatch entry points -------------------------------------------------
//
// These are the public Fire* methods a session/processor calls to kick
// off one traversal of the chain. Each applies the side effect spec §4.2's
// table associates with entering at head (or, for the two outbound
// events, at tail) exactly once, then starts per-entry dispatch.

func (c *Chain) FireSessionCreated(session Session) {
	c.invokeSessionCreated(c.head, session)
}

func (c *Chain) FireSessionOpened(session Session) {
	c.invokeSessionOpened(c.head, session)
}

func (c *Chain) FireSessionClosed(session Session) {
	if err := safeCall(func() error { session.CloseFuture().Complete(struct{}{}); return nil }); err != nil {
		c.FireExceptionCaught(session, err)
	}
	c.invokeSessionClosed(c.head, session)
}

func (c *Chain) FireSessionIdle(session Session, status IdleStatus) {
	session.IncreaseIdleCount(status, c.now())
	c.invokeSessionIdle(c.head, session, status)
}

func (c *Chain) FireMessageReceived(session Session, message any) {
	if buf, ok := message.([]byte); ok {
		session.IncreaseReadBytes(int64(len(buf)), c.now())
	}
	c.invokeMessageReceived(c.head, session, message)
}

func (c *Chain) FireMessageSent(session Session, req *WriteRequest) {
	if err := safeCall(func() error { req.Future.Complete(struct{}{}); return nil }); err != nil {
		c.FireExceptionCaught(session, err)
	}
	c.invokeMessageSent(c.head, session, req)
}

func (c *Chain) FireExceptionCaught(session Session, cause error) {
	c.invokeExceptionCaught(c.head, session, cause)
}

func (c *Chain) FireFilterWrite(session Session, req *WriteRequest) {
	c.invokeFilterWrite(c.tail, session, req)
}

func (c *Chain) FireFilterClose(session Session) {
	c.invokeFilterClose(c.tail, session)
}

// --- per-entry dispatch -----------------------------------------------
//
// Each invokeXxx calls the given entry's filter, logging the dispatch at
// debug level. A returned error (including a recovered panic) is, for
// every event but exceptionCaught, redirected into a fresh
// [Chain.FireExceptionCaught] traversal starting at head (spec §7.3).

func (c *Chain) debugDispatch(e *Entry, event string) {
	c.logger.Debug("filterChainDispatch",
		slog.String("event", event),
		slog.String("entry", e.name),
		slog.String("session", c.session.ID()))
}

func (c *Chain) invokeSessionCreated(e *Entry, session Session) {
	c.debugDispatch(e, "sessionCreated")
	if err := safeCall(func() error { return e.filter.SessionCreated(e.proxy, session) }); err != nil {
		c.FireExceptionCaught(session, err)
	}
}

func (c *Chain) invokeSessionOpened(e *Entry, session Session) {
	c.debugDispatch(e, "sessionOpened")
	if err := safeCall(func() error { return e.filter.SessionOpened(e.proxy, session) }); err != nil {
		c.FireExceptionCaught(session, err)
	}
}

func (c *Chain) invokeSessionClosed(e *Entry, session Session) {
	c.debugDispatch(e, "sessionClosed")
	if err := safeCall(func() error { return e.filter.SessionClosed(e.proxy, session) }); err != nil {
		c.FireExceptionCaught(session, err)
	}
}

func (c *Chain) invokeSessionIdle(e *Entry, session Session, status IdleStatus) {
	c.debugDispatch(e, "sessionIdle")
	if err := safeCall(func() error { return e.filter.SessionIdle(e.proxy, session, status) }); err != nil {
		c.FireExceptionCaught(session, err)
	}
}

func (c *Chain) invokeMessageReceived(e *Entry, session Session, message any) {
	c.debugDispatch(e, "messageReceived")
	if err := safeCall(func() error { return e.filter.MessageReceived(e.proxy, session, message) }); err != nil {
		c.FireExceptionCaught(session, err)
	}
}

func (c *Chain) invokeMessageSent(e *Entry, session Session, req *WriteRequest) {
	c.debugDispatch(e, "messageSent")
	if err := safeCall(func() error { return e.filter.MessageSent(e.proxy, session, req) }); err != nil {
		c.FireExceptionCaught(session, err)
	}
}

func (c *Chain) invokeFilterWrite(e *Entry, session Session, req *WriteRequest) {
	c.debugDispatch(e, "filterWrite")
	if err := safeCall(func() error { return e.filter.FilterWrite(e.proxy, session, req) }); err != nil {
		req.Future.Fail(err)
		c.FireExceptionCaught(session, err)
	}
}

func (c *Chain) invokeFilterClose(e *Entry, session Session) {
	c.debugDispatch(e, "filterClose")
	if err := safeCall(func() error { return e.filter.FilterClose(e.proxy, session) }); err != nil {
		c.FireExceptionCaught(session, err)
	}
}

// invokeExceptionCaught implements spec §4.2.1: if a connect future is
// still pending (the exception arrived before the first sessionCreated
// resolved it), the exception short-circuits the chain entirely — no
// filter sees it — closes the session, and fails the connect future
// directly. Otherwise it dispatches to e's filter like any other event,
// except that a further error from that filter is logged and swallowed
// rather than redirected, since redirecting again would recurse forever.
func (c *Chain) invokeExceptionCaught(e *Entry, session Session, cause error) {
	c.debugDispatch(e, "exceptionCaught")

	if v, ok := session.Attributes().Remove(SessionCreatedFutureKey); ok {
		c.logger.Info("filterChainConnectFailed",
			slog.String("session", session.ID()),
			slog.String("class", c.errClassifier.Classify(cause)))
		session.Close(true)
		if fut, ok := v.(*Future[Session]); ok {
			fut.Fail(cause)
		}
		return
	}

	if err := safeCall(func() error { return e.filter.ExceptionCaught(e.proxy, session, cause) }); err != nil {
		c.logger.Info("filterChainExceptionCaughtRecursion",
			slog.String("session", session.ID()),
			slog.String("class", c.errClassifier.Classify(err)))
	}
}
