// SPDX-License-Identifier: GPL-3.0-or-later

// Package iochain provides a bidirectional filter chain for network
// sessions: a doubly-linked pipeline of named, independently addressable
// stages between fixed head and tail sentinels.
//
// # Core Abstraction
//
// Inbound events — sessionCreated, sessionOpened, sessionClosed,
// sessionIdle, messageReceived, messageSent, exceptionCaught — enter at
// head and travel toward tail. Outbound events — filterWrite and
// filterClose — enter at tail and travel toward head. Each stage is a
// [Filter]; implementations typically embed [FilterAdapter] and override
// only the events they care about, letting the rest pass through
// unchanged.
//
// A [Filter] is invoked with a [NextFilter] handle bound to its own
// position in the chain. That handle resolves its entry's current
// neighbor lazily, at call time, so a filter that adds, removes, or
// replaces another entry mid-dispatch is safely observed by the rest of
// the same traversal.
//
// # Building a chain
//
//	chain := iochain.New(session, iochain.NewConfig())
//	chain.AddLast("codec", myCodecFilter)
//	chain.AddLast("logging", myLoggingFilter)
//	chain.FireSessionCreated(session)
//
// [Chain] never implements [Session] itself; that contract is satisfied
// by whatever session/transport layer embeds the chain. See the sibling
// session package for a [net.Conn]-backed reference implementation.
//
// # Concurrency
//
// Every mutation method (AddFirst, AddLast, AddBefore, AddAfter, Remove,
// RemoveFilter, RemoveType, Replace, ReplaceFilter, ReplaceType, Clear)
// acquires the chain's own intrinsic lock, a reentrant mutex: a lifecycle
// hook (onPreAdd, onPostAdd, onPreRemove, onPostRemove) invoked while
// that lock is held may call back into another mutation method on the
// same goroutine without deadlocking.
//
// # Error handling
//
// A usage error (empty name, nil filter, duplicate name, unknown name)
// is returned synchronously to the caller without changing chain state.
// A lifecycle hook failure is wrapped in a [*LifecycleError]; a failing
// onPostAdd rolls its splice back. Any other error (or recovered panic)
// a filter's event method returns is redirected into a fresh
// [Chain.FireExceptionCaught] traversal starting at head; a filterWrite
// failure additionally fails the write request's future first. An error
// from exceptionCaught itself is logged and swallowed, never redirected
// again.
//
// # Observability
//
// [SLogger] abstracts [*slog.Logger]: Info for lifecycle events (filter
// add/remove, an exception that fails a pending connect, an error raised
// from exceptionCaught itself), Debug for per-entry dispatch. By default, logging is disabled; set
// [Config.Logger] to enable it. [ErrClassifier] classifies errors into
// short labels for those log records; the default classifies using
// [github.com/bassosimone/errclass].
package iochain
