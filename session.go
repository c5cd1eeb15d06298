// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

import "time"

// Session is the contract the chain consumes from its owning session.
//
// The chain never implements this interface itself; it is satisfied by
// whatever session/transport layer embeds the chain (see the reference
// implementation in the sibling session package). The chain treats every
// method here as safe to call without holding [Chain]'s own lock, and
// expects the implementation to be safe for concurrent use, since the
// write queue, attribute map, counters, and close future are shared with
// the transport.
type Session interface {
	// ID returns a stable identifier for this session, used only for
	// logging and correlation; it plays no role in the chain's own
	// name-based entry index.
	ID() string

	// Attributes returns the session's attribute map.
	Attributes() AttributeMap

	// CloseFuture returns the future completed when the session closes.
	CloseFuture() *Future[struct{}]

	// WriteQueue returns the session's pending-write queue.
	WriteQueue() WriteQueue

	// Processor returns the transport processor driving this session.
	Processor() Processor

	// IsWriteSuspended reports whether writes are currently suspended,
	// in which case the head filter must not ask the processor to flush.
	IsWriteSuspended() bool

	// IncreaseIdleCount records that the session went idle in the given
	// way at the given time.
	IncreaseIdleCount(status IdleStatus, now time.Time)

	// IncreaseReadBytes records that n bytes were read at the given time.
	IncreaseReadBytes(n int64, now time.Time)

	// IncreaseReadMessages records that one non-byte-buffer (or empty
	// byte-buffer) message was read.
	IncreaseReadMessages(now time.Time)

	// IncreaseScheduledWriteBytes records that n bytes of a write request's
	// message were scheduled for writing (spec §4.3: zero-length buffers
	// are internal delimiters and must not be passed here).
	IncreaseScheduledWriteBytes(n int64)

	// IsUseReadOperation reports whether the session is configured for
	// read-operation polling (offering messages as read futures, in
	// addition to dispatching them to the handler).
	IsUseReadOperation() bool

	// Handler returns the application handler invoked from the tail.
	Handler() Handler

	// OfferReadFuture offers a received message to a pending read future.
	OfferReadFuture(message any)

	// OfferClosedReadFuture offers end-of-session to a pending read future.
	OfferClosedReadFuture()

	// OfferFailedReadFuture offers a failure to a pending read future.
	OfferFailedReadFuture(cause error)

	// Close closes the session. force indicates the close should not
	// wait for pending writes to drain (used when a connect-phase
	// exception occurs, per spec §4.2.1).
	Close(force bool)
}

// AttributeMap is a session-scoped bag of arbitrary key/value pairs.
//
// The chain uses it for exactly one purpose of its own: the
// [SessionCreatedFutureKey] attribute bridging the first inbound event to
// the pending connect future (spec §4.2.1/§4.2.2). Filters and
// application code may use it for anything else.
type AttributeMap interface {
	// Get returns the value for key, and whether it was present.
	Get(key any) (any, bool)

	// Set stores value under key.
	Set(key, value any)

	// Remove deletes key, returning its prior value and whether it was present.
	Remove(key any) (any, bool)

	// Dispose releases all stored attributes.
	Dispose()
}

// WriteQueue is the session's pending-write queue, fed by the head filter
// and drained by the [Processor].
type WriteQueue interface {
	// Offer enqueues a write request.
	Offer(req *WriteRequest)

	// Dispose releases any queued requests, failing their futures.
	Dispose()
}

// Processor drives a session's transport: flushing queued writes and
// tearing down the connection on close. The chain never implements this
// itself; it only calls it from the head filter (spec §4.3).
type Processor interface {
	// Flush asks the processor to write any queued requests for session.
	Flush(session Session)

	// Remove asks the processor to tear down session's transport.
	Remove(session Session)
}

// Handler is the application contract invoked from the tail, mirroring
// the seven inbound events (spec §6: "Handler contract (invoked from
// tail). Eight methods mirroring the inbound events (minus outbound)" —
// the filter chain's own event table in spec §4.2 names seven inbound
// events; see DESIGN.md for the reconciliation of the spec's summary
// count against its table).
type Handler interface {
	SessionCreated(session Session) error
	SessionOpened(session Session) error
	SessionClosed(session Session) error
	SessionIdle(session Session, status IdleStatus) error
	MessageReceived(session Session, message any) error
	MessageSent(session Session, message any) error
	ExceptionCaught(session Session, cause error) error
}

// WriteRequest pairs an outbound message with the future that settles
// when the write completes or fails.
type WriteRequest struct {
	// Message is the outbound payload; filters may transform it in place
	// by replacing the field as the request travels outbound.
	Message any

	// Future settles with no value on a successful write, or with the
	// cause of failure (spec §7.4, §8 property 9).
	Future *Future[struct{}]
}

// NewWriteRequest returns a [*WriteRequest] wrapping message, with a
// fresh, unsettled future.
func NewWriteRequest(message any) *WriteRequest {
	return &WriteRequest{Message: message, Future: NewFuture[struct{}]()}
}

// sessionCreatedFutureKeyType is a unique, unexported type so that
// [SessionCreatedFutureKey] cannot collide with any other attribute key,
// the same pattern [context.Value] keys use in the standard library.
type sessionCreatedFutureKeyType struct{}

// SessionCreatedFutureKey is the stable attribute key under which the
// pending connect future is stored until the first sessionCreated event
// resolves it, one way or another (spec §4.2.1, §4.2.2, §6).
var SessionCreatedFutureKey = sessionCreatedFutureKeyType{}
