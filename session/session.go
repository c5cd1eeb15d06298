// SPDX-License-Identifier: GPL-3.0-or-later

// Package session provides the reference [iochain.Session] implementation:
// a [net.Conn]-backed session wiring together a [*iochain.Chain], an
// application [iochain.Handler], and the write-queue/processor/attribute
// machinery the chain's head and tail filters depend on.
package session

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/bassosimone/iochain"
)

// Session is the reference [iochain.Session] implementation.
//
// Construct one with [Connect] (dial then wrap) or [New] (wrap an
// already-established [net.Conn]).
type Session struct {
	id      string
	conn    net.Conn
	chain   *iochain.Chain
	handler iochain.Handler

	attrs      *attributeMap
	writeQueue *writeQueue
	processor  *loopProcessor
	closeFut   *iochain.Future[struct{}]
	mailbox    *readMailbox

	useReadOperation bool
	writeSuspended   atomic.Bool

	scheduledWriteBytes atomic.Int64
	readBytes           atomic.Int64
	readMessages        atomic.Int64
	idleCounts          [3]atomic.Int64
}

var _ iochain.Session = &Session{}

// New wraps an already-established [net.Conn] as a [*Session], installs
// handler at the tail of a freshly built chain, fires sessionCreated then
// sessionOpened, and starts the background read loop. chain, if non-nil,
// is used as-is (its own head/tail are already in place); pass nil to get
// a fresh, empty [*iochain.Chain].
func New(conn net.Conn, handler iochain.Handler, chain *iochain.Chain, cfg *Config) *Session {
	if cfg == nil {
		cfg = NewConfig()
	}
	s := newUnstarted(conn, handler, chain, cfg)
	s.start()
	return s
}

// Connect dials address over network ("tcp" or "udp") and wraps the
// resulting connection as a [*Session] (spec §4.2.1: the connect future
// bridges this call to the first sessionCreated, or to an early
// exceptionCaught).
func Connect(ctx context.Context, network, address string, handler iochain.Handler, chain *iochain.Chain, cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	conn, err := Dial(ctx, cfg.Dialer, network, address, cfg.Logger, cfg.ErrClassifier, cfg.TimeNow)
	if err != nil {
		return nil, err
	}

	s := newUnstarted(conn, handler, chain, cfg)

	connectFut := iochain.NewFuture[iochain.Session]()
	s.attrs.Set(iochain.SessionCreatedFutureKey, connectFut)

	s.start()

	select {
	case <-connectFut.Done():
		_, err := connectFut.Result()
		if err != nil {
			return nil, err
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// newUnstarted builds a session, its write queue/processor/attribute map,
// and (if chain is nil) a fresh chain, without firing any event or
// starting the read loop — giving the caller a chance to seed attributes
// (notably [iochain.SessionCreatedFutureKey]) before sessionCreated fires.
func newUnstarted(conn net.Conn, handler iochain.Handler, chain *iochain.Chain, cfg *Config) *Session {
	s := &Session{
		id:               iochain.NewSessionID(),
		conn:             conn,
		handler:          handler,
		attrs:            newAttributeMap(),
		writeQueue:       newWriteQueue(),
		closeFut:         iochain.NewFuture[struct{}](),
		useReadOperation: cfg.UseReadOperation,
		mailbox:          newReadMailbox(cfg.ReadMailboxCapacity),
	}

	proc := newLoopProcessor(conn, s.writeQueue)
	s.processor = proc

	if chain == nil {
		chain = iochain.New(s, cfg.iochainConfig())
	}
	s.chain = chain
	proc.bind(s, chain)

	return s
}

// start fires sessionCreated then sessionOpened, and then launches the
// background read loop.
func (s *Session) start() {
	s.chain.FireSessionCreated(s)
	s.chain.FireSessionOpened(s)
	go s.processor.run()
}

// ID implements [iochain.Session].
func (s *Session) ID() string { return s.id }

// Attributes implements [iochain.Session].
func (s *Session) Attributes() iochain.AttributeMap { return s.attrs }

// CloseFuture implements [iochain.Session].
func (s *Session) CloseFuture() *iochain.Future[struct{}] { return s.closeFut }

// WriteQueue implements [iochain.Session].
func (s *Session) WriteQueue() iochain.WriteQueue { return s.writeQueue }

// Processor implements [iochain.Session].
func (s *Session) Processor() iochain.Processor { return s.processor }

// IsWriteSuspended implements [iochain.Session].
func (s *Session) IsWriteSuspended() bool { return s.writeSuspended.Load() }

// SuspendWrite suspends the head filter's automatic flush-on-write.
func (s *Session) SuspendWrite() { s.writeSuspended.Store(true) }

// ResumeWrite re-enables the head filter's automatic flush-on-write and
// flushes anything that queued up while suspended.
func (s *Session) ResumeWrite() {
	s.writeSuspended.Store(false)
	s.processor.Flush(s)
}

// IncreaseIdleCount implements [iochain.Session].
func (s *Session) IncreaseIdleCount(status iochain.IdleStatus, now time.Time) {
	if int(status) >= 0 && int(status) < len(s.idleCounts) {
		s.idleCounts[status].Add(1)
	}
}

// IncreaseReadBytes implements [iochain.Session].
func (s *Session) IncreaseReadBytes(n int64, now time.Time) {
	s.readBytes.Add(n)
}

// IncreaseReadMessages implements [iochain.Session].
func (s *Session) IncreaseReadMessages(now time.Time) {
	s.readMessages.Add(1)
}

// IncreaseScheduledWriteBytes implements [iochain.Session].
func (s *Session) IncreaseScheduledWriteBytes(n int64) {
	s.scheduledWriteBytes.Add(n)
}

// ScheduledWriteBytes returns the cumulative count of bytes the head
// filter has scheduled for writing; it is not decreased when a write
// completes.
func (s *Session) ScheduledWriteBytes() int64 { return s.scheduledWriteBytes.Load() }

// ReadBytes returns the cumulative count of bytes read.
func (s *Session) ReadBytes() int64 { return s.readBytes.Load() }

// ReadMessages returns the cumulative count of non-byte-buffer (or
// empty byte-buffer) messages read.
func (s *Session) ReadMessages() int64 { return s.readMessages.Load() }

// IsUseReadOperation implements [iochain.Session].
func (s *Session) IsUseReadOperation() bool { return s.useReadOperation }

// Handler implements [iochain.Session].
func (s *Session) Handler() iochain.Handler { return s.handler }

// OfferReadFuture implements [iochain.Session].
func (s *Session) OfferReadFuture(message any) {
	s.mailbox.offer(readResult{message: message})
}

// OfferClosedReadFuture implements [iochain.Session].
func (s *Session) OfferClosedReadFuture() {
	s.mailbox.offer(readResult{closed: true})
}

// OfferFailedReadFuture implements [iochain.Session].
func (s *Session) OfferFailedReadFuture(cause error) {
	s.mailbox.offer(readResult{err: cause})
}

// Read implements read-operation polling: it blocks until a message,
// end-of-session, or failure is offered, or ctx is done. closed is true
// for the end-of-session notification offered when the session closes;
// err carries a failure offered via [*Session.OfferFailedReadFuture], or
// ctx's error if ctx is done first.
func (s *Session) Read(ctx context.Context) (message any, closed bool, err error) {
	return s.mailbox.read(ctx)
}

// Close implements [iochain.Session]. force is accepted for interface
// symmetry with spec §4.2.1's early-exception path; both paths converge
// on firing filterClose, which tears the transport down via the
// processor.
func (s *Session) Close(force bool) {
	s.chain.FireFilterClose(s)
}

// Write enqueues message for the outbound pipeline by firing filterWrite
// starting at tail, and returns the future that settles once the write
// completes or fails.
func (s *Session) Write(message any) *iochain.Future[struct{}] {
	req := iochain.NewWriteRequest(message)
	s.chain.FireFilterWrite(s, req)
	return req.Future
}

// Chain returns the session's filter chain.
func (s *Session) Chain() *iochain.Chain { return s.chain }
