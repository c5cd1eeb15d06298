// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

// tailFilter is the chain's terminal for inbound traversal (spec
// §4.4): inbound events enter at head and end here, at the handler. It is created once per [Chain], by [New], bound to its owning
// chain so that sessionClosed can clear the chain as one of its teardown
// steps.
type tailFilter struct {
	FilterAdapter
	chain *Chain
}

var _ Filter = &tailFilter{}

// SessionCreated invokes the handler, then — regardless of whether the
// handler errored — removes [SessionCreatedFutureKey] and completes it
// with session if it was present (spec §4.2.2).
func (t *tailFilter) SessionCreated(next NextFilter, session Session) error {
	defer func() {
		if v, ok := session.Attributes().Remove(SessionCreatedFutureKey); ok {
			if fut, ok := v.(*Future[Session]); ok {
				fut.Complete(session)
			}
		}
	}()
	return session.Handler().SessionCreated(session)
}

func (t *tailFilter) SessionOpened(next NextFilter, session Session) error {
	return session.Handler().SessionOpened(session)
}

// SessionClosed runs the handler, then four best-effort teardown steps —
// draining the write queue, disposing attributes, clearing the filter
// chain, and (if read-operation polling is enabled) offering end-of-session
// to a pending read future. A failure in one step never skips the rest
// (spec §4.4).
func (t *tailFilter) SessionClosed(next NextFilter, session Session) error {
	handlerErr := session.Handler().SessionClosed(session)
	runBestEffort(
		func() { session.WriteQueue().Dispose() },
		func() { session.Attributes().Dispose() },
		func() { t.chain.Clear() },
		func() {
			if session.IsUseReadOperation() {
				session.OfferClosedReadFuture()
			}
		},
	)
	return handlerErr
}

func (t *tailFilter) SessionIdle(next NextFilter, session Session, status IdleStatus) error {
	return session.Handler().SessionIdle(session, status)
}

// MessageReceived increments the read-messages counter for anything other
// than a non-empty byte buffer, invokes the handler, then — if
// read-operation polling is enabled — offers the message to a pending read
// future (spec §4.4).
func (t *tailFilter) MessageReceived(next NextFilter, session Session, message any) error {
	if buf, ok := message.([]byte); !ok || len(buf) == 0 {
		session.IncreaseReadMessages(t.chain.now())
	}
	err := session.Handler().MessageReceived(session, message)
	if session.IsUseReadOperation() {
		runBestEffort(func() { session.OfferReadFuture(message) })
	}
	return err
}

// MessageSent invokes the handler with the message extracted from req,
// not the request itself.
func (t *tailFilter) MessageSent(next NextFilter, session Session, req *WriteRequest) error {
	return session.Handler().MessageSent(session, req.Message)
}

// ExceptionCaught invokes the handler, then — if read-operation polling is
// enabled — offers cause to a pending read future (spec §4.4).
func (t *tailFilter) ExceptionCaught(next NextFilter, session Session, cause error) error {
	err := session.Handler().ExceptionCaught(session, cause)
	if session.IsUseReadOperation() {
		runBestEffort(func() { session.OfferFailedReadFuture(cause) })
	}
	return err
}

func (t *tailFilter) Type() string { return "tail" }

// runBestEffort runs each step in order, recovering a panic from any one
// of them so that the remaining steps still run (spec §4.4, §7.5: "clear
// is best-effort; a failure removing one filter does not prevent the
// others from being attempted").
func runBestEffort(steps ...func()) {
	for _, step := range steps {
		runOne(step)
	}
}

func runOne(step func()) {
	defer func() { recover() }()
	step()
}
