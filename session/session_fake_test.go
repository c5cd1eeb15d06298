// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"sync"

	"github.com/bassosimone/iochain"
)

// fakeHandler records every lifecycle/event call it receives, for
// assertions in session package tests.
type fakeHandler struct {
	mu sync.Mutex

	created    int
	opened     int
	closed     int
	received   [][]byte
	sent       [][]byte
	exceptions []error
}

var _ iochain.Handler = &fakeHandler{}

func (h *fakeHandler) SessionCreated(session iochain.Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created++
	return nil
}

func (h *fakeHandler) SessionOpened(session iochain.Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened++
	return nil
}

func (h *fakeHandler) SessionClosed(session iochain.Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return nil
}

func (h *fakeHandler) SessionIdle(session iochain.Session, status iochain.IdleStatus) error {
	return nil
}

func (h *fakeHandler) MessageReceived(session iochain.Session, message any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if buf, ok := message.([]byte); ok {
		h.received = append(h.received, buf)
	}
	return nil
}

func (h *fakeHandler) MessageSent(session iochain.Session, message any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if buf, ok := message.([]byte); ok {
		h.sent = append(h.sent, buf)
	}
	return nil
}

func (h *fakeHandler) ExceptionCaught(session iochain.Session, cause error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exceptions = append(h.exceptions, cause)
	return nil
}

func (h *fakeHandler) snapshotReceived() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.received))
	copy(out, h.received)
	return out
}

func (h *fakeHandler) snapshotSent() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.sent))
	copy(out, h.sent)
	return out
}

func (h *fakeHandler) snapshotExceptions() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]error, len(h.exceptions))
	copy(out, h.exceptions)
	return out
}

func (h *fakeHandler) closedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
