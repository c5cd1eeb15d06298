// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"errors"
	"sync"

	"github.com/bassosimone/iochain"
)

// ErrWriteQueueDisposed is the cause with which pending writes are failed
// when a [writeQueue] is disposed (spec §4.4: sessionClosed drains the
// write queue as one of its best-effort teardown steps).
var ErrWriteQueueDisposed = errors.New("session: write queue disposed")

// writeQueue is the reference [iochain.WriteQueue] implementation: an
// unbounded, mutex-protected FIFO of pending [*iochain.WriteRequest]
// values, fed by the head filter and drained by [*loopProcessor].
type writeQueue struct {
	mu       sync.Mutex
	pending  []*iochain.WriteRequest
	disposed bool
}

func newWriteQueue() *writeQueue {
	return &writeQueue{}
}

// Offer implements [iochain.WriteQueue].
func (q *writeQueue) Offer(req *iochain.WriteRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		req.Future.Fail(ErrWriteQueueDisposed)
		return
	}
	q.pending = append(q.pending, req)
}

// drain removes and returns every currently queued request, in order.
func (q *writeQueue) drain() []*iochain.WriteRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Dispose implements [iochain.WriteQueue]: it fails every still-queued
// request's future with [ErrWriteQueueDisposed] and refuses further
// offers.
func (q *writeQueue) Dispose() {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.disposed = true
	q.mu.Unlock()

	for _, req := range pending {
		req.Future.Fail(ErrWriteQueueDisposed)
	}
}
