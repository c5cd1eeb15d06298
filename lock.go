// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// reentrantMutex is the chain's intrinsic lock.
//
// It behaves like a [sync.Mutex] except that the goroutine currently
// holding it may acquire it again without blocking on itself. The chain
// needs this because register/deregister run their lifecycle hooks
// (onPreAdd, onPostAdd, onPreRemove, onPostRemove) while already holding
// the lock (spec: "Executed under the chain lock"), and a hook is free to
// call back into another mutation method (addLast, remove, ...) on the
// same goroutine; a plain mutex would deadlock that call against itself.
//
// The zero value is not usable; construct with [newReentrantMutex].
type reentrantMutex struct {
	meta  sync.Mutex
	sema  chan struct{}
	owner int64
	depth int
}

func newReentrantMutex() *reentrantMutex {
	return &reentrantMutex{sema: make(chan struct{}, 1)}
}

// Lock acquires the lock, or increments the reentrancy depth if the
// calling goroutine already holds it.
func (m *reentrantMutex) Lock() {
	id := goroutineID()

	m.meta.Lock()
	if m.depth > 0 && m.owner == id {
		m.depth++
		m.meta.Unlock()
		return
	}
	m.meta.Unlock()

	m.sema <- struct{}{}

	m.meta.Lock()
	m.owner = id
	m.depth = 1
	m.meta.Unlock()
}

// Unlock decrements the reentrancy depth, releasing the lock to other
// goroutines only once the depth returns to zero.
//
// Unlock panics if called by a goroutine that does not hold the lock,
// matching [sync.Mutex]'s "unlock of unlocked mutex" behavior.
func (m *reentrantMutex) Unlock() {
	id := goroutineID()

	m.meta.Lock()
	defer m.meta.Unlock()

	if m.depth == 0 || m.owner != id {
		panic("iochain: unlock of unheld reentrantMutex")
	}
	m.depth--
	if m.depth == 0 {
		m.owner = 0
		<-m.sema
	}
}

// goroutineID extracts the calling goroutine's numeric id from the
// "goroutine N [state]:" header that [runtime.Stack] prints. This is the
// standard technique for goroutine-local bookkeeping when no dedicated
// library is available; none of this module's dependencies provide one.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.Fields(buf[:n])
	if len(field) < 2 {
		return 0
	}
	id, err := strconv.ParseInt(string(field[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
