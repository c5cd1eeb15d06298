// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/bassosimone/iochain"
)

// defaultReadBufferSize is the buffer size [loopProcessor] uses for each
// call to the underlying connection's Read.
const defaultReadBufferSize = 4096

// loopProcessor is the reference [iochain.Processor]: it drains a
// session's write queue onto a [net.Conn] from [*loopProcessor.Flush],
// and runs one background goroutine per session reading from that same
// conn and firing messageReceived/sessionClosed/exceptionCaught as
// appropriate (spec §4.3, §6).
//
// bind must be called once, after the owning [*Session] and
// [*iochain.Chain] exist, before [*loopProcessor.run] is started.
type loopProcessor struct {
	conn    net.Conn
	queue   *writeQueue
	session *Session
	chain   *iochain.Chain

	writeMu sync.Mutex
}

func newLoopProcessor(conn net.Conn, queue *writeQueue) *loopProcessor {
	return &loopProcessor{conn: conn, queue: queue}
}

func (p *loopProcessor) bind(session *Session, chain *iochain.Chain) {
	p.session = session
	p.chain = chain
}

var _ iochain.Processor = &loopProcessor{}

// Flush implements [iochain.Processor]: it drains every request currently
// queued and writes it, in order, to the underlying connection.
// Zero-length byte-buffer requests are treated as internal delimiters:
// they are not written, but still settle and fire messageSent, matching
// the head filter's own zero-length exemption (spec §4.3).
func (p *loopProcessor) Flush(s iochain.Session) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	for _, req := range p.queue.drain() {
		buf, ok := req.Message.([]byte)
		if !ok {
			req.Future.Fail(fmt.Errorf("session: processor can only write byte-buffer messages, got %T", req.Message))
			continue
		}
		if len(buf) > 0 {
			if _, err := p.conn.Write(buf); err != nil {
				req.Future.Fail(err)
				p.chain.FireExceptionCaught(s, err)
				continue
			}
		}
		p.chain.FireMessageSent(s, req)
	}
}

// Remove implements [iochain.Processor]: it tears down the transport.
func (p *loopProcessor) Remove(s iochain.Session) {
	p.conn.Close()
}

// run is the background read loop; call it in its own goroutine once the
// session has fired sessionCreated/sessionOpened.
func (p *loopProcessor) run() {
	buf := make([]byte, defaultReadBufferSize)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			message := make([]byte, n)
			copy(message, buf[:n])
			p.chain.FireMessageReceived(p.session, message)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				p.chain.FireSessionClosed(p.session)
			} else {
				p.chain.FireExceptionCaught(p.session, err)
			}
			return
		}
	}
}
