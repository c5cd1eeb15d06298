//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/measurexlite/conn.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/conn.go
//

package session

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
	"github.com/bassosimone/iochain"
)

// observeConn wraps conn with structured logging of every I/O operation,
// using logger and errClassifier the same way the chain itself logs
// lifecycle and dispatch events: Info for connection-lifetime events
// (close), Debug for per-call events (read, write, deadlines).
func observeConn(conn net.Conn, logger iochain.SLogger, errClassifier iochain.ErrClassifier, timeNow func() time.Time) net.Conn {
	return &observedConn{
		conn:          conn,
		laddr:         safeconn.LocalAddr(conn),
		raddr:         safeconn.RemoteAddr(conn),
		protocol:      safeconn.Network(conn),
		logger:        logger,
		errClassifier: errClassifier,
		timeNow:       timeNow,
	}
}

type observedConn struct {
	closeOnce     sync.Once
	conn          net.Conn
	laddr         string
	raddr         string
	protocol      string
	logger        iochain.SLogger
	errClassifier iochain.ErrClassifier
	timeNow       func() time.Time
}

var _ net.Conn = &observedConn{}

// Close implements [net.Conn]. Subsequent calls return [net.ErrClosed],
// consistent with Go's standard library behavior for closed connections.
func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeOnce.Do(func() {
		t0 := c.timeNow()
		c.logger.Info("sessionConnCloseStart",
			slog.String("localAddr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t", t0))

		err = c.conn.Close()

		c.logger.Info("sessionConnCloseDone",
			slog.Any("err", err),
			slog.String("errClass", c.errClassifier.Classify(err)),
			slog.String("localAddr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t0", t0),
			slog.Time("t", c.timeNow()))
	})
	return
}

func (c *observedConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *observedConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *observedConn) Read(buf []byte) (int, error) {
	t0 := c.timeNow()
	c.logger.Debug("sessionConnReadStart",
		slog.Int("ioBufferSize", len(buf)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", t0))

	count, err := c.conn.Read(buf)

	c.logger.Debug("sessionConnReadDone",
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", c.errClassifier.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.timeNow()))

	return count, err
}

func (c *observedConn) Write(data []byte) (int, error) {
	t0 := c.timeNow()
	c.logger.Debug("sessionConnWriteStart",
		slog.Int("ioBufferSize", len(data)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", t0))

	count, err := c.conn.Write(data)

	c.logger.Debug("sessionConnWriteDone",
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", c.errClassifier.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.timeNow()))

	return count, err
}

func (c *observedConn) SetDeadline(t time.Time) error {
	c.logger.Debug("sessionConnSetDeadline",
		slog.Time("deadline", t),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", c.timeNow()))
	return c.conn.SetDeadline(t)
}

func (c *observedConn) SetReadDeadline(t time.Time) error {
	c.logger.Debug("sessionConnSetReadDeadline",
		slog.Time("deadline", t),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", c.timeNow()))
	return c.conn.SetReadDeadline(t)
}

func (c *observedConn) SetWriteDeadline(t time.Time) error {
	c.logger.Debug("sessionConnSetWriteDeadline",
		slog.Time("deadline", t),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", c.timeNow()))
	return c.conn.SetWriteDeadline(t)
}
