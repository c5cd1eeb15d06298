//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/netxlite/dialer.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package session

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/iochain"
	"github.com/bassosimone/safeconn"
)

// Dialer abstracts [*net.Dialer]'s DialContext behavior, so that tests
// can supply a fake one (e.g. [github.com/bassosimone/netstub]'s
// FuncConn-backed dialer) instead of touching the real network.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Dial establishes a connection to address over network ("tcp" or
// "udp"), logging connect start/done the same way the chain logs its own
// lifecycle events, then wraps the result for structured I/O logging
// ([observeConn]) and for responsive cleanup on context cancellation.
//
// The returned [net.Conn] is what a [*Session] built by [New] wraps; it
// is not yet associated with any session or chain.
func Dial(ctx context.Context, dialer Dialer, network, address string, logger iochain.SLogger, errClassifier iochain.ErrClassifier, timeNow func() time.Time) (net.Conn, error) {
	t0 := timeNow()
	deadline, _ := ctx.Deadline()

	logger.Info("sessionDialStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0))

	conn, err := dialer.DialContext(ctx, network, address)

	logger.Info("sessionDialDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", errClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", timeNow()))

	if err != nil {
		return nil, err
	}

	conn = watchContext(ctx, conn)
	conn = observeConn(conn, logger, errClassifier, timeNow)
	return conn, nil
}

// watchContext arranges for conn to be closed when ctx is done (cancelled
// or deadline exceeded), giving responsive cleanup on external
// cancellation rather than waiting for per-operation timeouts. Closing
// the returned connection unregisters the watcher, so no goroutine leaks
// even if ctx is never cancelled.
func watchContext(ctx context.Context, conn net.Conn) net.Conn {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &cancelWatchedConn{Conn: conn, stop: stop}
}

type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
