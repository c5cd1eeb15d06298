// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

// headFilter is the chain's terminal for outbound traversal (spec
// §4.3): outbound events enter at tail and end here. It is created once per [Chain], by [New], and is never
// name-indexed or reachable through the lookup API.
//
// Every other event passes through unchanged via the embedded
// [FilterAdapter].
type headFilter struct {
	FilterAdapter
}

var _ Filter = headFilter{}

// FilterWrite implements spec §4.3: account scheduled-write bytes, enqueue
// the request, and ask the processor to flush unless writes are suspended.
func (headFilter) FilterWrite(next NextFilter, session Session, req *WriteRequest) error {
	if buf, ok := req.Message.([]byte); ok && len(buf) > 0 {
		session.IncreaseScheduledWriteBytes(int64(len(buf)))
	}
	session.WriteQueue().Offer(req)
	if !session.IsWriteSuspended() {
		session.Processor().Flush(session)
	}
	return nil
}

// FilterClose implements spec §4.3: tear down the transport.
func (headFilter) FilterClose(next NextFilter, session Session) error {
	session.Processor().Remove(session)
	return nil
}

func (headFilter) Type() string { return "head" }
