// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

// Entry is one node of a [Chain]'s doubly-linked structure.
//
// name is immutable once the entry is registered. filter is mutable only
// via [Chain.Replace], [Chain.ReplaceFilter] and [Chain.ReplaceType]. prev and next are mutated only while the owning
// chain's lock is held. The entry's [NextFilter] proxy is created once,
// alongside the entry, and resolves prev/next lazily at call time — see
// [NextFilter] for why that matters.
type Entry struct {
	name   string
	filter Filter
	prev   *Entry
	next   *Entry
	proxy  *successorProxy
	chain  *Chain
}

// Name returns the entry's name. Empty for the head and tail entries,
// which are not name-indexed (spec §3 invariant 4).
func (e *Entry) Name() string {
	return e.name
}

// Filter returns the entry's current filter.
func (e *Entry) Filter() Filter {
	return e.filter
}

// NextFilter returns the entry's successor proxy, the handle passed to
// the entry's own filter methods.
func (e *Entry) NextFilter() NextFilter {
	return e.proxy
}

// Prev returns the entry's current predecessor, or nil if none (the
// head, or an entry that has been removed from its chain).
func (e *Entry) Prev() *Entry {
	return e.prev
}

// Next returns the entry's current successor, or nil if none (the
// tail, or an entry that has been removed from its chain).
func (e *Entry) Next() *Entry {
	return e.next
}

func newEntry(chain *Chain, name string, filter Filter) *Entry {
	e := &Entry{name: name, filter: filter, chain: chain}
	e.proxy = &successorProxy{entry: e}
	return e
}
