// SPDX-License-Identifier: GPL-3.0-or-later

package iochain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChain(handler Handler) (*Chain, *fakeSession) {
	fs := newFakeSession(handler)
	logger, _ := newCapturingLogger()
	c := New(fs, &Config{Logger: logger, ErrClassifier: DefaultErrClassifier, TimeNow: time.Now})
	fs.readOffers = nil
	return c, fs
}

// countingFilter records every event it sees and forwards unchanged.
type countingFilter struct {
	FilterAdapter
	name   string
	events *[]string
}

func (f *countingFilter) SessionCreated(next NextFilter, session Session) error {
	*f.events = append(*f.events, f.name+":sessionCreated")
	next.FireSessionCreated(session)
	return nil
}

func (f *countingFilter) MessageReceived(next NextFilter, session Session, message any) error {
	*f.events = append(*f.events, f.name+":messageReceived")
	next.FireMessageReceived(session, message)
	return nil
}

func (f *countingFilter) FilterWrite(next NextFilter, session Session, req *WriteRequest) error {
	*f.events = append(*f.events, f.name+":filterWrite")
	next.FireFilterWrite(session, req)
	return nil
}

func TestChainAddLastOrdersHeadToTail(t *testing.T) {
	var events []string
	c, fs := newTestChain(&fakeHandler{})

	_, err := c.AddLast("a", &countingFilter{name: "a", events: &events})
	require.NoError(t, err)
	_, err = c.AddLast("b", &countingFilter{name: "b", events: &events})
	require.NoError(t, err)

	c.FireMessageReceived(fs, []byte("hi"))

	assert.Equal(t, []string{"a:messageReceived", "b:messageReceived"}, events)
}

func TestChainAddFirstPrepends(t *testing.T) {
	var events []string
	c, fs := newTestChain(&fakeHandler{})

	_, err := c.AddLast("b", &countingFilter{name: "b", events: &events})
	require.NoError(t, err)
	_, err = c.AddFirst("a", &countingFilter{name: "a", events: &events})
	require.NoError(t, err)

	c.FireMessageReceived(fs, []byte("hi"))
	assert.Equal(t, []string{"a:messageReceived", "b:messageReceived"}, events)
}

func TestChainAddBeforeAfter(t *testing.T) {
	var events []string
	c, fs := newTestChain(&fakeHandler{})

	_, err := c.AddLast("a", &countingFilter{name: "a", events: &events})
	require.NoError(t, err)
	_, err = c.AddLast("c", &countingFilter{name: "c", events: &events})
	require.NoError(t, err)
	_, err = c.AddBefore("c", "b", &countingFilter{name: "b", events: &events})
	require.NoError(t, err)
	_, err = c.AddAfter("a", "a2", &countingFilter{name: "a2", events: &events})
	require.NoError(t, err)

	c.FireMessageReceived(fs, []byte("hi"))
	assert.Equal(t, []string{"a:messageReceived", "a2:messageReceived", "b:messageReceived", "c:messageReceived"}, events)
}

func TestChainDuplicateNameRejected(t *testing.T) {
	c, _ := newTestChain(&fakeHandler{})

	_, err := c.AddLast("a", FilterAdapter{})
	require.NoError(t, err)

	_, err = c.AddLast("a", FilterAdapter{})
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestChainEmptyNameRejected(t *testing.T) {
	c, _ := newTestChain(&fakeHandler{})
	_, err := c.AddLast("", FilterAdapter{})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestChainNilFilterRejected(t *testing.T) {
	c, _ := newTestChain(&fakeHandler{})
	_, err := c.AddLast("a", nil)
	assert.ErrorIs(t, err, ErrNilFilter)
}

func TestChainAddBeforeUnknownBase(t *testing.T) {
	c, _ := newTestChain(&fakeHandler{})
	_, err := c.AddBefore("missing", "a", FilterAdapter{})
	assert.ErrorIs(t, err, ErrBaseNameMissing)
}

func TestChainRemoveUnknownName(t *testing.T) {
	c, _ := newTestChain(&fakeHandler{})
	assert.ErrorIs(t, c.Remove("missing"), ErrNameNotFound)
}

// lifecycleFilter records every lifecycle hook call and can be made to
// fail a specific phase.
type lifecycleFilter struct {
	FilterAdapter
	events  *[]string
	name    string
	failAt  string
	failErr error
}

func (f *lifecycleFilter) OnPreAdd(chain *Chain, name string, next NextFilter) error {
	*f.events = append(*f.events, f.name+":preAdd")
	if f.failAt == "preAdd" {
		return f.failErr
	}
	return nil
}

func (f *lifecycleFilter) OnPostAdd(chain *Chain, name string, next NextFilter) error {
	*f.events = append(*f.events, f.name+":postAdd")
	if f.failAt == "postAdd" {
		return f.failErr
	}
	return nil
}

func (f *lifecycleFilter) OnPreRemove(chain *Chain, name string, next NextFilter) error {
	*f.events = append(*f.events, f.name+":preRemove")
	if f.failAt == "preRemove" {
		return f.failErr
	}
	return nil
}

func (f *lifecycleFilter) OnPostRemove(chain *Chain, name string, next NextFilter) error {
	*f.events = append(*f.events, f.name+":postRemove")
	if f.failAt == "postRemove" {
		return f.failErr
	}
	return nil
}

func TestChainLifecycleHooksCalledOnAddAndRemove(t *testing.T) {
	var events []string
	c, _ := newTestChain(&fakeHandler{})

	_, err := c.AddLast("a", &lifecycleFilter{name: "a", events: &events})
	require.NoError(t, err)
	require.NoError(t, c.Remove("a"))

	assert.Equal(t, []string{"a:preAdd", "a:postAdd", "a:preRemove", "a:postRemove"}, events)
}

func TestChainPostAddFailureRollsBack(t *testing.T) {
	var events []string
	c, _ := newTestChain(&fakeHandler{})
	cause := errors.New("post-add boom")

	_, err := c.AddLast("a", &lifecycleFilter{name: "a", events: &events, failAt: "postAdd", failErr: cause})

	var lifecycleErr *LifecycleError
	require.ErrorAs(t, err, &lifecycleErr)
	assert.Equal(t, PhasePostAdd, lifecycleErr.Phase)
	assert.ErrorIs(t, lifecycleErr, cause)

	assert.False(t, c.Contains("a"))
}

func TestChainPreAddFailureNeverSplices(t *testing.T) {
	var events []string
	c, _ := newTestChain(&fakeHandler{})
	cause := errors.New("pre-add boom")

	_, err := c.AddLast("a", &lifecycleFilter{name: "a", events: &events, failAt: "preAdd", failErr: cause})
	require.Error(t, err)
	assert.False(t, c.Contains("a"))
	assert.Equal(t, []string{"a:preAdd"}, events)
}

func TestChainReplaceDoesNotInvokeLifecycle(t *testing.T) {
	var events []string
	c, _ := newTestChain(&fakeHandler{})

	_, err := c.AddLast("a", &lifecycleFilter{name: "a", events: &events})
	require.NoError(t, err)
	events = nil

	require.NoError(t, c.Replace("a", FilterAdapter{}))
	assert.Empty(t, events)

	f, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, FilterAdapter{}, f)
}

func TestChainClearIsBestEffort(t *testing.T) {
	var events []string
	c, _ := newTestChain(&fakeHandler{})
	cause := errors.New("remove boom")

	_, err := c.AddLast("a", &lifecycleFilter{name: "a", events: &events, failAt: "preRemove", failErr: cause})
	require.NoError(t, err)
	_, err = c.AddLast("b", &lifecycleFilter{name: "b", events: &events})
	require.NoError(t, err)

	err = c.Clear()
	require.Error(t, err)

	// a's preRemove failure leaves it in place; b still gets removed.
	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("b"))
}

func TestChainGetAllAndReversed(t *testing.T) {
	c, _ := newTestChain(&fakeHandler{})

	_, _ = c.AddLast("a", FilterAdapter{})
	_, _ = c.AddLast("b", FilterAdapter{})
	_, _ = c.AddLast("c", FilterAdapter{})

	all := c.GetAll()
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.Name()
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	rev := c.GetAllReversed()
	revNames := make([]string, len(rev))
	for i, e := range rev {
		revNames[i] = e.Name()
	}
	assert.Equal(t, []string{"c", "b", "a"}, revNames)
}

func TestChainFindAndType(t *testing.T) {
	c, _ := newTestChain(&fakeHandler{})
	_, _ = c.AddLast("a", headFilter{})

	f, ok := c.GetType("head")
	require.True(t, ok)
	assert.Equal(t, headFilter{}, f)

	e := c.Find(func(e *Entry) bool { return e.Name() == "a" })
	require.NotNil(t, e)
	assert.Equal(t, "a", e.Name())
}

// errorFilter always fails the named event with cause.
type errorFilter struct {
	FilterAdapter
	event string
	cause error
}

func (f *errorFilter) MessageReceived(next NextFilter, session Session, message any) error {
	if f.event == "messageReceived" {
		return f.cause
	}
	next.FireMessageReceived(session, message)
	return nil
}

func (f *errorFilter) FilterWrite(next NextFilter, session Session, req *WriteRequest) error {
	if f.event == "filterWrite" {
		return f.cause
	}
	next.FireFilterWrite(session, req)
	return nil
}

func TestChainErrorRedirectsToExceptionCaught(t *testing.T) {
	handler := &fakeHandler{}
	c, fs := newTestChain(handler)
	cause := errors.New("boom")

	_, err := c.AddLast("bad", &errorFilter{event: "messageReceived", cause: cause})
	require.NoError(t, err)

	c.FireMessageReceived(fs, []byte("hi"))

	require.Len(t, handler.exceptions, 1)
	assert.ErrorIs(t, handler.exceptions[0], cause)
	assert.Empty(t, handler.received)
}

func TestChainFilterWriteErrorFailsFutureAndRedirects(t *testing.T) {
	handler := &fakeHandler{}
	c, fs := newTestChain(handler)
	cause := errors.New("write boom")

	_, err := c.AddLast("bad", &errorFilter{event: "filterWrite", cause: cause})
	require.NoError(t, err)

	req := NewWriteRequest([]byte("payload"))
	c.FireFilterWrite(fs, req)

	_, resultErr := req.Future.Result()
	assert.ErrorIs(t, resultErr, cause)

	require.Len(t, handler.exceptions, 1)
	assert.ErrorIs(t, handler.exceptions[0], cause)
}

func TestChainPanicIsRecoveredAndRedirected(t *testing.T) {
	handler := &fakeHandler{}
	c, fs := newTestChain(handler)

	_, err := c.AddLast("panicker", FilterAdapter{})
	require.NoError(t, err)
	// Replace with a filter that panics, bypassing lifecycle hooks.
	require.NoError(t, c.Replace("panicker", &panickingFilter{}))

	c.FireMessageReceived(fs, []byte("hi"))

	require.Len(t, handler.exceptions, 1)
	assert.Contains(t, handler.exceptions[0].Error(), "panicked")
}

type panickingFilter struct{ FilterAdapter }

func (panickingFilter) MessageReceived(next NextFilter, session Session, message any) error {
	panic("kaboom")
}

func TestChainExceptionCaughtShortCircuitsWhileConnecting(t *testing.T) {
	handler := &fakeHandler{}
	c, fs := newTestChain(handler)
	cause := errors.New("connect failed")

	connectFut := NewFuture[Session]()
	fs.Attributes().Set(SessionCreatedFutureKey, connectFut)

	c.FireExceptionCaught(fs, cause)

	assert.Empty(t, handler.exceptions, "no filter should see the exception during the connect race")
	require.Len(t, fs.closeCalls, 1)
	assert.True(t, fs.closeCalls[0])

	_, err := connectFut.Result()
	assert.ErrorIs(t, err, cause)
}

func TestChainSessionCreatedCompletesConnectFuture(t *testing.T) {
	fs := newFakeSession(&fakeHandler{})
	logger, _ := newCapturingLogger()
	c := New(fs, &Config{Logger: logger, ErrClassifier: DefaultErrClassifier, TimeNow: time.Now})

	tail := c.Tail()
	require.NotNil(t, tail)

	connectFut := NewFuture[Session]()
	fs.Attributes().Set(SessionCreatedFutureKey, connectFut)

	c.FireSessionCreated(fs)

	result, err := connectFut.Result()
	require.NoError(t, err)
	assert.Equal(t, Session(fs), result)
}

func TestChainExceptionCaughtRecursionIsSwallowed(t *testing.T) {
	handler := &fakeHandler{failOn: func(event string) error {
		if event == "exceptionCaught" {
			return errors.New("handler itself failed")
		}
		return nil
	}}
	c, fs := newTestChain(handler)

	assert.NotPanics(t, func() {
		c.FireExceptionCaught(fs, errors.New("original"))
	})
	assert.Len(t, handler.exceptions, 1)
}

func TestChainStringRendersOrder(t *testing.T) {
	c, _ := newTestChain(&fakeHandler{})
	_, _ = c.AddLast("a", FilterAdapter{})
	_, _ = c.AddLast("b", FilterAdapter{})

	assert.Equal(t, "head -> a -> b -> tail", c.String())
}

func TestNewFromClonesStructureWithoutLifecycle(t *testing.T) {
	var events []string
	source, _ := newTestChain(&fakeHandler{})
	_, err := source.AddLast("a", &lifecycleFilter{name: "a", events: &events})
	require.NoError(t, err)
	events = nil

	fs2 := newFakeSession(&fakeHandler{})
	clone := NewFrom(fs2, nil, source)

	assert.Empty(t, events, "cloning must not invoke lifecycle hooks")
	assert.True(t, clone.Contains("a"))
}
