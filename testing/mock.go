// Package tolltest provides test utilities for engine and host
// development: configurable mocks, a scriptable call target, a funded
// test harness, and a cross-transport connection conformance suite.
package tolltest

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// Compile-time interface checks.
var (
	_ tollgate.Aggregator = (*MockAggregator)(nil)
	_ tollgate.Dispatcher = (*MockDispatcher)(nil)
	_ tollgate.EventSink  = (*Collector)(nil)
	_ tollgate.CallTarget = (*ScriptTarget)(nil)
)

// MockAggregator is a configurable tollgate.Aggregator. An
// unconfigured mock reports every call as a success with no return
// data.
type MockAggregator struct {
	AggregateFn func(context.Context, *tollgate.Frame, []types.BatchCall, *big.Int) ([]types.CallResult, error)
	Calls       atomic.Int64
}

func (m *MockAggregator) Aggregate(ctx context.Context, frame *tollgate.Frame, calls []types.BatchCall, total *big.Int) ([]types.CallResult, error) {
	m.Calls.Add(1)
	if m.AggregateFn != nil {
		return m.AggregateFn(ctx, frame, calls, total)
	}
	results := make([]types.CallResult, len(calls))
	for i := range results {
		results[i] = types.CallResult{Success: true}
	}
	return results, nil
}

// MockDispatcher is a configurable tollgate.Dispatcher. An
// unconfigured mock returns empty return data.
type MockDispatcher struct {
	CallFn func(context.Context, *tollgate.Frame, types.BatchCall) ([]byte, error)
	Calls  atomic.Int64
}

func (m *MockDispatcher) Call(ctx context.Context, frame *tollgate.Frame, call types.BatchCall) ([]byte, error) {
	m.Calls.Add(1)
	if m.CallFn != nil {
		return m.CallFn(ctx, frame, call)
	}
	return nil, nil
}

// Collector is an in-memory tollgate.EventSink recording every event
// in order. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []types.Event
}

func (c *Collector) Emit(_ context.Context, ev types.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// Events returns a copy of everything collected so far.
func (c *Collector) Events() []types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Event, len(c.events))
	copy(out, c.events)
	return out
}

// ByKind returns collected events of one kind, in order.
func (c *Collector) ByKind(kind string) []types.Event {
	var out []types.Event
	for _, ev := range c.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops everything collected so far.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// ReceivedCall is one call a ScriptTarget observed.
type ReceivedCall struct {
	Host   types.Address
	Caller types.Address
	Value  *big.Int
	Input  []byte
}

// ScriptTarget is a scriptable tollgate.CallTarget: queued responses
// play back in order and every received call is recorded. With an
// empty queue it returns DefaultReturn.
type ScriptTarget struct {
	// DefaultReturn is returned when no queued response remains.
	DefaultReturn []byte
	// HandleFn overrides all scripting when set.
	HandleFn func(context.Context, *tollgate.Frame, []byte) ([]byte, error)

	mu       sync.Mutex
	queue    []scriptedResponse
	received []ReceivedCall
}

type scriptedResponse struct {
	out []byte
	err error
}

// Respond queues a successful response.
func (s *ScriptTarget) Respond(out []byte) *ScriptTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scriptedResponse{out: out})
	return s
}

// Fail queues a failure whose revert payload is data, verbatim.
func (s *ScriptTarget) Fail(data []byte) *ScriptTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scriptedResponse{err: tollgate.Revert(data)})
	return s
}

func (s *ScriptTarget) HandleCall(ctx context.Context, frame *tollgate.Frame, input []byte) ([]byte, error) {
	if s.HandleFn != nil {
		return s.HandleFn(ctx, frame, input)
	}
	s.mu.Lock()
	s.received = append(s.received, ReceivedCall{
		Host:   frame.Host,
		Caller: frame.Caller,
		Value:  new(big.Int).Set(frame.Value),
		Input:  append([]byte(nil), input...),
	})
	var resp scriptedResponse
	if len(s.queue) > 0 {
		resp, s.queue = s.queue[0], s.queue[1:]
	} else {
		resp = scriptedResponse{out: s.DefaultReturn}
	}
	s.mu.Unlock()
	return resp.out, resp.err
}

// Received returns a copy of every call observed so far.
func (s *ScriptTarget) Received() []ReceivedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReceivedCall, len(s.received))
	copy(out, s.received)
	return out
}
