package engine

import (
	"context"
	"sync"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// feed fans events out to the configured sink and to any number of
// streaming subscribers. It implements tollgate.EventSink and is what
// the router and shim emit through.
type feed struct {
	sink tollgate.EventSink

	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

type subscriber struct {
	ch    chan types.Event
	kinds map[string]bool
}

func newFeed(sink tollgate.EventSink) *feed {
	return &feed{sink: sink, subs: make(map[int]*subscriber)}
}

func (f *feed) journaled() bool { return f.sink != nil }

// Emit implements tollgate.EventSink. Sink errors are swallowed and a
// slow subscriber drops events rather than stalling execution: the
// feed must never influence the invocation it observes.
func (f *feed) Emit(ctx context.Context, ev types.Event) error {
	if f.sink != nil {
		_ = f.sink.Emit(ctx, ev)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if len(sub.kinds) > 0 && !sub.kinds[ev.Kind] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe attaches a consumer with the given channel buffer,
// filtered to kinds (all kinds when empty). The returned cancel
// function detaches the consumer and closes its channel; it is safe
// to call more than once.
func (f *feed) Subscribe(buffer int, kinds ...string) (<-chan types.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{ch: make(chan types.Event, buffer)}
	if len(kinds) > 0 {
		sub.kinds = make(map[string]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = sub
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}
