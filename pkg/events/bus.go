package events

import (
	"context"
	"fmt"
	"sync"
)

// Handler processes a delivered event. A non-nil error is reported on the
// bus's diagnostic channel; it does not stop delivery to other handlers.
type Handler func(ctx context.Context, ev Event) error

// Subscription identifies a registered handler. Zero value is invalid.
// Unsubscribing an invalid or already-removed handle is a no-op.
type Subscription struct {
	id  uint64
	typ Type
	all bool
}

// HandlerError reports a handler failure during dispatch.
type HandlerError struct {
	EventType Type
	EventID   string
	Err       error
}

func (e HandlerError) Error() string {
	return fmt.Sprintf("handler for %s (event %s): %v", e.EventType, e.EventID, e.Err)
}

// errBufSize bounds the diagnostic channel. When full, new reports are
// dropped rather than blocking dispatch.
const errBufSize = 64

type subscriber struct {
	id    uint64
	fn    Handler
	async bool
}

// Bus routes published events to subscribed handlers.
//
// Delivery contract: each published event reaches every handler subscribed
// to its type at the moment of dispatch, exactly once per handler, in
// subscription order. Synchronous handlers run to completion before the
// next handler in order begins; asynchronous handlers all start
// concurrently. Publish returns only after every handler, sync and async,
// has finished or failed.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Type][]subscriber
	all    []subscriber
	errs   chan HandlerError
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Type][]subscriber),
		errs: make(chan HandlerError, errBufSize),
	}
}

// Subscribe registers a synchronous handler for one event type.
func (b *Bus) Subscribe(typ Type, fn Handler) Subscription {
	return b.add(typ, fn, false)
}

// SubscribeAsync registers a handler that runs concurrently with the
// publisher's other async handlers. Publish still waits for it to finish.
func (b *Bus) SubscribeAsync(typ Type, fn Handler) Subscription {
	return b.add(typ, fn, true)
}

// SubscribeAll registers a synchronous handler that receives every event,
// after the type-specific handlers. Used by wildcard observers such as the
// event trail recorder.
func (b *Bus) SubscribeAll(fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.all = append(b.all, subscriber{id: b.nextID, fn: fn})
	return Subscription{id: b.nextID, all: true}
}

func (b *Bus) add(typ Type, fn Handler, async bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[typ] = append(b.subs[typ], subscriber{id: b.nextID, fn: fn, async: async})
	return Subscription{id: b.nextID, typ: typ}
}

// Unsubscribe removes a handler. Safe to call concurrently with Publish:
// the handler may or may not see an event already being dispatched, but
// receives none after Unsubscribe returns. Removing a handle twice is a
// no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	if sub.id == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.all {
		b.all = remove(b.all, sub.id)
		return
	}
	kept := remove(b.subs[sub.typ], sub.id)
	if len(kept) == 0 {
		delete(b.subs, sub.typ)
	} else {
		b.subs[sub.typ] = kept
	}
}

func remove(subs []subscriber, id uint64) []subscriber {
	for i, s := range subs {
		if s.id == id {
			out := make([]subscriber, 0, len(subs)-1)
			out = append(out, subs[:i]...)
			return append(out, subs[i+1:]...)
		}
	}
	return subs
}

// Errors exposes the diagnostic channel carrying handler failures.
func (b *Bus) Errors() <-chan HandlerError {
	return b.errs
}

// Publish delivers ev to all current subscribers of ev.Type, then to the
// wildcard subscribers. Publishing with zero subscribers is a no-op.
// Cancelling ctx is visible to handlers but does not abort delivery
// bookkeeping.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	typed := append([]subscriber(nil), b.subs[ev.Type]...)
	global := append([]subscriber(nil), b.all...)
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range typed {
		if s.async {
			wg.Add(1)
			go func(s subscriber) {
				defer wg.Done()
				b.invoke(ctx, s, ev)
			}(s)
			continue
		}
		b.invoke(ctx, s, ev)
	}
	wg.Wait()

	for _, s := range global {
		b.invoke(ctx, s, ev)
	}
}

// invoke runs one handler, converting panics and error returns into
// diagnostic reports.
func (b *Bus) invoke(ctx context.Context, s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.report(ev, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := s.fn(ctx, ev); err != nil {
		b.report(ev, err)
	}
}

func (b *Bus) report(ev Event, err error) {
	select {
	case b.errs <- HandlerError{EventType: ev.Type, EventID: ev.ID.String(), Err: err}:
	default:
		// Diagnostic channel full; drop rather than block dispatch.
	}
}
