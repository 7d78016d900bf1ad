package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"cockpit/internal/logging"
)

type Handler func(Signal)

type subscription struct {
	id      uint64
	handler Handler
	active  atomic.Bool
}

// Bus delivers signals to subscribers one at a time in publish order.
// A handler that publishes does not recurse; the new signal is queued and
// delivered after the current one has reached every subscriber. Signals
// published from other goroutines while a delivery is in progress are
// delivered by the goroutine already draining the queue.
type Bus struct {
	logger logging.Logger

	mu       sync.Mutex
	subs     map[Topic][]*subscription
	queue    []Signal
	draining bool
	nextID   uint64
}

func New(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Bus{
		logger: logger,
		subs:   map[Topic][]*subscription{},
	}
}

// Subscribe registers fn for topic and returns a function that removes it.
// Removing a subscription is idempotent and takes effect immediately, even
// for a signal currently being delivered.
func (b *Bus) Subscribe(topic Topic, fn Handler) func() {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, handler: fn}
	sub.active.Store(true)
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, candidate := range list {
			if candidate.id == sub.id {
				next := make([]*subscription, 0, len(list)-1)
				next = append(next, list[:i]...)
				next = append(next, list[i+1:]...)
				if len(next) == 0 {
					delete(b.subs, topic)
				} else {
					b.subs[topic] = next
				}
				break
			}
		}
	}
}

func (b *Bus) Publish(sig Signal) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.queue = append(b.queue, sig)
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	b.mu.Unlock()

	b.drain()
}

func (b *Bus) drain() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			b.queue = nil
			b.mu.Unlock()
			return
		}
		sig := b.queue[0]
		b.queue[0] = Signal{}
		b.queue = b.queue[1:]
		subs := append([]*subscription(nil), b.subs[sig.Topic]...)
		b.mu.Unlock()

		for _, sub := range subs {
			if !sub.active.Load() {
				continue
			}
			b.deliver(sub, sig)
		}
	}
}

func (b *Bus) deliver(sub *subscription, sig Signal) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus_handler_panic",
				logging.F("topic", string(sig.Topic)),
				logging.F("panic", fmt.Sprint(r)),
			)
		}
	}()
	sub.handler(sig)
}
