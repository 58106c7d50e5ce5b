// Package messenger implements the restricted publish/subscribe bus
// controllers announce lifecycle events on.
package messenger

import (
	"sync"

	"go.uber.org/zap"
)

type subscriber struct {
	id uint64
	fn func()
}

// Bus is a synchronous event bus. Subscribers for an event run in
// subscription order on the publishing goroutine; a panicking subscriber
// does not prevent later subscribers from running.
type Bus struct {
	mu          sync.Mutex
	logger      *zap.Logger
	nextID      uint64
	subscribers map[string][]subscriber
}

// New returns an empty bus.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:      logger.Named("Messenger"),
		subscribers: make(map[string][]subscriber),
	}
}

// Publish delivers event to every subscriber.
func (b *Bus) Publish(event string) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subscribers[event]))
	copy(subs, b.subscribers[event])
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(event, sub.fn)
	}
}

// Subscribe registers fn for event and returns its unsubscribe func.
func (b *Bus) Subscribe(event string, fn func()) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers[event] = append(b.subscribers[event], subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[event]
		for i, sub := range subs {
			if sub.id == id {
				b.subscribers[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) deliver(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event subscriber panicked",
				zap.String("event", event),
				zap.Any("panic", r))
		}
	}()
	fn()
}

// Restricted is a namespaced view of a Bus: every event name is prefixed
// with "<namespace>:" so controllers cannot collide on a shared bus.
type Restricted struct {
	bus       *Bus
	namespace string
}

// Restrict returns a namespaced sub-bus.
func (b *Bus) Restrict(namespace string) *Restricted {
	return &Restricted{bus: b, namespace: namespace}
}

// Publish publishes the namespaced event.
func (r *Restricted) Publish(event string) {
	r.bus.Publish(r.namespace + ":" + event)
}

// Subscribe subscribes to the namespaced event.
func (r *Restricted) Subscribe(event string, fn func()) (unsubscribe func()) {
	return r.bus.Subscribe(r.namespace+":"+event, fn)
}
