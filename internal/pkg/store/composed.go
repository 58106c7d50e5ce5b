package store

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Child is the surface a store must expose to participate in a Composed
// store.
type Child interface {
	Snapshot() any
	SubscribeChange(fn func()) (unsubscribe func())
}

type composedSubscriber struct {
	id uint64
	fn func(map[string]any)
}

// Composed aggregates several named child stores into one read-only
// observable whose value is the record {name: child value}. It recomputes
// and emits on any child change.
type Composed struct {
	mu          sync.Mutex
	names       []string
	children    map[string]Child
	logger      *zap.Logger
	nextID      uint64
	subscribers []composedSubscriber
}

// NewComposed builds a composed store over children. Aggregation is by
// field; children keep their own identities.
func NewComposed(children map[string]Child, logger *zap.Logger) *Composed {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)

	c := &Composed{names: names, children: children, logger: logger}
	for _, name := range names {
		children[name].SubscribeChange(c.emit)
	}
	return c
}

// GetFlatState returns the current composite record.
func (c *Composed) GetFlatState() map[string]any {
	out := make(map[string]any, len(c.names))
	for _, name := range c.names {
		out[name] = c.children[name].Snapshot()
	}
	return out
}

// Subscribe registers fn to receive every recomputed composite record.
func (c *Composed) Subscribe(fn func(map[string]any)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subscribers = append(c.subscribers, composedSubscriber{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subscribers {
			if sub.id == id {
				c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (c *Composed) emit() {
	state := c.GetFlatState()
	c.mu.Lock()
	subs := make([]composedSubscriber, len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Warn("composed store subscriber panicked", zap.Any("panic", r))
				}
			}()
			sub.fn(state)
		}()
	}
}
