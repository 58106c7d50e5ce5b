package proxy

import (
	"strings"
	"sync"

	"github.com/Frankramos181422/metamask-extension/internal/pkg/events"
)

// EmitterTarget is the event surface an EmitterProxy can wrap.
type EmitterTarget interface {
	On(event string, fn events.Listener) (off func())
	Once(event string, fn events.Listener) (off func())
}

// EventFilter controls which subscriptions survive a target swap.
type EventFilter string

const (
	// FilterNone re-binds every ledgered subscription across swaps.
	FilterNone EventFilter = ""

	// FilterSkipInternal excludes events whose name begins with an
	// underscore from the ledger; those are target-private lifecycle
	// signals and must not follow the subscriber to a new target.
	FilterSkipInternal EventFilter = "skipInternal"
)

type ledgerEntry struct {
	id      uint64
	event   string
	fn      events.Listener
	once    bool
	offCurr func()
}

// EmitterProxy forwards event subscriptions to the current target and keeps
// a ledger of them. On SetTarget every ledgered listener is deregistered
// from the old target and transparently re-registered on the new one, so
// subscribers holding the proxy keep receiving events after a swap and never
// see duplicates from the old target.
type EmitterProxy struct {
	mu     sync.Mutex
	filter EventFilter
	target EmitterTarget
	nextID uint64
	ledger map[uint64]*ledgerEntry
	order  []uint64
}

// NewEmitterProxy returns a proxy over target with the given filter.
func NewEmitterProxy(target EmitterTarget, filter EventFilter) *EmitterProxy {
	return &EmitterProxy{
		filter: filter,
		target: target,
		ledger: make(map[uint64]*ledgerEntry),
	}
}

func (p *EmitterProxy) isInternal(event string) bool {
	return p.filter == FilterSkipInternal && strings.HasPrefix(event, "_")
}

// On subscribes fn to event through the proxy.
func (p *EmitterProxy) On(event string, fn events.Listener) (off func()) {
	return p.subscribe(event, fn, false)
}

// Once subscribes fn for a single delivery of event. Delivery removes the
// subscription from the ledger as well as from the target.
func (p *EmitterProxy) Once(event string, fn events.Listener) (off func()) {
	return p.subscribe(event, fn, true)
}

func (p *EmitterProxy) subscribe(event string, fn events.Listener, once bool) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isInternal(event) {
		// registered on the current target only, never ledgered
		if once {
			return p.target.Once(event, fn)
		}
		return p.target.On(event, fn)
	}

	p.nextID++
	entry := &ledgerEntry{id: p.nextID, event: event, fn: fn, once: once}
	p.ledger[entry.id] = entry
	p.order = append(p.order, entry.id)
	p.bindLocked(entry, p.target)

	id := entry.id
	return func() { p.unsubscribe(id) }
}

func (p *EmitterProxy) bindLocked(entry *ledgerEntry, target EmitterTarget) {
	if entry.once {
		id := entry.id
		fn := entry.fn
		entry.offCurr = target.Once(entry.event, func(args ...any) {
			p.dropEntry(id)
			fn(args...)
		})
		return
	}
	entry.offCurr = target.On(entry.event, entry.fn)
}

func (p *EmitterProxy) dropEntry(id uint64) {
	p.mu.Lock()
	entry, ok := p.ledger[id]
	if ok {
		p.removeLocked(id)
	}
	p.mu.Unlock()
	// a swap racing the delivery may have re-bound this entry on the new
	// target; offCurr always points at the live registration
	if ok && entry.offCurr != nil {
		entry.offCurr()
	}
}

func (p *EmitterProxy) unsubscribe(id uint64) {
	p.mu.Lock()
	entry, ok := p.ledger[id]
	if ok {
		p.removeLocked(id)
	}
	p.mu.Unlock()
	if ok && entry.offCurr != nil {
		entry.offCurr()
	}
}

func (p *EmitterProxy) removeLocked(id uint64) {
	delete(p.ledger, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i:i], p.order[i+1:]...)
			return
		}
	}
}

// SetTarget swaps the backing target, rebinding every ledgered subscription
// in its original registration order.
func (p *EmitterProxy) SetTarget(target EmitterTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.order {
		entry := p.ledger[id]
		if entry.offCurr != nil {
			entry.offCurr()
		}
		p.bindLocked(entry, target)
	}
	p.target = target
}

// LedgerSize returns the number of swap-surviving subscriptions.
func (p *EmitterProxy) LedgerSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ledger)
}
