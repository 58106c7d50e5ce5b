// Package store provides single-valued observable state cells and a
// composed, read-only aggregation of them.
package store

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Option configures a Store.
type Option[S any] func(*Store[S])

// WithEquality sets the change predicate used to decide whether PutState
// should notify subscribers. The default is reflect.DeepEqual.
func WithEquality[S any](eq func(a, b S) bool) Option[S] {
	return func(s *Store[S]) { s.equals = eq }
}

// WithMerge sets the merge func UpdateState applies. The default replaces
// the whole value.
func WithMerge[S any](merge func(current, patch S) S) Option[S] {
	return func(s *Store[S]) { s.merge = merge }
}

// WithLogger sets the logger used to report panicking subscribers.
func WithLogger[S any](logger *zap.Logger) Option[S] {
	return func(s *Store[S]) { s.logger = logger }
}

type storeSubscriber[S any] struct {
	id uint64
	fn func(S)
}

// Store is a single-valued observable cell. Subscribers are notified
// synchronously on the mutating call, in subscription order; a panicking
// subscriber does not prevent later subscribers from running.
type Store[S any] struct {
	mu          sync.Mutex
	state       S
	equals      func(a, b S) bool
	merge       func(current, patch S) S
	logger      *zap.Logger
	nextID      uint64
	subscribers []storeSubscriber[S]
}

// New returns a store holding initial.
func New[S any](initial S, opts ...Option[S]) *Store[S] {
	s := &Store[S]{
		state:  initial,
		equals: func(a, b S) bool { return reflect.DeepEqual(a, b) },
		merge:  func(_, patch S) S { return patch },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetState returns the current value.
func (s *Store[S]) GetState() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PutState replaces the value and notifies subscribers iff it changed.
func (s *Store[S]) PutState(next S) {
	s.mu.Lock()
	if s.equals(s.state, next) {
		s.mu.Unlock()
		return
	}
	s.state = next
	subs := make([]storeSubscriber[S], len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, sub := range subs {
		s.notify(sub.fn, next)
	}
}

// UpdateState merges patch onto the current value, then behaves as PutState.
func (s *Store[S]) UpdateState(patch S) {
	s.mu.Lock()
	merged := s.merge(s.state, patch)
	s.mu.Unlock()
	s.PutState(merged)
}

// Subscribe registers fn and returns its unsubscribe func.
func (s *Store[S]) Subscribe(fn func(S)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, storeSubscriber[S]{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store[S]) notify(fn func(S), state S) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("store subscriber panicked", zap.Any("panic", r))
		}
	}()
	fn(state)
}

// Snapshot returns the current value untyped, for composition.
func (s *Store[S]) Snapshot() any {
	return s.GetState()
}

// SubscribeChange registers a value-free change callback, for composition.
func (s *Store[S]) SubscribeChange(fn func()) (unsubscribe func()) {
	return s.Subscribe(func(S) { fn() })
}
