// Package observable holds values whose every change is atomic and immediately visible
// to the next read, plus optional push delivery to subscribers.
package observable

import "sync"

// Value is a mutable cell. Subscribers are conflated: a slow subscriber only ever sees
// the most recent value, never a backlog.
type Value[T any] struct {
	mu   sync.RWMutex
	v    T
	subs map[int]chan T
	next int
}

// NewValue returns a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial, subs: make(map[int]chan T)}
}

// Get returns the current value.
func (o *Value[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.v
}

// Set replaces the value and notifies subscribers.
func (o *Value[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v = v
	o.publish(v)
}

// Update applies fn to the current value under the write lock and stores the result.
// fn must not call back into o.
func (o *Value[T]) Update(fn func(T) T) T {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v = fn(o.v)
	o.publish(o.v)
	return o.v
}

// Subscribe returns a channel that first yields the current value and then every later
// one, plus a cancel func that closes the channel.
func (o *Value[T]) Subscribe() (<-chan T, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.next
	o.next++
	ch := make(chan T, 1)
	ch <- o.v
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
}

func (o *Value[T]) publish(v T) {
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Stream fans events out to subscribers. Unlike Value it keeps no state; a subscriber
// whose buffer is full misses events rather than blocking the publisher.
type Stream[T any] struct {
	mu   sync.RWMutex
	subs map[int]chan T
	next int
	size int
}

// NewStream returns a Stream whose subscribers buffer up to size events.
func NewStream[T any](size int) *Stream[T] {
	if size <= 0 {
		size = 16
	}
	return &Stream[T]{subs: make(map[int]chan T), size: size}
}

// Publish delivers ev to every subscriber with room in its buffer.
func (s *Stream[T]) Publish(ev T) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber.
func (s *Stream[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan T, s.size)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}
