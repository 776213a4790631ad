// Package notify provides typed one-to-many notification channels.
package notify

// Token identifies a single subscription on a Signal.
type Token struct {
	id uint64
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// Signal is an ordered list of subscribers. Emit delivers to subscribers in
// registration order. A Signal is not safe for concurrent use; it is owned by
// the goroutine that drives the dispatch loop.
type Signal[T any] struct {
	next      uint64
	listeners []listener[T]
}

// New returns an empty Signal.
func New[T any]() *Signal[T] {
	return &Signal[T]{}
}

// Subscribe registers fn and returns the token that removes it.
func (s *Signal[T]) Subscribe(fn func(T)) Token {
	s.next++
	s.listeners = append(s.listeners, listener[T]{id: s.next, fn: fn})
	return Token{id: s.next}
}

// Unsubscribe removes the subscription identified by tok. It reports whether a
// subscription was removed; a token is consumed by its first use.
func (s *Signal[T]) Unsubscribe(tok Token) bool {
	for i, l := range s.listeners {
		if l.id != tok.id {
			continue
		}
		// Copy instead of shifting in place so an in-flight Emit keeps its snapshot.
		next := make([]listener[T], 0, len(s.listeners)-1)
		next = append(next, s.listeners[:i]...)
		next = append(next, s.listeners[i+1:]...)
		s.listeners = next
		return true
	}
	return false
}

// Emit calls every subscriber with v. Subscriptions added or removed by a
// subscriber take effect on the next Emit.
func (s *Signal[T]) Emit(v T) {
	if s == nil {
		return
	}
	snapshot := s.listeners
	for _, l := range snapshot {
		l.fn(v)
	}
}

// Len returns the number of subscribers.
func (s *Signal[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.listeners)
}
