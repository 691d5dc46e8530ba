package pricing

import "sync"

// Subscription identifies a handler registered on a Signal.
type Subscription uint64

// Signal is a typed event. Handlers run synchronously, in registration
// order, on the goroutine that triggered the event. All methods are safe for
// concurrent use.
type Signal[T any] struct {
	mu       sync.RWMutex
	next     Subscription
	handlers []signalHandler[T]
}

type signalHandler[T any] struct {
	id Subscription
	fn func(T)
}

// On registers fn and returns a Subscription for Off. A nil fn is ignored
// and yields the zero Subscription.
func (s *Signal[T]) On(fn func(T)) Subscription {
	if fn == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.handlers = append(s.handlers, signalHandler[T]{id: s.next, fn: fn})
	return s.next
}

// Once registers fn to run for the next event only.
func (s *Signal[T]) Once(fn func(T)) Subscription {
	if fn == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	var once sync.Once
	s.handlers = append(s.handlers, signalHandler[T]{id: id, fn: func(v T) {
		once.Do(func() {
			s.Off(id)
			fn(v)
		})
	}})
	return id
}

// Off removes a handler. It reports whether the subscription was registered.
func (s *Signal[T]) Off(id Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, h := range s.handlers {
		if h.id == id {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered handlers.
func (s *Signal[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// emit calls every handler with v. The handler list is copied first so
// handlers may subscribe or unsubscribe while running.
func (s *Signal[T]) emit(v T) {
	s.mu.RLock()
	handlers := make([]signalHandler[T], len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, h := range handlers {
		h.fn(v)
	}
}

// Events is the closed set of engine events.
type Events struct {
	// Change fires with the new snapshot, only when it differs from the last one.
	Change Signal[PriceSnapshot]

	// The *Set events fire on every successful mutation, even if the price
	// does not change.
	PlanSet     Signal[Plan]
	AddonSet    Signal[AddonSelection]
	CouponSet   Signal[Coupon]
	AddressSet  Signal[Address]
	CurrencySet Signal[CurrencyCode]

	// Error fires with the same error value the failing call returns.
	Error Signal[error]
}
