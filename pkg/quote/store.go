package quote

import (
	"container/list"
	"sync"
	"time"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

// Session is a stateful checkout backed by its own Engine.
type Session struct {
	ID        string
	Engine    *pricing.Engine
	CreatedAt time.Time

	lastUsed time.Time
}

// store keeps sessions in least-recently-used order. Sessions beyond the
// capacity and sessions idle for longer than ttl are dropped.
type store struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time
	onEvict  func(*Session)

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List
}

// newStore panics when capacity is not positive.
func newStore(capacity int, ttl time.Duration, now func() time.Time) *store {
	if capacity <= 0 {
		panic("quote: session capacity must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &store{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

// get returns the session and marks it used. Expired sessions are dropped.
func (s *store) get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return nil, false
	}
	sess := elem.Value.(*Session)
	now := s.now()
	if s.expiredLocked(sess, now) {
		s.removeLocked(elem)
		return nil, false
	}

	sess.lastUsed = now
	s.eviction.MoveToFront(elem)
	return sess, true
}

// put stores a new session, evicting the least recently used one when full.
func (s *store) put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.lastUsed = s.now()
	if elem, ok := s.items[sess.ID]; ok {
		elem.Value = sess
		s.eviction.MoveToFront(elem)
		return
	}

	s.items[sess.ID] = s.eviction.PushFront(sess)
	for s.eviction.Len() > s.capacity {
		s.removeLocked(s.eviction.Back())
	}
}

// delete drops the session and reports whether it existed.
func (s *store) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if ok {
		s.removeLocked(elem)
	}
	return ok
}

// prune drops every expired session and returns how many were dropped.
func (s *store) prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	// Oldest entries sit at the back; stop at the first live one.
	for elem := s.eviction.Back(); elem != nil; {
		sess := elem.Value.(*Session)
		if !s.expiredLocked(sess, now) {
			break
		}
		prev := elem.Prev()
		s.removeLocked(elem)
		elem = prev
		n++
	}
	return n
}

func (s *store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eviction.Len()
}

func (s *store) expiredLocked(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastUsed) > s.ttl
}

// Must be called with lock held.
func (s *store) removeLocked(elem *list.Element) {
	s.eviction.Remove(elem)
	sess := elem.Value.(*Session)
	delete(s.items, sess.ID)

	if s.onEvict != nil {
		s.onEvict(sess)
	}
}
