package quote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStore_Capacity(t *testing.T) {
	t.Parallel()

	s := newStore(2, 0, nil)
	var evicted []string
	s.onEvict = func(sess *Session) { evicted = append(evicted, sess.ID) }

	s.put(&Session{ID: "a"})
	s.put(&Session{ID: "b"})

	_, ok := s.get("a")
	require.True(t, ok)

	s.put(&Session{ID: "c"})
	assert.Equal(t, []string{"b"}, evicted, "least recently used session is evicted")
	assert.Equal(t, 2, s.len())

	_, ok = s.get("b")
	assert.False(t, ok)
}

func TestStore_TTL(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newStore(10, time.Minute, clock.now)

	s.put(&Session{ID: "old"})
	clock.advance(45 * time.Second)
	s.put(&Session{ID: "new"})

	clock.advance(30 * time.Second)
	_, ok := s.get("old")
	assert.False(t, ok, "idle session expires on access")

	_, ok = s.get("new")
	assert.True(t, ok, "access refreshes the idle timer")

	clock.advance(2 * time.Minute)
	assert.Equal(t, 1, s.prune())
	assert.Equal(t, 0, s.len())
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	s := newStore(1, 0, nil)
	s.put(&Session{ID: "a"})
	assert.True(t, s.delete("a"))
	assert.False(t, s.delete("a"))
}

func TestNewStore_PanicsOnZeroCapacity(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { newStore(0, 0, nil) })
}
