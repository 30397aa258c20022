package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fintrack/internal/log"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute)
	c.now = clk.now

	c.Set("k", "v")
	c.Set("other", "v")
	clk.t = clk.t.Add(30 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clk.t = clk.t.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestLRUDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("alice|all", 1)
	c.Set("alice|month", 2)
	c.Set("alice2|all", 3)
	c.Set("bob|all", 4)

	assert.Equal(t, 2, c.DeletePrefix("alice|"))
	_, ok := c.Get("alice2|all")
	assert.True(t, ok)
	_, ok = c.Get("bob|all")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestManagerCleanNowAndStop(t *testing.T) {
	clk := &clock{t: time.Now()}
	c := NewLRUCache[int](10, time.Second)
	c.now = clk.now
	c.Set("a", 1)

	m := NewManager(log.Discard())
	m.Register(c)
	m.StartCleanup(time.Hour)

	clk.t = clk.t.Add(time.Minute)
	assert.Equal(t, 1, m.CleanNow())

	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(log.Discard())
	m.Stop()
}
