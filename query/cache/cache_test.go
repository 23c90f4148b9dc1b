package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU(t *testing.T) {
	t.Run("Get and set", func(t *testing.T) {
		c := New[string](2, 0)
		c.Set("a", "1", 0)

		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, "1", v)

		_, ok = c.Get("b")
		assert.False(t, ok)

		s := c.Stats()
		assert.EqualValues(t, 1, s.Hits)
		assert.EqualValues(t, 1, s.Misses)
		assert.Equal(t, 50.0, s.HitRate)
	})

	t.Run("Evicts least recently used", func(t *testing.T) {
		c := New[int](2, 0)
		c.Set("a", 1, 0)
		c.Set("b", 2, 0)
		c.Get("a")
		c.Set("c", 3, 0)

		_, ok := c.Get("b")
		assert.False(t, ok)
		_, ok = c.Get("a")
		assert.True(t, ok)
		_, ok = c.Get("c")
		assert.True(t, ok)
		assert.EqualValues(t, 1, c.Stats().Evictions)
		assert.Equal(t, 2, c.Stats().Size)
	})

	t.Run("Update keeps size", func(t *testing.T) {
		c := New[int](2, 0)
		c.Set("a", 1, 0)
		c.Set("a", 2, 0)
		v, _ := c.Get("a")
		assert.Equal(t, 2, v)
		assert.Equal(t, 1, c.Stats().Size)
	})

	t.Run("Expires entries", func(t *testing.T) {
		now := time.Now()
		c := New[int](4, time.Minute)
		c.now = func() time.Time { return now }
		c.Set("a", 1, 0)
		c.Set("b", 2, -1)

		now = now.Add(2 * time.Minute)
		_, ok := c.Get("a")
		assert.False(t, ok)
		_, ok = c.Get("b")
		assert.True(t, ok)
	})

	t.Run("Invalidate prefix", func(t *testing.T) {
		c := New[int](8, 0)
		c.Set("GET:clientes:1", 1, 0)
		c.Set("GET:clientes:2", 2, 0)
		c.Set("GET:pedidos:1", 3, 0)

		assert.Equal(t, 2, c.InvalidatePrefix("GET:clientes:"))
		assert.Equal(t, 1, c.Stats().Size)

		c.Invalidate("GET:pedidos:1")
		c.Clear()
		assert.Equal(t, Stats{MaxSize: 8}, c.Stats())
	})
}

func TestKey(t *testing.T) {
	a := Key("GET:clientes:", "situacao=eq.ativo")
	b := Key("GET:clientes:", "situacao=eq.inativo")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Key("GET:clientes:", "situacao=eq.ativo"))
	assert.Equal(t, "GET:clientes:", a[:len("GET:clientes:")])
	assert.NotEqual(t, Key("p", "ab", "c"), Key("p", "a", "bc"))
}
