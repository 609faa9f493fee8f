package caching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddnet/maproom/mapmodel"
)

func TestMapCachePutGet(t *testing.T) {
	c, err := NewMapCache(1024 * 1024)
	require.NoError(t, err)
	defer c.Close()

	m := mapmodel.Blank(10, 10)
	c.Put("alpha", m, 1024)
	time.Sleep(10 * time.Millisecond) // ristretto applies writes asynchronously

	got, ok := c.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, m, got)
}

func TestMapCacheMissOnUnknownRoom(t *testing.T) {
	c, err := NewMapCache(1024 * 1024)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestMapCacheInvalidate(t *testing.T) {
	c, err := NewMapCache(1024 * 1024)
	require.NoError(t, err)
	defer c.Close()

	m := mapmodel.Blank(10, 10)
	c.Put("alpha", m, 1024)
	time.Sleep(10 * time.Millisecond)

	c.Invalidate("alpha")
	_, ok := c.Get("alpha")
	assert.False(t, ok)
}

func TestMapCacheGetReturnsIndependentClone(t *testing.T) {
	c, err := NewMapCache(1024 * 1024)
	require.NoError(t, err)
	defer c.Close()

	m := mapmodel.Blank(10, 10)
	c.Put("alpha", m, 1024)
	time.Sleep(10 * time.Millisecond)

	got, _ := c.Get("alpha")
	got.Groups[0].Layers[0].Name = "mutated"

	again, _ := c.Get("alpha")
	assert.NotEqual(t, "mutated", again.Groups[0].Layers[0].Name)
}
