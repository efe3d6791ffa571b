package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fixedClock hands out strictly increasing timestamps.
func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestCache() *Cache {
	c := NewCache()
	c.now = fixedClock()
	return c
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "level_1_windows", Normalize("  Level 1  Windows "))
	require.Equal(t, "walls", Normalize("Walls"))
}

func TestStoreAndGetStripsOSTPrefix(t *testing.T) {
	c := newTestCache()
	c.Store("OST_Windows", "OST_Windows", "get_elements_by_category", []string{"1", "2"})

	e, ok := c.Get("windows")
	require.True(t, ok)
	require.Equal(t, 2, e.Count)

	e, ok = c.Get("OST_WINDOWS")
	require.True(t, ok)
	require.Equal(t, []string{"1", "2"}, e.ElementIDs)
}

func TestStoreOverwrites(t *testing.T) {
	c := newTestCache()
	c.Store("Windows", "", "", []string{"1"})
	c.Store("windows", "", "", []string{"1", "2", "3"})

	require.Equal(t, 1, c.Len())
	e, _ := c.Get("Windows")
	require.Equal(t, 3, e.Count)
}

func TestResolveTiers(t *testing.T) {
	c := newTestCache()
	c.Store("windows", "", "", []string{"1"})
	c.Store("windows_level_1_filtered", "", "", []string{"2"})
	c.Store("doors", "", "", []string{"3"})

	// Exact beats prefix.
	e, ok := c.Resolve("windows")
	require.True(t, ok)
	require.Equal(t, "windows", e.Key)

	// Prefix tier.
	e, ok = c.Resolve("windows_level")
	require.True(t, ok)
	require.Equal(t, "windows_level_1_filtered", e.Key)

	// Substring tier.
	e, ok = c.Resolve("filtered")
	require.True(t, ok)
	require.Equal(t, "windows_level_1_filtered", e.Key)

	_, ok = c.Resolve("roofs")
	require.False(t, ok)
	_, ok = c.Resolve("")
	require.False(t, ok)
}

func TestResolvePrefersMostRecent(t *testing.T) {
	c := newTestCache()
	c.Store("walls_old_run", "", "", []string{"1"})
	c.Store("walls_new_run", "", "", []string{"2"})

	e, ok := c.Resolve("walls")
	require.True(t, ok)
	require.Equal(t, "walls_new_run", e.Key)
}

func TestListOrdersByRecency(t *testing.T) {
	c := newTestCache()
	c.Store("first", "", "", []string{"1"})
	c.Store("second", "", "", []string{"2"})

	list := c.List()
	require.Len(t, list, 2)
	require.Equal(t, "second", list[0].Key)
	require.Equal(t, "first", list[1].Key)
}

func TestDelete(t *testing.T) {
	c := newTestCache()
	c.Store("windows", "", "", []string{"1"})
	require.True(t, c.Delete("OST_Windows"))
	require.False(t, c.Delete("windows"))
	require.Equal(t, 0, c.Len())
}
