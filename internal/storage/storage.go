// Package storage holds named element ID sets captured by tool calls, so a
// later conversation turn can say "the stored windows" instead of repeating
// IDs.
package storage

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is one stored element set.
type Entry struct {
	Key        string    `json:"key"`
	Label      string    `json:"label"`
	Category   string    `json:"category,omitempty"`
	ElementIDs []string  `json:"element_ids"`
	Count      int       `json:"count"`
	Source     string    `json:"source,omitempty"`
	StoredAt   time.Time `json:"stored_at"`
}

// Cache is a synchronized in-memory store. One instance is shared by every
// tool call within the gateway process.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Normalize turns a human label into a storage key: lower case with spaces
// collapsed to underscores.
func Normalize(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.Join(strings.Fields(key), "_")
	return key
}

// lookupKey additionally strips a leading "ost_" so that "OST_Windows" and
// "windows" address the same entry.
func lookupKey(name string) string {
	return strings.TrimPrefix(Normalize(name), "ost_")
}

// Store saves the element set under the label's normalized key, overwriting
// any previous set with that key. It returns the stored entry.
func (c *Cache) Store(label, category, source string, elementIDs []string) Entry {
	key := lookupKey(label)
	entry := Entry{
		Key:        key,
		Label:      label,
		Category:   category,
		ElementIDs: append([]string(nil), elementIDs...),
		Count:      len(elementIDs),
		Source:     source,
		StoredAt:   c.now(),
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return entry
}

// Get returns the entry stored under the exact normalized key.
func (c *Cache) Get(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[lookupKey(name)]
	return e, ok
}

// List returns all entries, most recently stored first.
func (c *Cache) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StoredAt.Equal(out[j].StoredAt) {
			return out[i].StoredAt.After(out[j].StoredAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Resolve finds the entry a loose reference points at. Search tiers: exact
// key, then keys the reference is a prefix of, then keys containing it as a
// substring. Within a tier, the most recently stored entry wins.
func (c *Cache) Resolve(name string) (Entry, bool) {
	key := lookupKey(name)
	if key == "" {
		return Entry{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[key]; ok {
		return e, true
	}

	if e, ok := c.newestWhere(func(k string) bool { return strings.HasPrefix(k, key) }); ok {
		return e, true
	}
	return c.newestWhere(func(k string) bool { return strings.Contains(k, key) })
}

func (c *Cache) newestWhere(match func(key string) bool) (Entry, bool) {
	var best Entry
	found := false
	for k, e := range c.entries {
		if !match(k) {
			continue
		}
		if !found || e.StoredAt.After(best.StoredAt) ||
			(e.StoredAt.Equal(best.StoredAt) && k > best.Key) {
			best = e
			found = true
		}
	}
	return best, found
}

// Delete removes an entry by loose reference and reports whether anything
// was removed.
func (c *Cache) Delete(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := lookupKey(name)
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Len reports the number of stored sets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
