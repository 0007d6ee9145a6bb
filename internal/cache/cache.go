// Package cache holds entity snapshots looked up by kind and id for the
// lifetime of the process.
//
// Entries never expire and are only replaced by writes, so memory grows with
// the number of distinct ids seen. That is fine for a club-sized membership.
package cache

import (
	"strconv"

	gocache "github.com/patrickmn/go-cache"
)

// Cache maps (kind, id) to a snapshot or to a nil tombstone meaning
// "confirmed absent". It is safe for concurrent use.
type Cache struct {
	store *gocache.Cache
}

// New creates an empty cache. Create one at process start and hand it to the
// services that read through it.
func New() *Cache {
	return &Cache{store: gocache.New(gocache.NoExpiration, 0)}
}

func key(kind string, id int64) string {
	return kind + ":" + strconv.FormatInt(id, 10)
}

// Get returns the stored value and whether the key was present. A present
// key with a nil value is a tombstone.
func (c *Cache) Get(kind string, id int64) (any, bool) {
	return c.store.Get(key(kind, id))
}

// Set stores value, which may be nil, and returns it.
func (c *Cache) Set(kind string, id int64, value any) any {
	c.store.Set(key(kind, id), value, gocache.NoExpiration)
	return value
}

// Forget drops the entry so the next lookup goes to storage.
func (c *Cache) Forget(kind string, id int64) {
	c.store.Delete(key(kind, id))
}

// Len reports the number of entries, tombstones included.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}
