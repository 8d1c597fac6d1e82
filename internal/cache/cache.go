// Package cache provides a TTL-bounded, size-bounded, least-recently-used
// result cache keyed by a canonicalized query descriptor.
//
// Eviction and expiry are delegated to hashicorp's expirable LRU; this
// package owns key canonicalization and the tenant-wide invalidation
// contract (re-indexing or deleting a document clears the whole tenant's
// cached results rather than attempting fine-grained invalidation).
package cache

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults for cache construction.
const (
	DefaultCapacity = 100
	DefaultTTL      = 5 * time.Minute
)

// Key identifies one cached search response. All fields participate in the
// canonical serialization; two keys serialize identically iff every field
// matches (filters compare order-independently).
type Key struct {
	Query         string
	Tenant        string // empty = shared/public corpus
	Filters       map[string]string
	Limit         int
	Offset        int
	Threshold     float64
	Hybrid        bool
	VectorWeight  float64
	IncludePublic bool
}

// String returns the deterministic canonical form of the key.
func (k Key) String() string {
	var sb strings.Builder
	sb.WriteString("q=")
	sb.WriteString(strings.ToLower(strings.TrimSpace(k.Query)))
	sb.WriteString("|t=")
	sb.WriteString(k.Tenant)

	keys := make([]string, 0, len(k.Filters))
	for fk := range k.Filters {
		keys = append(keys, fk)
	}
	sort.Strings(keys)
	for _, fk := range keys {
		sb.WriteString("|f:")
		sb.WriteString(fk)
		sb.WriteByte('=')
		sb.WriteString(k.Filters[fk])
	}

	sb.WriteString("|l=")
	sb.WriteString(strconv.Itoa(k.Limit))
	sb.WriteString("|o=")
	sb.WriteString(strconv.Itoa(k.Offset))
	sb.WriteString("|th=")
	sb.WriteString(strconv.FormatFloat(k.Threshold, 'f', -1, 64))
	sb.WriteString("|h=")
	sb.WriteString(strconv.FormatBool(k.Hybrid))
	sb.WriteString("|w=")
	sb.WriteString(strconv.FormatFloat(k.VectorWeight, 'f', -1, 64))
	sb.WriteString("|p=")
	sb.WriteString(strconv.FormatBool(k.IncludePublic))
	return sb.String()
}

// Cache is a bounded LRU with per-entry TTL.
//
// Cache is safe for concurrent use by multiple goroutines; LRU reordering
// on read is serialized internally.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// New creates a cache. capacity <= 0 and ttl <= 0 fall back to defaults.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{lru: expirable.NewLRU[string, V](capacity, nil, ttl)}
}

// Get returns the cached value for key. A hit refreshes recency; an expired
// entry behaves as a miss.
func (c *Cache[V]) Get(key Key) (V, bool) {
	return c.lru.Get(key.String())
}

// Put stores value under key, evicting the least-recently-used entry when
// the cache is at capacity.
func (c *Cache[V]) Put(key Key, value V) {
	c.lru.Add(key.String(), value)
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}
