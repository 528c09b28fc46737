// Package cache is an in-memory TTL + LRU store for expensive generated
// artifacts. It is best effort: internal failures surface as misses.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is one cached artifact.
type Entry[V any] struct {
	Key        string
	Owner      string
	Payload    V
	CreatedAt  time.Time
	ExpiresAt  time.Time
	VersionTag string
}

func (e *Entry[V]) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	Size        int    `json:"size"`
	Capacity    int    `json:"capacity"`
}

// Versioner derives a change-detection tag from a payload.
type Versioner[V any] func(V) (string, error)

type Option[V any] func(*Cache[V])

func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// WithDefaultTTL applies when Set is called with a non-positive ttl.
func WithDefaultTTL[V any](ttl time.Duration) Option[V] {
	return func(c *Cache[V]) { c.defaultTTL = ttl }
}

func WithVersioner[V any](v Versioner[V]) Option[V] {
	return func(c *Cache[V]) { c.versioner = v }
}

// Cache is safe for concurrent use. The list front is the most recently used
// entry; a fresh insert goes to the front, so among equally idle entries the
// oldest insertion sits closest to the back.
type Cache[V any] struct {
	mu         sync.Mutex
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time
	versioner  Versioner[V]

	ll    *list.List
	items map[string]*list.Element

	hits, misses, evictions, expirations uint64
}

// New creates a cache holding at most capacity entries. A non-positive
// capacity is treated as 1.
func New[V any](capacity int, opts ...Option[V]) *Cache[V] {
	if capacity < 1 {
		capacity = 1
	}
	c := &Cache[V]{
		capacity:  capacity,
		now:       time.Now,
		versioner: func(v V) (string, error) { return HashInput(v) },
		ll:        list.New(),
		items:     make(map[string]*list.Element, capacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a live entry and marks it most recently used. Expired entries
// are removed and reported as a miss.
func (c *Cache[V]) Get(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return Entry[V]{}, false
	}
	e := el.Value.(*Entry[V])
	if e.expired(c.now()) {
		c.removeElement(el)
		c.expirations++
		c.misses++
		return Entry[V]{}, false
	}
	c.ll.MoveToFront(el)
	c.hits++
	return *e, true
}

// Has reports whether a live entry exists without touching recency or counters.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if el.Value.(*Entry[V]).expired(c.now()) {
		c.removeElement(el)
		c.expirations++
		return false
	}
	return true
}

// Set stores payload under key. When the cache is full, expired entries are
// reclaimed first and otherwise the least recently used entry is evicted.
func (c *Cache[V]) Set(key, owner string, payload V, ttl time.Duration) {
	tag := c.version(payload)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*Entry[V])
		e.Owner = owner
		e.Payload = payload
		e.CreatedAt = now
		e.ExpiresAt = expiresAt
		e.VersionTag = tag
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		c.expirations += uint64(c.pruneLocked(now))
	}
	for c.ll.Len() >= c.capacity {
		c.removeElement(c.ll.Back())
		c.evictions++
	}

	e := &Entry[V]{
		Key:        key,
		Owner:      owner,
		Payload:    payload,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
		VersionTag: tag,
	}
	c.items[key] = c.ll.PushFront(e)
}

// Invalidate removes key and reports whether it was present.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// InvalidateByOwner removes every entry tied to owner and returns the count.
func (c *Cache[V]) InvalidateByOwner(owner string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*Entry[V]).Owner == owner {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

// InvalidateVersion removes key only if its stored version matches tag.
func (c *Cache[V]) InvalidateVersion(key, tag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok || el.Value.(*Entry[V]).VersionTag != tag {
		return false
	}
	c.removeElement(el)
	return true
}

// PruneExpired removes every expired entry and returns the count.
func (c *Cache[V]) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.pruneLocked(c.now())
	c.expirations += uint64(n)
	return n
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        c.ll.Len(),
		Capacity:    c.capacity,
	}
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache[V]) pruneLocked(now time.Time) int {
	removed := 0
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*Entry[V]).expired(now) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *Cache[V]) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*Entry[V]).Key)
}

// version runs the versioner outside the lock; a failing or panicking
// versioner leaves the tag empty.
func (c *Cache[V]) version(payload V) (tag string) {
	if c.versioner == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			tag = ""
		}
	}()
	tag, err := c.versioner(payload)
	if err != nil {
		return ""
	}
	return tag
}
