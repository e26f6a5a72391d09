package query

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the lifecycle state of a cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of a cache entry.
type Snapshot struct {
	Key         Key
	Data        any
	HasData     bool
	Err         error
	Status      Status
	Fetching    bool
	Invalidated bool
	UpdatedAt   time.Time
	Observers   int
}

type entry struct {
	key         Key
	data        any
	hasData     bool
	err         error
	status      Status
	fetching    bool
	invalidated bool
	// invalidSeq is the sequence number of the last invalidation; a fetch
	// that started before it commits as already stale.
	invalidSeq uint64
	updatedAt  time.Time
	lastAccess time.Time
	gcTime     time.Duration
	observers  int
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:         e.key,
		Data:        e.data,
		HasData:     e.hasData,
		Err:         e.err,
		Status:      e.status,
		Fetching:    e.fetching,
		Invalidated: e.invalidated,
		UpdatedAt:   e.updatedAt,
		Observers:   e.observers,
	}
}

// Cache is the process-wide query cache. It is safe for concurrent use and is
// only mutated through fetch, set, invalidate, remove and GC.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	seq       uint64
	now       func() time.Time
	defaultGC time.Duration
	logger    *zap.Logger
}

// NewCache creates an empty cache. gcTime is applied to entries that do not
// carry their own.
func NewCache(gcTime time.Duration, now func() time.Time, logger *zap.Logger) *Cache {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if gcTime <= 0 {
		gcTime = DefaultGCTime
	}
	return &Cache{
		entries:   make(map[string]*entry),
		now:       now,
		defaultGC: gcTime,
		logger:    logger,
	}
}

// Get returns a snapshot of the entry for key.
func (c *Cache) Get(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.Hash()]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Set stores data under key as a fresh successful result.
func (c *Cache) Set(key Key, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key, 0)
	now := c.now()
	e.data = data
	e.hasData = true
	e.err = nil
	e.status = StatusSuccess
	e.invalidated = false
	e.updatedAt = now
	e.lastAccess = now
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate marks every entry matching one of the prefixes as stale and
// returns the keys it touched.
func (c *Cache) Invalidate(prefixes ...Key) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	var touched []Key
	for _, e := range c.entries {
		for _, p := range prefixes {
			if e.key.HasPrefix(p) {
				e.invalidated = true
				e.invalidSeq = c.seq
				touched = append(touched, e.key)
				break
			}
		}
	}
	return touched
}

// GC evicts unobserved, idle entries whose gc time has elapsed since last use.
func (c *Cache) GC() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for hash, e := range c.entries {
		if e.observers > 0 || e.fetching {
			continue
		}
		if now.Sub(e.lastAccess) >= e.gcTime {
			delete(c.entries, hash)
			evicted++
		}
	}
	if evicted > 0 {
		c.logger.Debug("Evicted cache entries", zap.Int("count", evicted))
	}
	return evicted
}

// fresh returns the cached data when it is a success younger than staleTime
// and not invalidated.
func (c *Cache) fresh(key Key, staleTime time.Duration) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.Hash()]
	if !ok || !e.hasData || e.status != StatusSuccess || e.invalidated {
		return Snapshot{}, false
	}
	now := c.now()
	if now.Sub(e.updatedAt) >= staleTime {
		return Snapshot{}, false
	}
	e.lastAccess = now
	return e.snapshot(), true
}

// begin marks key as fetching and returns the sequence the fetch started at.
func (c *Cache) begin(key Key, gcTime time.Duration) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key, gcTime)
	e.fetching = true
	if !e.hasData {
		e.status = StatusLoading
	}
	return c.seq
}

// commit records the outcome of a fetch that started at startSeq.
func (c *Cache) commit(key Key, startSeq uint64, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key, 0)
	now := c.now()
	e.fetching = false
	e.lastAccess = now
	if err != nil {
		e.err = err
		e.status = StatusError
		return
	}
	e.data = data
	e.hasData = true
	e.err = nil
	e.status = StatusSuccess
	e.updatedAt = now
	e.invalidated = e.invalidSeq > startSeq
}

// abort drops a fetch whose result nobody wants anymore.
func (c *Cache) abort(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.Hash()]
	if !ok {
		return
	}
	e.fetching = false
	if e.status == StatusLoading {
		e.status = StatusIdle
	}
}

func (c *Cache) retain(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key, 0)
	e.observers++
}

func (c *Cache) release(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.Hash()]
	if !ok {
		return
	}
	if e.observers > 0 {
		e.observers--
	}
	e.lastAccess = c.now()
}

// entryLocked returns the entry for key, creating an idle one if needed.
// Must be called with c.mu held.
func (c *Cache) entryLocked(key Key, gcTime time.Duration) *entry {
	hash := key.Hash()
	e, ok := c.entries[hash]
	if !ok {
		e = &entry{
			key:        key,
			status:     StatusIdle,
			gcTime:     c.defaultGC,
			lastAccess: c.now(),
		}
		c.entries[hash] = e
	}
	if gcTime > 0 {
		e.gcTime = gcTime
	}
	return e
}
