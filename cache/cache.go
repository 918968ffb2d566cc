// Package cache implements the three-tier cache architecture: an in-memory
// LRU of compiled templates, a TTL-bounded fragment cache for {% cache %}
// blocks, and a periodic janitor that sweeps both.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/kida-lang/kida/kidalog"
)

// CompiledEntry is whatever a template compiles down to; the cache package
// is agnostic to its shape and just stores it by name.
type CompiledEntry struct {
	Name       string
	SourceHash uint64
	ModTime    time.Time
	Value      interface{}
}

// Stats mirrors the info operation required of the template cache: hits,
// misses, current size, and capacity.
type Stats struct {
	Hits     int64
	Misses   int64
	Size     int
	Capacity int
}

// TemplateCache is the compiled-template LRU tier. Reads and writes never
// touch expression evaluation; callers own compiling on miss.
type TemplateCache struct {
	lru      *lru.Cache[string, CompiledEntry]
	capacity int

	hits   atomic.Int64
	misses atomic.Int64

	hitCounter  prometheus.Counter
	missCounter prometheus.Counter
}

// NewTemplateCache builds an LRU of at most size compiled templates.
func NewTemplateCache(size int) (*TemplateCache, error) {
	if size <= 0 {
		size = 400
	}
	l, err := lru.New[string, CompiledEntry](size)
	if err != nil {
		return nil, err
	}
	return &TemplateCache{
		lru:      l,
		capacity: size,
		hitCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kida_template_cache_hits_total",
			Help: "Compiled-template cache hits.",
		}),
		missCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kida_template_cache_misses_total",
			Help: "Compiled-template cache misses.",
		}),
	}, nil
}

// Get retrieves a compiled template by name.
func (c *TemplateCache) Get(name string) (CompiledEntry, bool) {
	entry, ok := c.lru.Get(name)
	if ok {
		c.hits.Add(1)
		c.hitCounter.Inc()
	} else {
		c.misses.Add(1)
		c.missCounter.Inc()
	}
	return entry, ok
}

// Set stores or replaces the compiled template for name.
func (c *TemplateCache) Set(name string, entry CompiledEntry) {
	c.lru.Add(name, entry)
}

// Invalidate removes name from the cache, if present.
func (c *TemplateCache) Invalidate(name string) {
	c.lru.Remove(name)
}

// Clear empties the cache.
func (c *TemplateCache) Clear() {
	c.lru.Purge()
}

// Info reports current cache statistics.
func (c *TemplateCache) Info() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Size:     c.lru.Len(),
		Capacity: c.capacity,
	}
}

// Collectors returns the prometheus collectors this cache updates, for
// registration by the embedding application.
func (c *TemplateCache) Collectors() []prometheus.Collector {
	return []prometheus.Collector{c.hitCounter, c.missCounter}
}

// FragmentCache is the TTL-bounded tier backing {% cache %} blocks. It is
// safe for concurrent use; Ristretto already serializes internally.
type FragmentCache struct {
	store      *ristretto.Cache[string, string]
	defaultTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewFragmentCache builds a fragment cache with the given total cost
// budget in bytes and a default TTL applied when a {% cache %} block omits
// its own ttl= argument (zero means entries never expire on their own).
func NewFragmentCache(maxBytes int64, defaultTTL time.Duration) (*FragmentCache, error) {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: maxBytes / 100 * 10, // ~10 counters per expected 100-byte entry
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &FragmentCache{store: store, defaultTTL: defaultTTL}, nil
}

// Get returns the cached rendering for key, if present and unexpired.
func (f *FragmentCache) Get(key string) (string, bool) {
	val, ok := f.store.Get(key)
	if ok {
		f.hits.Add(1)
	} else {
		f.misses.Add(1)
	}
	return val, ok
}

// Set stores value under key with ttlSeconds (0 uses the cache's default
// TTL; a cache constructed with no default TTL then never expires it).
func (f *FragmentCache) Set(key string, value string, ttlSeconds int64) {
	ttl := f.defaultTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	cost := int64(len(value))
	if ttl > 0 {
		f.store.SetWithTTL(key, value, cost, ttl)
	} else {
		f.store.Set(key, value, cost)
	}
}

// Invalidate removes key from the fragment cache.
func (f *FragmentCache) Invalidate(key string) {
	f.store.Del(key)
}

// Info reports fragment-cache hit/miss counters.
func (f *FragmentCache) Info() Stats {
	return Stats{Hits: f.hits.Load(), Misses: f.misses.Load()}
}

// Close releases the underlying Ristretto store.
func (f *FragmentCache) Close() {
	f.store.Close()
}

// Janitor runs a caller-supplied sweep function on a cron schedule and logs
// each run; what a sweep evicts is decided by the function it is given.
type Janitor struct {
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewJanitor schedules sweep to run on the given cron spec (e.g. "@every 5m").
func NewJanitor(spec string, sweep func()) (*Janitor, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		kidalog.Debug("cache janitor sweep starting", nil)
		sweep()
	}); err != nil {
		return nil, err
	}
	return &Janitor{cron: c}, nil
}

// Start begins the janitor's schedule.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	j.cron.Start()
	j.running = true
}

// Stop halts the janitor and waits for any in-flight sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.running = false
}
