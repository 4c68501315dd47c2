// Package directory provides the sharded address lookup used by the stage
// to resolve live actors. It scales to tens of thousands of entries by
// spreading keys over independently locked buckets.
package directory

import (
	"sync"

	"github.com/codewandler/stage-go/internal/shard"
)

const hashSeed = "stage/directory"

// Config sizes the directory.
type Config struct {
	// Buckets is the shard count. Minimum 1.
	Buckets int
	// InitialCapacityPerBucket pre-sizes each bucket's map. Minimum 1.
	InitialCapacityPerBucket int
}

// Curated presets.
var (
	Default      = Config{Buckets: 32, InitialCapacityPerBucket: 32}
	Small        = Config{Buckets: 4, InitialCapacityPerBucket: 8}
	HighCapacity = Config{Buckets: 128, InitialCapacityPerBucket: 16_384}
)

func (c Config) normalized() Config {
	if c.Buckets < 1 {
		c.Buckets = Default.Buckets
	}
	if c.InitialCapacityPerBucket < 1 {
		c.InitialCapacityPerBucket = Default.InitialCapacityPerBucket
	}
	return c
}

type bucket struct {
	mu      sync.RWMutex
	entries map[string]any
}

// Directory is a sharded mapping from address string to registered value.
// It does not own entry lifetimes; the lifecycle state machine keeps it in
// sync (insert on Running entry, remove on Stopped entry).
type Directory struct {
	cfg     Config
	sharder shard.Sharder
	buckets []*bucket
}

// New creates a directory sized by cfg. Zero-value fields fall back to the
// Default preset.
func New(cfg Config) *Directory {
	cfg = cfg.normalized()
	d := &Directory{
		cfg:     cfg,
		sharder: shard.Distributed(cfg.Buckets, hashSeed),
		buckets: make([]*bucket, cfg.Buckets),
	}
	for i := range d.buckets {
		d.buckets[i] = &bucket{entries: make(map[string]any, cfg.InitialCapacityPerBucket)}
	}
	return d
}

func (d *Directory) bucketFor(key string) *bucket {
	return d.buckets[d.sharder.GetShardForKey(key)]
}

// Get returns the value registered for key, if any.
func (d *Directory) Get(key string) (any, bool) {
	b := d.bucketFor(key)
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.entries[key]
	return v, ok
}

// Put registers value under key, overwriting any previous entry.
func (d *Directory) Put(key string, value any) {
	b := d.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = value
}

// Remove deletes key and reports whether it existed.
func (d *Directory) Remove(key string) bool {
	b := d.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[key]
	delete(b.entries, key)
	return ok
}

// Size returns the total number of registered entries.
func (d *Directory) Size() int {
	total := 0
	for _, b := range d.buckets {
		b.mu.RLock()
		total += len(b.entries)
		b.mu.RUnlock()
	}
	return total
}

// Stats returns the entry count per bucket. The slice length equals the
// configured bucket count.
func (d *Directory) Stats() []int {
	out := make([]int, len(d.buckets))
	for i, b := range d.buckets {
		b.mu.RLock()
		out[i] = len(b.entries)
		b.mu.RUnlock()
	}
	return out
}

// Config returns the effective configuration.
func (d *Directory) Config() Config { return d.cfg }

// ForEach calls fn for every entry. The snapshot per bucket is taken under
// the bucket's read lock; fn runs without any lock held.
func (d *Directory) ForEach(fn func(key string, value any)) {
	for _, b := range d.buckets {
		b.mu.RLock()
		snapshot := make(map[string]any, len(b.entries))
		for k, v := range b.entries {
			snapshot[k] = v
		}
		b.mu.RUnlock()
		for k, v := range snapshot {
			fn(k, v)
		}
	}
}
