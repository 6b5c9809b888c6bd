package ttl

import (
	"context"
	"sync"
	"time"

	"goflare.io/gridiron/internal/models"
	"goflare.io/gridiron/internal/utils"
)

// Lookup is the outcome of a store read.
type Lookup int

const (
	// Miss means no entry exists for the key.
	Miss Lookup = iota
	// Hit means a fresh entry was found.
	Hit
	// Expired means a stale entry was found and purged.
	Expired
)

func (l Lookup) String() string {
	switch l {
	case Hit:
		return "hit"
	case Expired:
		return "expired"
	default:
		return "miss"
	}
}

// Store defines the interface for entry storage.
// Get combines lookup and expiry: a stale entry is removed before Get returns.
type Store interface {
	Set(ctx context.Context, entry *models.Entry) error
	Get(ctx context.Context, key string, now time.Time) (*models.Entry, Lookup)
	Purge(ctx context.Context, now time.Time) int
	Len() int
	Flush(ctx context.Context)
	Close()
}

type shard struct {
	mu    sync.RWMutex
	items map[string]*models.Entry
}

// MemoryStore is an unbounded map store split into fnv-hashed shards.
type MemoryStore struct {
	shards []*shard
}

// NewMemoryStore creates a MemoryStore with shardCount shards (at least one).
func NewMemoryStore(shardCount uint64) *MemoryStore {
	if shardCount == 0 {
		shardCount = 1
	}
	s := &MemoryStore{shards: make([]*shard, shardCount)}
	for i := range s.shards {
		s.shards[i] = &shard{items: make(map[string]*models.Entry)}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	return s.shards[utils.ShardIndex(uint64(len(s.shards)), key)]
}

// Set stores entry, replacing any previous entry for the same key.
func (s *MemoryStore) Set(ctx context.Context, entry *models.Entry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	sh := s.shardFor(entry.Key)
	sh.mu.Lock()
	sh.items[entry.Key] = entry
	sh.mu.Unlock()
	return nil
}

// Get returns the entry for key if it is fresh at now.
func (s *MemoryStore) Get(_ context.Context, key string, now time.Time) (*models.Entry, Lookup) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	entry, ok := sh.items[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, Miss
	}
	if !entry.IsExpired(now) {
		return entry, Hit
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	current, ok := sh.items[key]
	if !ok {
		return nil, Expired
	}
	if current != entry && !current.IsExpired(now) {
		// Overwritten by a concurrent Set between the two locks.
		return current, Hit
	}
	delete(sh.items, key)
	return nil, Expired
}

// Purge removes every entry that is stale at now and returns how many were removed.
func (s *MemoryStore) Purge(ctx context.Context, now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		select {
		case <-ctx.Done():
			return removed
		default:
		}

		sh.mu.Lock()
		for key, entry := range sh.items {
			if entry.IsExpired(now) {
				delete(sh.items, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of resident entries, stale ones included.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

// Flush removes every entry.
func (s *MemoryStore) Flush(ctx context.Context) {
	for _, sh := range s.shards {
		select {
		case <-ctx.Done():
			return
		default:
			sh.mu.Lock()
			sh.items = make(map[string]*models.Entry)
			sh.mu.Unlock()
		}
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() {}
