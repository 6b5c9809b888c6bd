package ttl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"goflare.io/gridiron/internal/models"
)

// ErrSetRejected is returned when the bounded store refuses a write.
var ErrSetRejected = errors.New("cache entry rejected by bounded store")

// RistrettoStore is a bounded Store backed by Ristretto. Every entry costs 1, so
// maxEntries caps the number of resident entries. Expiry is still decided by
// the entry's own ExpiresAt so that the cache clock stays authoritative.
type RistrettoStore struct {
	cache   *ristretto.Cache[string, *models.Entry]
	tracker *Tracker
	logger  *zap.Logger

	// mu serializes writes with expiry purges so a purge never drops a fresher entry.
	mu sync.Mutex
}

// NewRistrettoStore creates a RistrettoStore holding at most maxEntries entries.
func NewRistrettoStore(maxEntries int64, logger *zap.Logger) (*RistrettoStore, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("max entries must be greater than 0, got %d", maxEntries)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &RistrettoStore{
		tracker: NewTracker(logger),
		logger:  logger,
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, *models.Entry]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict: func(item *ristretto.Item[*models.Entry]) {
			s.forget(item.Value)
		},
		OnReject: func(item *ristretto.Item[*models.Entry]) {
			s.forget(item.Value)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Ristretto cache: %w", err)
	}
	s.cache = c

	return s, nil
}

func (s *RistrettoStore) forget(entry *models.Entry) {
	if entry == nil {
		return
	}
	s.tracker.Remove(entry.Key)
}

// Set stores entry and waits until it is visible to Get.
func (s *RistrettoStore) Set(ctx context.Context, entry *models.Entry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cache.Set(entry.Key, entry, 1) {
		s.logger.Warn("Ristretto Set dropped", zap.String("key", entry.Key))
		return ErrSetRejected
	}
	s.cache.Wait()

	if _, found := s.cache.Get(entry.Key); !found {
		// Admission policy turned the key away.
		return ErrSetRejected
	}
	s.tracker.Add(entry.Key)
	return nil
}

// Get returns the entry for key if it is fresh at now.
func (s *RistrettoStore) Get(_ context.Context, key string, now time.Time) (*models.Entry, Lookup) {
	entry, found := s.cache.Get(key)
	if !found {
		return nil, Miss
	}
	if !entry.IsExpired(now) {
		return entry, Hit
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, found := s.cache.Get(key)
	if found && current != entry && !current.IsExpired(now) {
		return current, Hit
	}
	s.cache.Del(key)
	s.tracker.Remove(key)
	return nil, Expired
}

// Purge removes every tracked entry that is stale at now.
func (s *RistrettoStore) Purge(ctx context.Context, now time.Time) int {
	removed := 0
	s.tracker.Range(ctx, func(key string) bool {
		if _, lookup := s.Get(ctx, key, now); lookup == Expired {
			removed++
		}
		return true
	})
	return removed
}

// Len returns the number of tracked entries.
func (s *RistrettoStore) Len() int {
	return s.tracker.Len()
}

// Flush clears the entire store.
func (s *RistrettoStore) Flush(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Clear()
	s.tracker.Reset()
}

// Close releases Ristretto's background goroutines.
func (s *RistrettoStore) Close() {
	s.cache.Close()
}
