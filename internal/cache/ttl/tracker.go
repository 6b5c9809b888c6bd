package ttl

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Tracker records which keys a store that cannot enumerate itself currently holds.
type Tracker struct {
	keys   sync.Map
	count  atomic.Int64
	logger *zap.Logger
}

// NewTracker creates a new Tracker instance.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// Add starts tracking key.
func (t *Tracker) Add(key string) {
	if _, loaded := t.keys.LoadOrStore(key, struct{}{}); !loaded {
		t.count.Inc()
	}
}

// Remove stops tracking key.
func (t *Tracker) Remove(key string) {
	if _, loaded := t.keys.LoadAndDelete(key); loaded {
		t.count.Dec()
	}
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	return int(t.count.Load())
}

// Range iterates over tracked keys until f returns false or ctx is done.
func (t *Tracker) Range(ctx context.Context, f func(key string) bool) {
	t.keys.Range(func(k, _ any) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		key, ok := k.(string)
		if !ok {
			t.logger.Warn("Invalid key type in Tracker", zap.Any("key", k))
			return true
		}
		return f(key)
	})
}

// Reset forgets every key.
func (t *Tracker) Reset() {
	t.keys.Range(func(k, _ any) bool {
		t.keys.Delete(k)
		return true
	})
	t.count.Store(0)
}
