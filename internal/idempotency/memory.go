package idempotency

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryRecorder keeps results in process memory. Suitable for single
// instance deployments without Redis; replay protection does not survive a
// restart.
type MemoryRecorder struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryRecorder creates a recorder. A zero ttl uses DefaultTTL.
func NewMemoryRecorder(ttl time.Duration) *MemoryRecorder {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &MemoryRecorder{
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

// Get returns the recorded result for key.
func (r *MemoryRecorder) Get(_ context.Context, key string) (*Result, error) {
	v, ok := r.cache.Get(key)
	if !ok {
		return nil, ErrNotRecorded
	}
	result := v.(Result)
	return &result, nil
}

// Put records the result for key.
func (r *MemoryRecorder) Put(_ context.Context, key string, result Result) error {
	r.cache.Set(key, result, r.ttl)
	return nil
}
