package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedBackend wraps a primary Backend (PostgreSQL) with a Redis
// read-through cache. Writes go to the primary and invalidate the cache;
// reads check Redis first then fall back to the primary.
type CachedBackend struct {
	primary Backend
	rdb     redis.Cmdable
	ttl     time.Duration
}

// NewCachedBackend creates a cached wrapper around a primary backend.
func NewCachedBackend(primary Backend, rdb redis.Cmdable, ttl time.Duration) *CachedBackend {
	return &CachedBackend{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedBackend) Load(ctx context.Context, kind Kind, id string) (Record, bool, error) {
	data, err := s.rdb.Get(ctx, cacheKey(kind, id)).Bytes()
	if err == nil {
		var rec Record
		if json.Unmarshal(data, &rec) == nil {
			return rec, true, nil
		}
	}

	rec, ok, err := s.primary.Load(ctx, kind, id)
	if err != nil || !ok {
		return rec, ok, err
	}
	if data, err := json.Marshal(rec); err == nil {
		s.rdb.Set(ctx, cacheKey(kind, id), data, s.ttl)
	}
	return rec, true, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedBackend) Apply(ctx context.Context, records []Record) error {
	if err := s.primary.Apply(ctx, records); err != nil {
		return err
	}
	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = cacheKey(rec.Kind, rec.ID)
	}
	// Next read will re-populate.
	s.rdb.Del(ctx, keys...)
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedBackend) Scan(ctx context.Context, kind Kind, parent string) ([]Record, error) {
	return s.primary.Scan(ctx, kind, parent)
}

func cacheKey(kind Kind, id string) string { return fmt.Sprintf("ledger:%s:%s", kind, id) }
