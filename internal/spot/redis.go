package spot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/vault-ledger/internal/ident"
)

// RedisReader reads spot values published by the chain poller. Values are
// JSON documents under "spot:<vault>:<block>", falling back to the
// latest values under "spot:<vault>".
type RedisReader struct {
	rdb redis.Cmdable
}

// NewRedisReader creates a reader over rdb.
func NewRedisReader(rdb redis.Cmdable) *RedisReader {
	return &RedisReader{rdb: rdb}
}

func (r *RedisReader) Read(ctx context.Context, vault ident.Address, block uint64) (Spot, error) {
	for _, key := range []string{blockKey(vault, block), latestKey(vault)} {
		data, err := r.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Spot{}, fmt.Errorf("spot: read %s: %w", key, err)
		}
		var sp Spot
		if err := json.Unmarshal(data, &sp); err != nil {
			return Spot{}, fmt.Errorf("spot: decode %s: %w", key, err)
		}
		sp = sp.Normalize()
		if err := sp.Validate(); err != nil {
			return Spot{}, err
		}
		return sp, nil
	}
	return Spot{}, fmt.Errorf("%w: %s at block %d", ErrNotFound, vault, block)
}

func blockKey(vault ident.Address, block uint64) string {
	return fmt.Sprintf("spot:%s:%d", vault, block)
}

func latestKey(vault ident.Address) string { return fmt.Sprintf("spot:%s", vault) }
