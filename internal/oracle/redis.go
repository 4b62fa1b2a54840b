package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/vault-ledger/internal/ident"
)

// RedisOracle reads quotes published under "oracle:price:<token>" as
// JSON Quote documents.
type RedisOracle struct {
	rdb redis.Cmdable
}

// NewRedisOracle creates an oracle over rdb.
func NewRedisOracle(rdb redis.Cmdable) *RedisOracle {
	return &RedisOracle{rdb: rdb}
}

func (o *RedisOracle) Value(ctx context.Context, token ident.Address, amt sdkmath.Int) (sdkmath.Int, error) {
	key := priceKey(token)
	data, err := o.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return sdkmath.Int{}, fmt.Errorf("%w: %s", ErrUnavailable, token)
	}
	if err != nil {
		// Transport errors count as unavailable.
		return sdkmath.Int{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, token, err)
	}
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil || q.Price.IsNil() {
		return sdkmath.Int{}, fmt.Errorf("%w: %s: bad quote", ErrUnavailable, token)
	}
	return q.Value(amt)
}

func priceKey(token ident.Address) string { return fmt.Sprintf("oracle:price:%s", token) }
