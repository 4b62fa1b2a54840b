package spot

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/ident"
)

var vault = ident.MustAddress("0x00000000000000000000000000000000000000f1")

type fakeRedis struct {
	redis.Cmdable
	data map[string]string
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestStaticMissingVault(t *testing.T) {
	_, err := NewStatic().Read(context.Background(), vault, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStaticNormalizesUnsetAmounts(t *testing.T) {
	s := NewStatic()
	s.Set(vault, Spot{Decimals: 18})
	sp, err := s.Read(context.Background(), vault, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !sp.TotalSupply.IsZero() || !sp.TotalAssets.IsZero() || !sp.PricePerShare.IsZero() {
		t.Errorf("expected zero amounts, got %+v", sp)
	}
}

func TestRedisReaderPrefersBlockValues(t *testing.T) {
	rdb := &fakeRedis{data: map[string]string{
		"spot:" + string(vault):        `{"total_assets":"100","total_supply":"100","price_per_share":"1000000","decimals":6}`,
		"spot:" + string(vault) + ":7": `{"total_assets":"200","total_supply":"100","price_per_share":"2000000","decimals":6}`,
	}}
	r := NewRedisReader(rdb)

	tests := []struct {
		block uint64
		pps   string
	}{
		{7, "2000000"},
		{8, "1000000"},
	}
	for _, tt := range tests {
		sp, err := r.Read(context.Background(), vault, tt.block)
		if err != nil {
			t.Fatalf("block %d: %v", tt.block, err)
		}
		if sp.PricePerShare.String() != tt.pps {
			t.Errorf("block %d: pps = %s, want %s", tt.block, sp.PricePerShare, tt.pps)
		}
	}
}

func TestRedisReaderRejectsBadDecimals(t *testing.T) {
	rdb := &fakeRedis{data: map[string]string{
		"spot:" + string(vault): `{"total_assets":"1","total_supply":"1","price_per_share":"1","decimals":78}`,
	}}
	_, err := NewRedisReader(rdb).Read(context.Background(), vault, 1)
	if !errors.Is(err, amount.ErrInvalidDecimals) {
		t.Fatalf("expected ErrInvalidDecimals, got %v", err)
	}
}

func TestRedisReaderMissing(t *testing.T) {
	_, err := NewRedisReader(&fakeRedis{data: map[string]string{}}).Read(context.Background(), vault, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
