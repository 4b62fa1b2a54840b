package ledger_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/event"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/ledger"
	"github.com/atmx/vault-ledger/internal/model"
	"github.com/atmx/vault-ledger/internal/oracle"
	"github.com/atmx/vault-ledger/internal/spot"
	"github.com/atmx/vault-ledger/internal/store"
)

var (
	alice    = ident.MustAddress("0x00000000000000000000000000000000000000a1")
	bob      = ident.MustAddress("0x00000000000000000000000000000000000000b2")
	treasury = ident.MustAddress("0x00000000000000000000000000000000000000e3")
	strat    = ident.MustAddress("0x00000000000000000000000000000000000000c4")
	vaultA   = ident.MustAddress("0x00000000000000000000000000000000000000f1")
	dai      = ident.MustAddress("0x6b175474e89094c44da98b954eedeac495271d0f")

	t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

// n is a small amount.
func n(v uint64) sdkmath.Int { return amount.New(v) }

func txHash(i int) string { return fmt.Sprintf("0x%064x", i) }

// at builds event metadata for log `log` of transaction `tx`, `tx` hours
// after t0.
func at(tx int, log uint64) event.Meta {
	return event.Meta{
		Event:     ident.EventKey{TxHash: txHash(tx), LogIndex: log},
		Block:     uint64(1000 + tx),
		Timestamp: t0.Add(time.Duration(tx) * time.Hour),
		Vault:     vaultA,
	}
}

// unitSpot prices one share at one token (6 decimals), so mark-to-market
// equals the share balance.
func unitSpot(totalAssets, totalSupply uint64) spot.Spot {
	return spot.Spot{
		TotalAssets:   n(totalAssets),
		TotalSupply:   n(totalSupply),
		PricePerShare: n(1_000_000),
		Decimals:      6,
		Token:         dai,
	}
}

type recorder struct {
	results []ledger.Result
}

func (r *recorder) Publish(res ledger.Result) { r.results = append(r.results, res) }

type harness struct {
	t      *testing.T
	ctx    context.Context
	mem    *store.MemoryBackend
	st     *store.Store
	spot   *spot.Static
	oracle *oracle.Static
	pub    *recorder
	proc   *ledger.Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		ctx:    context.Background(),
		mem:    store.NewMemoryBackend(),
		spot:   spot.NewStatic(),
		oracle: oracle.NewStatic(nil),
		pub:    &recorder{},
	}
	h.st = store.New(h.mem)
	h.proc = ledger.NewProcessor(h.st, h.spot, h.oracle, h.pub)
	h.spot.Set(vaultA, unitSpot(0, 0))
	return h
}

func (h *harness) apply(ev event.Event) ledger.Result {
	h.t.Helper()
	res, err := h.proc.Apply(h.ctx, ev)
	require.NoError(h.t, err)
	return res
}

func (h *harness) position(account ident.Address) *model.Position {
	h.t.Helper()
	p, ok, err := h.st.Begin().Position(h.ctx, ident.PositionKey{Account: account, Vault: vaultA})
	require.NoError(h.t, err)
	require.True(h.t, ok, "no position for %s", account)
	return p
}

func (h *harness) vault() *model.Vault {
	h.t.Helper()
	v, ok, err := h.st.Begin().Vault(h.ctx, vaultA)
	require.NoError(h.t, err)
	require.True(h.t, ok)
	return v
}

func (h *harness) history(account ident.Address) []model.PositionSnapshot {
	h.t.Helper()
	hist, err := h.st.PositionHistory(h.ctx, ident.PositionKey{Account: account, Vault: vaultA})
	require.NoError(h.t, err)
	return hist
}

func (h *harness) feeTotals(c model.FeeCategory) *model.FeeTotals {
	h.t.Helper()
	f, ok, err := h.st.Begin().FeeTotals(h.ctx, c)
	require.NoError(h.t, err)
	require.True(h.t, ok, "no %s fee totals", c)
	return f
}

func deposit(m event.Meta, account ident.Address, assets, shares uint64) event.Deposit {
	return event.Deposit{Meta: m, Account: account, Assets: n(assets), Shares: n(shares)}
}

func withdraw(m event.Meta, account ident.Address, shares, assets uint64) event.Withdraw {
	return event.Withdraw{Meta: m, Account: account, Shares: n(shares), Assets: n(assets)}
}

func transfer(m event.Meta, from, to ident.Address, shares uint64) event.Transfer {
	return event.Transfer{Meta: m, From: from, To: to, Shares: n(shares)}
}

func report(m event.Meta, totalGain, totalDebt uint64) event.StrategyReported {
	return event.StrategyReported{
		Meta:      m,
		Strategy:  strat,
		Gain:      n(0),
		Loss:      n(0),
		TotalGain: n(totalGain),
		TotalLoss: n(0),
		TotalDebt: n(totalDebt),
		DebtAdded: n(0),
		DebtRatio: n(5000),
		DebtPaid:  n(0),
	}
}

func orders(hist []model.PositionSnapshot) []uint64 {
	out := make([]uint64, len(hist))
	for i, s := range hist {
		out[i] = s.Key.Order
	}
	return out
}

func reasons(res ledger.Result) []string {
	out := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		out = append(out, w.Reason)
	}
	return out
}
