package ledger_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/vault-ledger/internal/event"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/ledger"
	"github.com/atmx/vault-ledger/internal/spot"
)

func TestRedeliveryIsNoOp(t *testing.T) {
	h := newHarness(t)
	ev := deposit(at(1, 0), alice, 1000, 1000)

	first := h.apply(ev)
	require.False(t, first.Duplicate)
	before := h.mem.Dump()
	applies := h.mem.Applies()

	second := h.apply(ev)
	assert.True(t, second.Duplicate)
	assert.Equal(t, before, h.mem.Dump())
	assert.Equal(t, applies, h.mem.Applies())

	require.Len(t, second.Positions, 1)
	assert.Equal(t, first.Positions[0].Key, second.Positions[0].Key)
	require.NotNil(t, second.Vault)
	assert.Equal(t, first.Vault.Key, second.Vault.Key)

	// Only the first application is broadcast.
	assert.Len(t, h.pub.results, 1)
}

func TestRedeliveryOfTransferReplaysBothLegs(t *testing.T) {
	h := newHarness(t)
	h.spot.Set(vaultA, unitSpot(1000, 1000))
	h.apply(deposit(at(1, 0), alice, 1000, 1000))

	ev := transfer(at(2, 0), alice, bob, 200)
	first := h.apply(ev)
	second := h.apply(ev)

	assert.True(t, second.Duplicate)
	require.Len(t, second.Positions, 2)
	assert.Equal(t, first.Positions[0].Key, second.Positions[0].Key)
	assert.Equal(t, first.Positions[1].Key, second.Positions[1].Key)
	require.NotNil(t, second.Transfer)
	assert.Equal(t, "200", second.Transfer.ShareAmount.String())
}

func TestConflictingRedeliveryIsRejected(t *testing.T) {
	h := newHarness(t)
	h.apply(deposit(at(1, 0), alice, 1000, 1000))
	before := h.mem.Dump()

	_, err := h.proc.Apply(h.ctx, deposit(at(1, 0), alice, 999, 999))
	require.ErrorIs(t, err, ledger.ErrConflictingDuplicate)
	assert.Equal(t, before, h.mem.Dump())
}

func TestSpotErrorCommitsNothing(t *testing.T) {
	h := newHarness(t)
	m := at(1, 0)
	m.Vault = ident.MustAddress("0x00000000000000000000000000000000000000f9")

	_, err := h.proc.Apply(h.ctx, event.Deposit{Meta: m, Account: alice, Assets: n(10), Shares: n(10)})
	require.ErrorIs(t, err, spot.ErrNotFound)
	assert.Zero(t, h.mem.Len())
	assert.Zero(t, h.mem.Applies())
	assert.Empty(t, h.pub.results)
}

// eventsCounted reads vaultledger_events_total for one kind and outcome.
func eventsCounted(t *testing.T, kind event.Kind, outcome string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "vaultledger_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["kind"] == string(kind) && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestArithmeticFailureIsRejected(t *testing.T) {
	h := newHarness(t)
	bad := unitSpot(1000, 1000)
	bad.Decimals = 78
	h.spot.Set(vaultA, bad)
	before := eventsCounted(t, event.KindDeposit, "arithmetic")

	_, err := h.proc.Apply(h.ctx, deposit(at(1, 0), alice, 10, 10))
	require.Error(t, err)
	assert.True(t, ledger.IsArithmetic(err))
	assert.Zero(t, h.mem.Len())
	assert.Equal(t, before+1, eventsCounted(t, event.KindDeposit, "arithmetic"))
}

func TestApplyWithSpotUsesGivenValues(t *testing.T) {
	h := newHarness(t)
	pinned := unitSpot(1000, 1000)
	pinned.PricePerShare = n(2_000_000)

	_, err := h.proc.ApplyWithSpot(h.ctx, deposit(at(1, 0), alice, 1000, 1000), pinned)
	require.NoError(t, err)

	p := h.position(alice)
	assert.Equal(t, "2000", p.BalancePosition.String())
}

func TestConfigEventsNeedNoSpot(t *testing.T) {
	h := newHarness(t)
	m := at(1, 0)
	m.Vault = ident.MustAddress("0x00000000000000000000000000000000000000f9")

	res, err := h.proc.Apply(h.ctx, event.VaultRegistered{Meta: m, Token: dai, APIVersion: "0.4.3"})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	v, ok, err := h.st.Begin().Vault(h.ctx, m.Vault)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, dai, v.Token)
	assert.Equal(t, "0.4.3", v.APIVersion)
}

func TestPublishesCommittedResults(t *testing.T) {
	h := newHarness(t)
	h.apply(deposit(at(1, 0), alice, 1000, 1000))
	h.apply(withdraw(at(2, 0), alice, 100, 100))

	require.Len(t, h.pub.results, 2)
	assert.Equal(t, event.KindDeposit, h.pub.results[0].Kind)
	assert.Equal(t, event.KindWithdraw, h.pub.results[1].Kind)
}
