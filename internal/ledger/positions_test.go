package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/vault-ledger/internal/event"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/ledger"
	"github.com/atmx/vault-ledger/internal/model"
)

func TestFirstDepositIntoEmptyVaultMintsOneToOne(t *testing.T) {
	h := newHarness(t)

	// Legacy call events carry no share amount.
	res := h.apply(event.Deposit{Meta: at(1, 0), Account: alice, Assets: n(500)})

	require.Len(t, res.Positions, 1)
	snap := res.Positions[0]
	assert.Equal(t, uint64(0), snap.Key.Order)
	assert.Equal(t, "500", snap.SharesDelta.String())

	p := h.position(alice)
	assert.Equal(t, "500", p.BalanceShares.String())
	assert.Equal(t, "500", p.BalanceTokens.String())
	assert.Equal(t, "500", h.vault().SharesSupply.String())
}

func TestDepositThenFullWithdrawRestoresPosition(t *testing.T) {
	h := newHarness(t)
	h.spot.Set(vaultA, unitSpot(1000, 1000))

	h.apply(deposit(at(1, 0), alice, 1000, 1000))
	h.apply(withdraw(at(2, 0), alice, 1000, 1000))

	p := h.position(alice)
	assert.Equal(t, "0", p.BalanceShares.String())
	assert.Equal(t, "0", p.BalanceTokens.String())
	assert.Equal(t, "0", p.BalanceProfit.String())

	hist := h.history(alice)
	require.Equal(t, []uint64{0, 1}, orders(hist))
	assert.Equal(t, "1000", hist[1].Withdrawals.String())
	assert.Equal(t, "1000", hist[1].SharesBurnt.String())
	assert.Equal(t, "1000", hist[1].Deposits.String())
}

func TestProfitIsBookedOnlyOnFullExit(t *testing.T) {
	h := newHarness(t)
	h.spot.Set(vaultA, unitSpot(1100, 1000))

	h.apply(deposit(at(1, 0), alice, 1000, 1000))

	h.apply(withdraw(at(2, 0), alice, 400, 440))
	p := h.position(alice)
	assert.Equal(t, "0", p.BalanceProfit.String())
	assert.Equal(t, "560", p.BalanceTokens.String())
	assert.Equal(t, "600", p.BalanceShares.String())

	h.apply(withdraw(at(3, 0), alice, 600, 660))
	p = h.position(alice)
	assert.Equal(t, "100", p.BalanceProfit.String())
	assert.Equal(t, "0", p.BalanceTokens.String())
	assert.Equal(t, "0", p.BalanceShares.String())
}

func TestLossIsBookedAsNegativeProfit(t *testing.T) {
	h := newHarness(t)
	h.apply(deposit(at(1, 0), alice, 1000, 1000))
	h.apply(withdraw(at(2, 0), alice, 1000, 900))

	assert.Equal(t, "-100", h.position(alice).BalanceProfit.String())
}

func TestTransferToAccountWithoutPosition(t *testing.T) {
	h := newHarness(t)
	h.spot.Set(vaultA, unitSpot(1000, 1000))
	h.apply(deposit(at(1, 0), alice, 1000, 1000))

	res := h.apply(transfer(at(2, 0), alice, bob, 200))
	require.Len(t, res.Positions, 2)
	assert.Equal(t, ident.SideFrom, res.Positions[0].Leg.Side)
	assert.Equal(t, ident.SideTo, res.Positions[1].Leg.Side)

	recv := h.position(bob)
	assert.Equal(t, "200", recv.BalanceShares.String())
	assert.Equal(t, "0", recv.BalanceTokens.String())

	hist := h.history(bob)
	require.Len(t, hist, 1)
	assert.Equal(t, uint64(0), hist[0].Key.Order)
	assert.Equal(t, model.PositionTransferIn, hist[0].Kind)
	assert.Equal(t, "200", hist[0].SharesReceived.String())
	assert.Equal(t, "200", hist[0].TokensReceived.String())

	sender := h.position(alice)
	assert.Equal(t, "800", sender.BalanceShares.String())
	assert.Equal(t, "800", sender.BalanceTokens.String())
	assert.Equal(t, []uint64{0, 1}, orders(h.history(alice)))

	transfers, err := h.st.Transfers(h.ctx, vaultA)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.False(t, transfers[0].IsProtocolFee)
}

func TestSelfTransferAdvancesChainTwice(t *testing.T) {
	h := newHarness(t)
	h.spot.Set(vaultA, unitSpot(1000, 1000))
	h.apply(deposit(at(1, 0), alice, 1000, 1000))

	res := h.apply(transfer(at(2, 0), alice, alice, 300))
	require.Len(t, res.Positions, 2)

	hist := h.history(alice)
	require.Equal(t, []uint64{0, 1, 2}, orders(hist))
	assert.Equal(t, model.PositionTransferOut, hist[1].Kind)
	assert.Equal(t, model.PositionTransferIn, hist[2].Kind)

	p := h.position(alice)
	assert.Equal(t, "1000", p.BalanceShares.String())
	assert.Equal(t, "1000", p.BalanceTokens.String())
	assert.Equal(t, "0", p.BalanceProfit.String())
}

func TestSnapshotOrderIsContiguous(t *testing.T) {
	h := newHarness(t)
	h.spot.Set(vaultA, unitSpot(5000, 5000))

	h.apply(deposit(at(1, 0), alice, 1000, 1000))
	h.apply(transfer(at(2, 0), alice, bob, 100))
	h.apply(transfer(at(3, 0), bob, alice, 50))
	h.apply(deposit(at(4, 0), alice, 10, 10))
	h.apply(transfer(at(5, 0), alice, alice, 5))
	h.apply(withdraw(at(6, 0), alice, 20, 20))

	hist := h.history(alice)
	want := make([]uint64, len(hist))
	for i := range want {
		want[i] = uint64(i)
	}
	assert.Equal(t, want, orders(hist))
	assert.Len(t, hist, 7)

	for i := 1; i < len(hist); i++ {
		require.NotNil(t, hist[i].Previous)
		assert.Equal(t, hist[i-1].Key, *hist[i].Previous)
	}
	assert.Equal(t, []uint64{0, 1}, orders(h.history(bob)))
}

func TestWithdrawWithoutPositionWarns(t *testing.T) {
	h := newHarness(t)
	h.spot.Set(vaultA, unitSpot(1000, 1000))

	res := h.apply(withdraw(at(1, 0), bob, 100, 100))
	assert.Contains(t, reasons(res), ledger.ReasonMissingPriorState)
	assert.Empty(t, res.Positions)

	_, ok, err := h.st.Begin().Position(h.ctx, ident.PositionKey{Account: bob, Vault: vaultA})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransferFromUnknownSenderCreditsRecipient(t *testing.T) {
	h := newHarness(t)
	h.spot.Set(vaultA, unitSpot(1000, 1000))

	res := h.apply(transfer(at(1, 0), bob, alice, 200))
	assert.Contains(t, reasons(res), ledger.ReasonMissingPriorState)
	require.Len(t, res.Positions, 1)
	assert.Equal(t, "200", h.position(alice).BalanceShares.String())
}

func TestSelfTransferWithoutPositionCreditsNothing(t *testing.T) {
	h := newHarness(t)
	h.spot.Set(vaultA, unitSpot(1000, 1000))

	res := h.apply(transfer(at(1, 0), alice, alice, 200))
	assert.Equal(t, []string{ledger.ReasonMissingPriorState}, reasons(res))
	assert.Empty(t, res.Positions)

	_, ok, err := h.st.Begin().Position(h.ctx, ident.PositionKey{Account: alice, Vault: vaultA})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOverdrawnWithdrawClampsAndBooksNoProfit(t *testing.T) {
	h := newHarness(t)
	h.apply(deposit(at(1, 0), alice, 100, 100))

	res := h.apply(withdraw(at(2, 0), alice, 150, 150))
	assert.Contains(t, reasons(res), ledger.ReasonInsufficientBalance)

	p := h.position(alice)
	assert.Equal(t, "0", p.BalanceShares.String())
	assert.Equal(t, "0", p.BalanceProfit.String())
}

func TestPositionIsMarkedAtSpotPrice(t *testing.T) {
	h := newHarness(t)
	sp := unitSpot(1000, 1000)
	sp.PricePerShare = n(1_250_000)
	h.spot.Set(vaultA, sp)

	res := h.apply(deposit(at(1, 0), alice, 1000, 1000))
	assert.Equal(t, "1250", res.Positions[0].BalancePosition.String())
	assert.Equal(t, "1250", h.position(alice).BalancePosition.String())
}
