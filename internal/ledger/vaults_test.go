package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/vault-ledger/internal/event"
	"github.com/atmx/vault-ledger/internal/ledger"
	"github.com/atmx/vault-ledger/internal/model"
	"github.com/atmx/vault-ledger/internal/oracle"
)

func TestVaultReturnsMeasuredAgainstPriorBalance(t *testing.T) {
	h := newHarness(t)
	h.spot.Set(vaultA, unitSpot(1000, 1000))
	first := h.apply(deposit(at(1, 0), alice, 1000, 1000))

	require.NotNil(t, first.Vault)
	assert.Equal(t, uint64(0), first.Vault.Order)
	assert.Equal(t, "1000", first.Vault.BalancePosition.String())
	assert.Equal(t, "1000", first.Vault.ReturnsGenerated.String())

	h.spot.Set(vaultA, unitSpot(1600, 1500))
	second := h.apply(deposit(at(2, 0), bob, 500, 500))

	require.NotNil(t, second.Vault)
	assert.Equal(t, uint64(1), second.Vault.Order)
	assert.Equal(t, "600", second.Vault.ReturnsGenerated.String())
	assert.Equal(t, "1500", second.Vault.TokensDeposited.String())
	require.NotNil(t, second.Vault.Previous)
	assert.Equal(t, first.Vault.Key, *second.Vault.Previous)

	v := h.vault()
	assert.Equal(t, "1500", v.BalanceTokens.String())
	assert.Equal(t, "1500", v.SharesSupply.String())
	assert.Equal(t, uint64(2), v.Snapshots)
}

func TestVaultSnapshotCollisionInOneTransaction(t *testing.T) {
	h := newHarness(t)
	h.apply(deposit(at(1, 0), alice, 100, 100))
	applies := h.mem.Applies()

	_, err := h.proc.Apply(h.ctx, deposit(at(1, 1), bob, 250, 250))
	require.ErrorIs(t, err, ledger.ErrConflictingDuplicate)
	assert.Equal(t, applies, h.mem.Applies())
}

func TestIdenticalVaultSnapshotsInOneTransactionCollapse(t *testing.T) {
	h := newHarness(t)
	first := h.apply(deposit(at(1, 0), alice, 100, 100))
	second := h.apply(deposit(at(1, 1), bob, 100, 100))

	require.NotNil(t, second.Vault)
	assert.Equal(t, first.Vault.Key, second.Vault.Key)

	hist, err := h.st.VaultHistory(h.ctx, vaultA)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
	assert.Empty(t, second.Warnings)

	// The vault still takes both deposits.
	v := h.vault()
	held := h.position(alice).BalanceShares.Add(h.position(bob).BalanceShares)
	assert.Equal(t, held.String(), v.SharesSupply.String())
	assert.Equal(t, "200", v.SharesSupply.String())
	assert.Equal(t, "200", v.BalanceTokens.String())
	assert.Equal(t, uint64(1), v.Snapshots)

	days, err := h.st.VaultDays(h.ctx, vaultA)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "200", days[0].Deposited.String())
}

func TestIdenticalWithdrawalsInOneTransactionBothDebitVault(t *testing.T) {
	h := newHarness(t)
	h.apply(deposit(at(1, 0), alice, 100, 100))
	h.apply(deposit(at(2, 0), bob, 100, 100))

	h.apply(withdraw(at(3, 0), alice, 40, 40))
	h.apply(withdraw(at(3, 1), bob, 40, 40))

	v := h.vault()
	assert.Equal(t, "120", v.SharesSupply.String())
	assert.Equal(t, "120", v.BalanceTokens.String())
	assert.Equal(t, uint64(3), v.Snapshots)
}

func TestFeeUpdateCarriesPriceForward(t *testing.T) {
	h := newHarness(t)
	sp := unitSpot(1000, 1000)
	sp.PricePerShare = n(1_050_000)
	h.spot.Set(vaultA, sp)
	h.apply(deposit(at(1, 0), alice, 1000, 1000))

	res := h.apply(event.FeeUpdated{Meta: at(2, 0), Fee: event.FeePerformance, Bps: 1000})
	require.NotNil(t, res.Vault)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, model.VaultPerformanceFee, res.Vault.Kind)
	assert.Equal(t, uint64(1), res.Vault.Order)
	assert.Equal(t, uint32(1000), res.Vault.PerformanceFeeBps)
	assert.Equal(t, "1050000", res.Vault.PricePerShare.String())
	assert.Equal(t, "0", res.Vault.ReturnsGenerated.String())
	assert.Equal(t, uint32(1000), h.vault().PerformanceFeeBps)
}

func TestFeeUpdateForUnknownVaultWarns(t *testing.T) {
	h := newHarness(t)

	res := h.apply(event.FeeUpdated{Meta: at(1, 0), Fee: event.FeeRewards, Recipient: treasury})
	assert.Contains(t, reasons(res), ledger.ReasonMissingPriorState)
	require.NotNil(t, res.Vault)
	assert.Equal(t, model.VaultRewardsRecipient, res.Vault.Kind)
	assert.Equal(t, treasury, h.vault().RewardsRecipient)
}

func TestVaultDayDataAccumulates(t *testing.T) {
	h := newHarness(t)
	h.oracle.Set(dai, oracle.Quote{Price: n(2), Decimals: 0})

	h.spot.Set(vaultA, unitSpot(1000, 1000))
	h.apply(deposit(at(1, 0), alice, 1000, 1000))
	h.spot.Set(vaultA, unitSpot(1500, 1500))
	h.apply(deposit(at(2, 0), alice, 500, 500))

	// 30 hours after t0 is the next UTC day.
	h.spot.Set(vaultA, unitSpot(1700, 1500))
	h.apply(withdraw(at(30, 0), alice, 100, 113))

	days, err := h.st.VaultDays(h.ctx, vaultA)
	require.NoError(t, err)
	require.Len(t, days, 2)

	d1, d2 := days[0], days[1]
	assert.Equal(t, d1.Key.Day+1, d2.Key.Day)

	assert.Equal(t, "1500", d1.Deposited.String())
	assert.Equal(t, "0", d1.Withdrawn.String())
	assert.Equal(t, "1500", d1.DayReturnsGenerated.String())
	assert.Equal(t, "1500", d1.TotalReturnsGenerated.String())
	assert.Equal(t, "3000", d1.DayReturnsGeneratedRef.String())

	assert.Equal(t, "0", d2.Deposited.String())
	assert.Equal(t, "113", d2.Withdrawn.String())
	assert.Equal(t, "200", d2.DayReturnsGenerated.String())
	assert.Equal(t, "1700", d2.TotalReturnsGenerated.String())
	assert.Equal(t, "3400", d2.TotalReturnsGeneratedRef.String())
}
