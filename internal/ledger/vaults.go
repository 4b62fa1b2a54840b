package ledger

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/model"
)

const (
	maxBps = 10_000
	// secsPerYear is the year length vault contracts use to accrue
	// management fees.
	secsPerYear = 31_556_952
)

// loadVault returns the vault, creating it when absent. Spot-backed events
// refresh its token and decimals.
func (o *op) loadVault(id ident.Address, withSpot bool) (*model.Vault, error) {
	v, ok, err := o.tx.Vault(o.ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		v = &model.Vault{
			ID:                id,
			ShareToken:        id,
			BalanceTokens:     amount.Zero(),
			BalanceTokensIdle: amount.Zero(),
			SharesSupply:      amount.Zero(),
			CreatedBy:         o.meta.Event,
			CreatedAt:         o.meta.Timestamp,
		}
	}
	if withSpot {
		v.Decimals = o.spot.Decimals
		if !o.spot.Token.IsZero() && o.spot.Token != "" {
			v.Token = o.spot.Token
		}
	}
	return v, nil
}

func (o *op) vaultToken(id ident.Address) ident.Address {
	v, ok, err := o.tx.Vault(o.ctx, id)
	if err != nil || !ok {
		return o.spot.Token
	}
	return v.Token
}

// vaultDelta is the financial content of one vault snapshot.
type vaultDelta struct {
	kind      model.VaultSnapshotKind
	deposited sdkmath.Int
	withdrawn sdkmath.Int
	minted    sdkmath.Int
	burnt     sdkmath.Int
	// priced snapshots take price and valuation from spot values; others
	// carry them forward.
	priced bool
	// Fees accrued by this event, added to the running totals.
	managementFees  sdkmath.Int
	performanceFees sdkmath.Int
}

// depositVault records a deposit: returns are measured against the
// vault's balance before this deposit is added.
func (o *op) depositVault(v *model.Vault, assets, shares sdkmath.Int) error {
	snap, reused, err := o.nextVaultSnapshot(v, vaultDelta{
		kind: model.VaultDeposit, deposited: assets, minted: shares, priced: true,
	})
	if err != nil {
		return err
	}
	if v.BalanceTokens, err = amount.Add(v.BalanceTokens, assets); err != nil {
		return err
	}
	if v.BalanceTokensIdle, err = amount.Add(v.BalanceTokensIdle, assets); err != nil {
		return err
	}
	if v.SharesSupply, err = amount.Add(v.SharesSupply, shares); err != nil {
		return err
	}
	return o.commitVault(v, snap, reused)
}

// withdrawVault records a withdrawal. Balances are floored at zero.
func (o *op) withdrawVault(v *model.Vault, assets, shares sdkmath.Int) error {
	snap, reused, err := o.nextVaultSnapshot(v, vaultDelta{
		kind: model.VaultWithdraw, withdrawn: assets, burnt: shares, priced: true,
	})
	if err != nil {
		return err
	}
	var clampedTokens, clampedShares bool
	v.BalanceTokens, clampedTokens = amount.SubFloor(v.BalanceTokens, assets)
	v.BalanceTokensIdle, _ = amount.SubFloor(v.BalanceTokensIdle, assets)
	v.SharesSupply, clampedShares = amount.SubFloor(v.SharesSupply, shares)
	if clampedTokens || clampedShares {
		o.warn(warning(ReasonInsufficientBalance, ErrInsufficientBalance,
			"withdraw of %s assets / %s shares exceeds vault %s balance", assets, shares, v.ID))
	}
	return o.commitVault(v, snap, reused)
}

// strategyReportedVault anchors the vault's price and valuation at a
// harvest and books the fees it assessed.
func (o *op) strategyReportedVault(v *model.Vault, mgmt, perf sdkmath.Int) error {
	snap, reused, err := o.nextVaultSnapshot(v, vaultDelta{
		kind: model.VaultStrategyReported, priced: true,
		managementFees: mgmt, performanceFees: perf,
	})
	if err != nil {
		return err
	}
	return o.commitVault(v, snap, reused)
}

// configVault records a fee or recipient change. The caller has already
// applied the change to v.
func (o *op) configVault(v *model.Vault, kind model.VaultSnapshotKind) error {
	snap, reused, err := o.nextVaultSnapshot(v, vaultDelta{kind: kind})
	if err != nil {
		return err
	}
	return o.commitVault(v, snap, reused)
}

// nextVaultSnapshot builds the snapshot following the vault's latest one.
// When this transaction already produced an identical snapshot for the
// vault, that snapshot is returned as reused and no new link is added.
func (o *op) nextVaultSnapshot(v *model.Vault, d vaultDelta) (snap, reused *model.VaultSnapshot, err error) {
	key := ident.VaultSnapshotKey{Vault: v.ID, TxHash: o.meta.Event.TxHash}

	snap = &model.VaultSnapshot{
		Key:               key,
		Order:             v.Snapshots,
		Kind:              d.kind,
		Event:             o.meta.Event,
		Timestamp:         o.meta.Timestamp,
		BlockNumber:       o.meta.Block,
		AssetsDelta:       amount.OrZero(d.deposited),
		SharesDelta:       amount.OrZero(d.minted),
		TokensDeposited:   amount.Zero(),
		TokensWithdrawn:   amount.Zero(),
		SharesMinted:      amount.Zero(),
		SharesBurnt:       amount.Zero(),
		PricePerShare:     amount.Zero(),
		BalancePosition:   amount.Zero(),
		ReturnsGenerated:  amount.Zero(),
		TotalFees:         amount.Zero(),
		ManagementFees:    amount.Zero(),
		PerformanceFees:   amount.Zero(),
		ManagementFeeBps:  v.ManagementFeeBps,
		PerformanceFeeBps: v.PerformanceFeeBps,
		RewardsRecipient:  v.RewardsRecipient,
	}
	if d.kind == model.VaultWithdraw {
		snap.AssetsDelta = amount.OrZero(d.withdrawn)
		snap.SharesDelta = amount.OrZero(d.burnt)
	}

	if v.LatestUpdate != nil {
		prevKey := *v.LatestUpdate
		snap.Previous = &prevKey
		prev, ok, err := o.tx.VaultSnapshot(o.ctx, prevKey)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			snap.TokensDeposited = prev.TokensDeposited
			snap.TokensWithdrawn = prev.TokensWithdrawn
			snap.SharesMinted = prev.SharesMinted
			snap.SharesBurnt = prev.SharesBurnt
			snap.PricePerShare = prev.PricePerShare
			snap.BalancePosition = prev.BalancePosition
			snap.TotalFees = prev.TotalFees
			snap.ManagementFees = prev.ManagementFees
			snap.PerformanceFees = prev.PerformanceFees
		} else {
			o.warn(warning(ReasonMissingPriorState, ErrMissingPriorState,
				"vault %s snapshot for %s not found", v.ID, prevKey.TxHash))
		}
	}

	add := func(dst *sdkmath.Int, v sdkmath.Int) {
		if err == nil {
			*dst, err = amount.Add(*dst, v)
		}
	}
	add(&snap.TokensDeposited, d.deposited)
	add(&snap.TokensWithdrawn, d.withdrawn)
	add(&snap.SharesMinted, d.minted)
	add(&snap.SharesBurnt, d.burnt)
	add(&snap.ManagementFees, d.managementFees)
	add(&snap.PerformanceFees, d.performanceFees)
	add(&snap.TotalFees, d.managementFees)
	add(&snap.TotalFees, d.performanceFees)
	if err != nil {
		return nil, nil, err
	}

	if d.priced {
		mtm, err := amount.MarkToMarket(o.spot.TotalAssets, o.spot.PricePerShare, o.spot.Decimals)
		if err != nil {
			return nil, nil, err
		}
		snap.PricePerShare = o.spot.PricePerShare
		snap.BalancePosition = mtm
		snap.ReturnsGenerated, _ = amount.SubFloor(mtm, v.BalanceTokens)
	}

	// --- Per-transaction key collision ---
	existing, ok, err := o.tx.VaultSnapshot(o.ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		if !existing.SamePayload(snap) {
			return nil, nil, conflict("vault snapshot", key)
		}
		return snap, existing, nil
	}
	return snap, nil, nil
}

// commitVault stages the snapshot and the updated vault, and rolls the
// snapshot into the vault's day aggregate. With a reused snapshot only the
// vault and its day aggregate change; snap still carries this event's
// deltas for the fold.
func (o *op) commitVault(v *model.Vault, snap, reused *model.VaultSnapshot) error {
	if reused != nil {
		if err := o.updateVaultDay(v, snap); err != nil {
			return err
		}
		o.res.Vault = reused
		o.rec.Vault = &reused.Key
		return o.tx.PutVault(v)
	}

	v.LatestUpdate = &snap.Key
	v.Snapshots++

	if err := o.updateVaultDay(v, snap); err != nil {
		return err
	}
	if err := o.tx.PutVaultSnapshot(snap); err != nil {
		return err
	}
	if err := o.tx.PutVault(v); err != nil {
		return err
	}
	o.res.Vault = snap
	o.rec.Vault = &snap.Key
	return nil
}

// updateVaultDay folds a snapshot into the vault's UTC-day aggregate. A
// new day starts from the previous day's running total.
func (o *op) updateVaultDay(v *model.Vault, snap *model.VaultSnapshot) error {
	key := ident.DayKey{Vault: v.ID, Day: dayOf(snap.Timestamp)}

	day, ok, err := o.tx.VaultDay(o.ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		day = &model.VaultDayData{
			Key:                      key,
			Timestamp:                time.Unix(key.Day*86400, 0).UTC(),
			Deposited:                amount.Zero(),
			Withdrawn:                amount.Zero(),
			DayReturnsGenerated:      amount.Zero(),
			TotalReturnsGenerated:    amount.Zero(),
			DayReturnsGeneratedRef:   amount.Zero(),
			TotalReturnsGeneratedRef: amount.Zero(),
		}
		if v.LatestDay != nil && v.LatestDay.Day < key.Day {
			prev, found, err := o.tx.VaultDay(o.ctx, *v.LatestDay)
			if err != nil {
				return err
			}
			if found {
				day.TotalReturnsGenerated = prev.TotalReturnsGenerated
				day.TotalReturnsGeneratedRef = prev.TotalReturnsGeneratedRef
			}
		}
	}

	day.PricePerShare = snap.PricePerShare
	returns := snap.ReturnsGenerated
	returnsRef := o.valueOrZero(v.Token, returns)

	for _, step := range []struct {
		dst *sdkmath.Int
		v   sdkmath.Int
	}{
		{&day.Deposited, amount.OrZero(depositedBy(snap))},
		{&day.Withdrawn, amount.OrZero(withdrawnBy(snap))},
		{&day.DayReturnsGenerated, returns},
		{&day.TotalReturnsGenerated, returns},
		{&day.DayReturnsGeneratedRef, returnsRef},
		{&day.TotalReturnsGeneratedRef, returnsRef},
	} {
		if *step.dst, err = amount.Add(*step.dst, step.v); err != nil {
			return err
		}
	}

	if v.LatestDay == nil || v.LatestDay.Day < key.Day {
		v.LatestDay = &key
	}
	return o.tx.PutVaultDay(day)
}

func depositedBy(s *model.VaultSnapshot) sdkmath.Int {
	if s.Kind == model.VaultDeposit {
		return s.AssetsDelta
	}
	return amount.Zero()
}

func withdrawnBy(s *model.VaultSnapshot) sdkmath.Int {
	if s.Kind == model.VaultWithdraw {
		return s.AssetsDelta
	}
	return amount.Zero()
}

func dayOf(t time.Time) int64 {
	return t.Unix() / 86400
}

// managementFee is the fee a vault assesses on a strategy's debt for the
// time since its previous report.
func managementFee(totalDebt sdkmath.Int, bps uint32, elapsed time.Duration) (sdkmath.Int, error) {
	secs := int64(elapsed / time.Second)
	if secs <= 0 || bps == 0 {
		return amount.Zero(), nil
	}
	return amount.MulDiv(totalDebt, amount.New(uint64(secs)*uint64(bps)), amount.New(maxBps*secsPerYear))
}

// performanceFee is the share of a gain taken by the vault and the
// strategist.
func performanceFee(gain sdkmath.Int, vaultBps, strategyBps uint32) (sdkmath.Int, error) {
	return amount.MulDiv(gain, amount.New(uint64(vaultBps)+uint64(strategyBps)), amount.New(maxBps))
}
