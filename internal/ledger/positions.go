package ledger

import (
	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/model"
)

// leg is one update to one position caused by the current event.
type leg struct {
	position ident.PositionKey
	side     ident.Side
	kind     model.PositionSnapshotKind
	assets   sdkmath.Int
	shares   sdkmath.Int
	// self marks the outgoing leg of a self-transfer: shares leave and
	// come straight back, so principal and profit are left alone.
	self bool
}

func (l leg) key(ev ident.EventKey) ident.LegKey {
	return ident.LegKey{Position: l.position, Event: ev, Side: l.side}
}

// depositPosition credits a deposit to the account's position, creating
// the position on first deposit.
func (o *op) depositPosition(account, vault ident.Address, assets, shares sdkmath.Int) error {
	return o.applyLeg(leg{
		position: ident.PositionKey{Account: account, Vault: vault},
		side:     ident.SideSelf,
		kind:     model.PositionDeposit,
		assets:   assets,
		shares:   shares,
	})
}

// withdrawPosition debits a withdrawal. A position that was never opened
// is reported and left alone.
func (o *op) withdrawPosition(account, vault ident.Address, assets, shares sdkmath.Int) error {
	return o.applyLeg(leg{
		position: ident.PositionKey{Account: account, Vault: vault},
		side:     ident.SideSelf,
		kind:     model.PositionWithdraw,
		assets:   assets,
		shares:   shares,
	})
}

// transferPositions moves shares between two positions. Each side
// advances its own chain by one snapshot, including when both sides are
// the same position.
func (o *op) transferPositions(from, to, vault ident.Address, assets, shares sdkmath.Int) error {
	if from == to && !from.IsZero() {
		// A self-transfer is net zero; without a position neither leg applies.
		key := ident.PositionKey{Account: from, Vault: vault}
		_, found, err := o.tx.Position(o.ctx, key)
		if err != nil {
			return err
		}
		if !found {
			o.warn(warning(ReasonMissingPriorState, ErrMissingPriorState,
				"%s by %s in %s without a position", model.PositionTransferOut, from, vault))
			return nil
		}
	}
	if !from.IsZero() {
		err := o.applyLeg(leg{
			position: ident.PositionKey{Account: from, Vault: vault},
			side:     ident.SideFrom,
			kind:     model.PositionTransferOut,
			assets:   assets,
			shares:   shares,
			self:     from == to,
		})
		if err != nil {
			return err
		}
	}
	return o.applyLeg(leg{
		position: ident.PositionKey{Account: to, Vault: vault},
		side:     ident.SideTo,
		kind:     model.PositionTransferIn,
		assets:   assets,
		shares:   shares,
	})
}

func (o *op) applyLeg(l leg) error {
	legKey := l.key(o.meta.Event)

	// --- Leg idempotency ---
	ref, seen, err := o.tx.Leg(o.ctx, legKey)
	if err != nil {
		return err
	}
	if seen {
		return o.replayLeg(l, ref)
	}

	pos, found, err := o.tx.Position(o.ctx, l.position)
	if err != nil {
		return err
	}
	if !found {
		if l.kind == model.PositionWithdraw || l.kind == model.PositionTransferOut {
			o.warn(warning(ReasonMissingPriorState, ErrMissingPriorState,
				"%s by %s in %s without a position", l.kind, l.position.Account, l.position.Vault))
			return nil
		}
		if err := o.ensureAccount(l.position.Account); err != nil {
			return err
		}
		pos = &model.Position{
			Key:             l.position,
			Token:           o.vaultToken(l.position.Vault),
			ShareToken:      l.position.Vault,
			BalanceShares:   amount.Zero(),
			BalanceTokens:   amount.Zero(),
			BalanceProfit:   amount.Zero(),
			BalancePosition: amount.Zero(),
			CreatedBy:       o.meta.Event,
		}
	}

	snap, err := o.nextPositionSnapshot(pos, l, legKey)
	if err != nil {
		return err
	}
	if err := o.updatePosition(pos, l); err != nil {
		return err
	}

	snap.BalancePosition = pos.BalancePosition
	pos.LatestUpdate = &snap.Key

	if err := o.tx.PutPositionSnapshot(snap); err != nil {
		return err
	}
	if err := o.tx.PutLeg(&model.LegRef{Leg: legKey, Snapshot: snap.Key}); err != nil {
		return err
	}
	if err := o.tx.PutPosition(pos); err != nil {
		return err
	}

	o.res.Positions = append(o.res.Positions, *snap)
	o.rec.Positions = append(o.rec.Positions, snap.Key)
	return nil
}

// nextPositionSnapshot builds the snapshot after prev, carrying the
// cumulative fields forward and adding this leg.
func (o *op) nextPositionSnapshot(pos *model.Position, l leg, legKey ident.LegKey) (*model.PositionSnapshot, error) {
	snap := &model.PositionSnapshot{
		Key:            ident.SnapshotKey{Position: l.position, Order: 0},
		Leg:            legKey,
		Kind:           l.kind,
		Timestamp:      o.meta.Timestamp,
		BlockNumber:    o.meta.Block,
		AssetsDelta:    l.assets,
		SharesDelta:    l.shares,
		Deposits:       amount.Zero(),
		Withdrawals:    amount.Zero(),
		SharesMinted:   amount.Zero(),
		SharesBurnt:    amount.Zero(),
		SharesSent:     amount.Zero(),
		SharesReceived: amount.Zero(),
		TokensSent:     amount.Zero(),
		TokensReceived: amount.Zero(),
	}

	if latest := pos.LatestUpdate; latest != nil {
		snap.Key.Order = latest.Order + 1
		prevKey := *latest
		snap.Previous = &prevKey

		prev, ok, err := o.tx.PositionSnapshot(o.ctx, prevKey)
		if err != nil {
			return nil, err
		}
		if ok {
			snap.Deposits = prev.Deposits
			snap.Withdrawals = prev.Withdrawals
			snap.SharesMinted = prev.SharesMinted
			snap.SharesBurnt = prev.SharesBurnt
			snap.SharesSent = prev.SharesSent
			snap.SharesReceived = prev.SharesReceived
			snap.TokensSent = prev.TokensSent
			snap.TokensReceived = prev.TokensReceived
		} else {
			o.warn(warning(ReasonMissingPriorState, ErrMissingPriorState,
				"position snapshot %d of %s in %s not found", prevKey.Order, l.position.Account, l.position.Vault))
		}
	}

	var err error
	add := func(dst *sdkmath.Int, v sdkmath.Int) {
		if err == nil {
			*dst, err = amount.Add(*dst, v)
		}
	}
	switch l.kind {
	case model.PositionDeposit:
		add(&snap.Deposits, l.assets)
		add(&snap.SharesMinted, l.shares)
	case model.PositionWithdraw:
		add(&snap.Withdrawals, l.assets)
		add(&snap.SharesBurnt, l.shares)
	case model.PositionTransferOut:
		add(&snap.SharesSent, l.shares)
		add(&snap.TokensSent, l.assets)
	case model.PositionTransferIn:
		add(&snap.SharesReceived, l.shares)
		add(&snap.TokensReceived, l.assets)
	}
	return snap, err
}

// updatePosition applies the leg to the running balances.
func (o *op) updatePosition(pos *model.Position, l leg) error {
	var err error
	switch l.kind {
	case model.PositionDeposit:
		if pos.BalanceShares, err = amount.Add(pos.BalanceShares, l.shares); err != nil {
			return err
		}
		if pos.BalanceTokens, err = amount.Add(pos.BalanceTokens, l.assets); err != nil {
			return err
		}

	case model.PositionTransferIn:
		// Received shares carry no principal.
		if pos.BalanceShares, err = amount.Add(pos.BalanceShares, l.shares); err != nil {
			return err
		}

	case model.PositionWithdraw, model.PositionTransferOut:
		if err := o.debitPosition(pos, l); err != nil {
			return err
		}
	}

	pos.BalancePosition, err = o.mark(pos.BalanceShares)
	return err
}

// debitPosition removes shares and principal. Realized profit is booked
// only when the position is fully exited without clamping.
func (o *op) debitPosition(pos *model.Position, l leg) error {
	shares, clamped := amount.SubFloor(pos.BalanceShares, l.shares)
	if clamped {
		o.warn(warning(ReasonInsufficientBalance, ErrInsufficientBalance,
			"%s of %s shares exceeds balance %s of %s in %s",
			l.kind, l.shares, pos.BalanceShares, l.position.Account, l.position.Vault))
	}
	pos.BalanceShares = shares

	if l.self {
		return nil
	}

	principal := pos.BalanceTokens
	pos.BalanceTokens, _ = amount.SubFloor(principal, l.assets)

	if shares.IsZero() && !clamped {
		profit, err := amount.SignedSub(l.assets, principal)
		if err != nil {
			return err
		}
		if pos.BalanceProfit, err = amount.Add(pos.BalanceProfit, profit); err != nil {
			return err
		}
	}
	return nil
}

// replayLeg handles a leg that was already applied: identical inputs are
// a no-op, different ones a conflict.
func (o *op) replayLeg(l leg, ref *model.LegRef) error {
	snap, ok, err := o.tx.PositionSnapshot(o.ctx, ref.Snapshot)
	if err != nil {
		return err
	}
	if !ok {
		return conflict("position leg without snapshot", ref.Leg.Position)
	}
	cand := &model.PositionSnapshot{Kind: l.kind, AssetsDelta: l.assets, SharesDelta: l.shares}
	if !snap.SamePayload(cand) {
		return conflict("position leg", ref.Snapshot)
	}
	o.res.Positions = append(o.res.Positions, *snap)
	o.rec.Positions = append(o.rec.Positions, snap.Key)
	return nil
}
