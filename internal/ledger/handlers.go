package ledger

import (
	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/event"
	"github.com/atmx/vault-ledger/internal/model"
)

func (o *op) deposit(e event.Deposit) error {
	assets := amount.OrZero(e.Assets)
	shares := e.Shares
	if shares.IsNil() {
		var err error
		if shares, err = amount.AssetsToShares(assets, o.spot.TotalAssets, o.spot.TotalSupply); err != nil {
			return err
		}
	}

	v, err := o.loadVault(e.Vault, true)
	if err != nil {
		return err
	}
	if err := o.tx.PutVault(v); err != nil {
		return err
	}
	if err := o.depositPosition(e.Account, e.Vault, assets, shares); err != nil {
		return err
	}
	if err := o.depositVault(v, assets, shares); err != nil {
		return err
	}
	return o.tx.PutDeposit(&model.Deposit{
		Event:        o.meta.Event,
		Account:      e.Account,
		Vault:        e.Vault,
		TokenAmount:  assets,
		SharesMinted: shares,
		Timestamp:    o.meta.Timestamp,
	})
}

func (o *op) withdraw(e event.Withdraw) error {
	shares := amount.OrZero(e.Shares)
	assets := e.Assets
	if assets.IsNil() {
		var err error
		if assets, err = amount.SharesToAssets(shares, o.spot.TotalAssets, o.spot.TotalSupply); err != nil {
			return err
		}
	}

	v, err := o.loadVault(e.Vault, true)
	if err != nil {
		return err
	}
	if err := o.ensureAccount(e.Account); err != nil {
		return err
	}
	if err := o.withdrawPosition(e.Account, e.Vault, assets, shares); err != nil {
		return err
	}
	if err := o.withdrawVault(v, assets, shares); err != nil {
		return err
	}
	return o.tx.PutWithdrawal(&model.Withdrawal{
		Event:       o.meta.Event,
		Account:     e.Account,
		Vault:       e.Vault,
		TokenAmount: assets,
		SharesBurnt: shares,
		Timestamp:   o.meta.Timestamp,
	})
}

// transfer handles share movements. Burns and plain mints are covered by
// the Withdraw and Deposit events of the same transaction; a mint to a fee
// recipient is a fee payment and credits the recipient.
func (o *op) transfer(e event.Transfer) error {
	shares := amount.OrZero(e.Shares)
	if e.To.IsZero() {
		o.res.Skipped = "burn"
		return nil
	}

	v, err := o.loadVault(e.Vault, true)
	if err != nil {
		return err
	}
	cat, isFee, err := o.classifyFee(v, e.To)
	if err != nil {
		return err
	}
	if e.From.IsZero() && !isFee {
		o.res.Skipped = "mint"
		return nil
	}

	assets, err := amount.SharesToAssets(shares, o.spot.TotalAssets, o.spot.TotalSupply)
	if err != nil {
		return err
	}

	if e.From.IsZero() {
		// Fee mints raise supply without a Deposit event.
		if v.SharesSupply, err = amount.Add(v.SharesSupply, shares); err != nil {
			return err
		}
	} else if err := o.ensureAccount(e.From); err != nil {
		return err
	}
	if err := o.tx.PutVault(v); err != nil {
		return err
	}
	if err := o.transferPositions(e.From, e.To, e.Vault, assets, shares); err != nil {
		return err
	}

	t := &model.Transfer{
		Event:          o.meta.Event,
		From:           e.From,
		To:             e.To,
		Vault:          e.Vault,
		Token:          v.Token,
		TokenAmount:    assets,
		TokenAmountRef: amount.Zero(),
		ShareAmount:    shares,
		IsProtocolFee:  isFee,
		Timestamp:      o.meta.Timestamp,
	}
	if isFee {
		t.Category = cat
		if t.TokenAmountRef, err = o.recordFee(v, cat, assets); err != nil {
			return err
		}
	} else {
		t.TokenAmountRef = o.valueOrZero(v.Token, assets)
	}
	o.res.Transfer = t
	return o.tx.PutTransfer(t)
}

func (o *op) feeUpdated(e event.FeeUpdated) error {
	v, found, err := o.tx.Vault(o.ctx, e.Vault)
	if err != nil {
		return err
	}
	if !found {
		o.warn(warning(ReasonMissingPriorState, ErrMissingPriorState,
			"%s fee update for unregistered vault %s", e.Fee, e.Vault))
		if v, err = o.loadVault(e.Vault, false); err != nil {
			return err
		}
	}

	var kind model.VaultSnapshotKind
	switch e.Fee {
	case event.FeePerformance:
		v.PerformanceFeeBps = e.Bps
		kind = model.VaultPerformanceFee
	case event.FeeManagement:
		v.ManagementFeeBps = e.Bps
		kind = model.VaultManagementFee
	case event.FeeRewards:
		v.RewardsRecipient = e.Recipient
		kind = model.VaultRewardsRecipient
	default:
		return ErrUnsupportedEvent
	}
	return o.configVault(v, kind)
}

func (o *op) vaultRegistered(e event.VaultRegistered) error {
	v, err := o.loadVault(e.Vault, false)
	if err != nil {
		return err
	}
	if v.Token == "" {
		v.Token = e.Token
	}
	v.APIVersion = e.APIVersion
	if e.Classification != "" {
		v.Classification = e.Classification
	}
	return o.tx.PutVault(v)
}
