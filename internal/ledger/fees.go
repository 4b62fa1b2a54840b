package ledger

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/metrics"
	"github.com/atmx/vault-ledger/internal/model"
	"github.com/atmx/vault-ledger/internal/oracle"
)

// classifyFee reports which fee category a transfer to `to` belongs to.
// The vault's rewards recipient (treasury) takes precedence over
// strategies.
func (o *op) classifyFee(v *model.Vault, to ident.Address) (model.FeeCategory, bool, error) {
	if !v.RewardsRecipient.IsZero() && v.RewardsRecipient != "" && to == v.RewardsRecipient {
		return model.FeeTreasury, true, nil
	}
	_, isStrategy, err := o.tx.Strategy(o.ctx, to)
	if err != nil {
		return "", false, err
	}
	if isStrategy {
		return model.FeeStrategy, true, nil
	}
	return "", false, nil
}

// recordFee adds a fee transfer to the per-category and per-token totals.
// An amount the oracle cannot value counts as zero in the reference
// totals and is reported as a warning.
func (o *op) recordFee(v *model.Vault, cat model.FeeCategory, tokenAmount sdkmath.Int) (sdkmath.Int, error) {
	ref, err := o.oracle.Value(o.ctx, v.Token, tokenAmount)
	switch {
	case errors.Is(err, oracle.ErrUnavailable):
		metrics.OracleUnavailable.Inc()
		o.warn(warning(ReasonOracleUnavailable, ErrOracleUnavailable,
			"no price for %s, %s fee of %s not counted", v.Token, cat, tokenAmount))
		ref = amount.Zero()
	case err != nil:
		return sdkmath.Int{}, err
	}

	for _, c := range []model.FeeCategory{cat, model.FeeTotal} {
		totals, ok, err := o.tx.FeeTotals(o.ctx, c)
		if err != nil {
			return sdkmath.Int{}, err
		}
		if !ok {
			totals = &model.FeeTotals{Category: c, Amount: amount.Zero()}
		}
		if totals.Amount, err = amount.Add(totals.Amount, ref); err != nil {
			return sdkmath.Int{}, err
		}
		totals.Events++
		if err := o.tx.PutFeeTotals(totals); err != nil {
			return sdkmath.Int{}, err
		}
	}

	tf, ok, err := o.tx.TokenFees(o.ctx, v.Token)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !ok {
		tf = &model.TokenFees{
			Token:        v.Token,
			StrategyFees: amount.Zero(),
			TreasuryFees: amount.Zero(),
			TotalFees:    amount.Zero(),
		}
	}
	dst := &tf.TreasuryFees
	if cat == model.FeeStrategy {
		dst = &tf.StrategyFees
	}
	if *dst, err = amount.Add(*dst, tokenAmount); err != nil {
		return sdkmath.Int{}, err
	}
	if tf.TotalFees, err = amount.Add(tf.TotalFees, tokenAmount); err != nil {
		return sdkmath.Int{}, err
	}
	return ref, o.tx.PutTokenFees(tf)
}

// valueOrZero values an amount for informational aggregates; a missing
// price yields zero without a warning.
func (o *op) valueOrZero(token ident.Address, amt sdkmath.Int) sdkmath.Int {
	if amt.IsNil() || amt.IsZero() {
		return amount.Zero()
	}
	v, err := o.oracle.Value(o.ctx, token, amt)
	if err != nil {
		return amount.Zero()
	}
	return v
}
