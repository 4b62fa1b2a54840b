package ledger

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/event"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/model"
)

const (
	MsPerDay    = 24 * 60 * 60 * 1000
	DaysPerYear = 365
)

// ComputeResult derives the return between two consecutive reports of a
// strategy. No rate is inferred when the current report has no debt, the
// period made no profit, or no time elapsed.
func ComputeResult(prev, cur *model.StrategyReport) (*model.ReportResult, error) {
	profit, err := amount.SignedSub(cur.TotalGain, prev.TotalGain)
	if err != nil {
		return nil, err
	}
	res := &model.ReportResult{
		Current:        cur.Key,
		Previous:       prev.Key,
		StartTimestamp: prev.Timestamp,
		EndTimestamp:   cur.Timestamp,
		DurationMs:     cur.Timestamp.UnixMilli() - prev.Timestamp.UnixMilli(),
		Profit:         profit,
		DurationPr:     decimal.Zero,
		APR:            decimal.Zero,
	}

	debt := amount.OrZero(cur.TotalDebt)
	if debt.IsZero() || profit.IsZero() || res.DurationMs == 0 {
		return res, nil
	}

	profitD := decimal.NewFromBigInt(profit.BigInt(), 0)
	debtD := decimal.NewFromBigInt(debt.BigInt(), 0)
	res.DurationPr = profitD.Div(debtD)

	// apr = durationPr * DaysPerYear / (duration / MsPerDay), computed as a
	// single division.
	res.APR = profitD.Mul(decimal.NewFromInt(DaysPerYear * MsPerDay)).
		Div(debtD.Mul(decimal.NewFromInt(res.DurationMs)))
	return res, nil
}

func (o *op) strategyReported(e event.StrategyReported) error {
	strat, err := o.loadStrategy(e.Strategy, e.Vault)
	if err != nil {
		return err
	}

	rep, prev, err := o.recordReport(strat, e)
	if err != nil || rep == nil {
		return err
	}

	// --- Report result ---
	if prev != nil {
		rr, err := ComputeResult(prev, rep)
		if err != nil {
			return err
		}
		if err := o.tx.PutReportResult(rr); err != nil {
			return err
		}
		o.res.ReportResult = rr
	}

	// --- Vault anchor and fees ---
	v, err := o.loadVault(e.Vault, true)
	if err != nil {
		return err
	}
	perf, err := performanceFee(rep.Gain, v.PerformanceFeeBps, strat.PerformanceFeeBps)
	if err != nil {
		return err
	}
	mgmt := amount.Zero()
	if prev != nil {
		if mgmt, err = managementFee(rep.TotalDebt, v.ManagementFeeBps, rep.Timestamp.Sub(prev.Timestamp)); err != nil {
			return err
		}
	}
	return o.strategyReportedVault(v, mgmt, perf)
}

// recordReport stores the report and moves the strategy's latest-report
// pointer to it. It returns the previous report when one is known.
func (o *op) recordReport(strat *model.Strategy, e event.StrategyReported) (cur, prev *model.StrategyReport, err error) {
	key := ident.ReportKey{Strategy: strat.ID, Event: o.meta.Event}
	rep := &model.StrategyReport{
		Key:         key,
		Vault:       e.Vault,
		Timestamp:   o.meta.Timestamp,
		BlockNumber: o.meta.Block,
		Gain:        amount.OrZero(e.Gain),
		Loss:        amount.OrZero(e.Loss),
		TotalGain:   amount.OrZero(e.TotalGain),
		TotalLoss:   amount.OrZero(e.TotalLoss),
		TotalDebt:   amount.OrZero(e.TotalDebt),
		DebtAdded:   amount.OrZero(e.DebtAdded),
		DebtRatio:   amount.OrZero(e.DebtRatio),
		DebtPaid:    amount.OrZero(e.DebtPaid),
	}

	existing, ok, err := o.tx.StrategyReport(o.ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		if !existing.SamePayload(rep) {
			return nil, nil, conflict("strategy report", key.Event)
		}
		o.res.Report = existing
		o.rec.Report = &existing.Key
		return nil, nil, nil
	}

	if latest := strat.LatestReport; latest != nil {
		p, found, err := o.tx.StrategyReport(o.ctx, *latest)
		if err != nil {
			return nil, nil, err
		}
		if found {
			prev = p
		} else {
			o.warn(warning(ReasonMissingPriorState, ErrMissingPriorState,
				"previous report %s of strategy %s not found", latest.Event, strat.ID))
		}
	} else {
		slog.Debug("first report of strategy, no result", "strategy", strat.ID.String())
	}

	strat.LatestReport = &key
	strat.DebtRatio = rep.DebtRatio
	if err := o.tx.PutStrategyReport(rep); err != nil {
		return nil, nil, err
	}
	if err := o.tx.PutStrategy(strat); err != nil {
		return nil, nil, err
	}
	o.res.Report = rep
	o.rec.Report = &rep.Key
	return rep, prev, nil
}

// loadStrategy returns the strategy, creating it when a report arrives for
// a strategy the ledger has not seen added.
func (o *op) loadStrategy(id, vault ident.Address) (*model.Strategy, error) {
	s, ok, err := o.tx.Strategy(o.ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		return s, nil
	}
	return &model.Strategy{
		ID:        id,
		Vault:     vault,
		DebtRatio: amount.Zero(),
		CreatedBy: o.meta.Event,
	}, nil
}

func (o *op) strategyAdded(e event.StrategyAdded) error {
	s, err := o.loadStrategy(e.Strategy, e.Vault)
	if err != nil {
		return err
	}
	s.DebtRatio = amount.OrZero(e.DebtRatio)
	s.PerformanceFeeBps = e.PerformanceFeeBps
	if err := o.tx.PutStrategy(s); err != nil {
		return err
	}

	v, err := o.loadVault(e.Vault, false)
	if err != nil {
		return err
	}
	return o.tx.PutVault(v)
}
