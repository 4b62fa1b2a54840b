package event

import (
	"encoding/json"
	"fmt"
)

// Wire payloads of the log-based vaults. Amounts are decimal strings.

type v2Deposit struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Shares    string `json:"shares"`
}

type v2Withdraw struct {
	Recipient string `json:"recipient"`
	Shares    string `json:"shares"`
	Amount    string `json:"amount"`
}

type v2Transfer struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Value    string `json:"value"`
}

type v2StrategyReported struct {
	Strategy  string `json:"strategy"`
	Gain      string `json:"gain"`
	Loss      string `json:"loss"`
	DebtPaid  string `json:"debt_paid"`
	TotalGain string `json:"total_gain"`
	TotalLoss string `json:"total_loss"`
	TotalDebt string `json:"total_debt"`
	DebtAdded string `json:"debt_added"`
	DebtRatio string `json:"debt_ratio"`
}

type v2FeeUpdate struct {
	PerformanceFee *uint32 `json:"performance_fee"`
	ManagementFee  *uint32 `json:"management_fee"`
	Rewards        string  `json:"rewards"`
}

type v2NewVault struct {
	Token          string `json:"token"`
	APIVersion     string `json:"api_version"`
	Classification string `json:"classification"`
}

type v2StrategyAdded struct {
	Strategy       string  `json:"strategy"`
	DebtRatio      string  `json:"debt_ratio"`
	PerformanceFee *uint32 `json:"performance_fee"`
}

func decodeV2(meta Meta, kind string, payload json.RawMessage) (Event, error) {
	var p parser
	var ev Event

	switch kind {
	case "Deposit":
		var w v2Deposit
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = Deposit{
			Meta:    meta,
			Account: p.addr("recipient", w.Recipient),
			Assets:  p.amt("amount", w.Amount),
			Shares:  p.amt("shares", w.Shares),
		}

	case "Withdraw":
		var w v2Withdraw
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = Withdraw{
			Meta:    meta,
			Account: p.addr("recipient", w.Recipient),
			Shares:  p.amt("shares", w.Shares),
			Assets:  p.amt("amount", w.Amount),
		}

	case "Transfer":
		var w v2Transfer
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = Transfer{
			Meta:   meta,
			From:   p.addr("sender", w.Sender),
			To:     p.addr("receiver", w.Receiver),
			Shares: p.amt("value", w.Value),
		}

	case "StrategyReported":
		var w v2StrategyReported
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = StrategyReported{
			Meta:      meta,
			Strategy:  p.addr("strategy", w.Strategy),
			Gain:      p.amt("gain", w.Gain),
			Loss:      p.amt("loss", w.Loss),
			TotalGain: p.amt("total_gain", w.TotalGain),
			TotalLoss: p.amt("total_loss", w.TotalLoss),
			TotalDebt: p.amt("total_debt", w.TotalDebt),
			DebtAdded: p.amt("debt_added", w.DebtAdded),
			DebtRatio: p.amt("debt_ratio", w.DebtRatio),
			DebtPaid:  p.amt("debt_paid", w.DebtPaid),
		}

	case "UpdatePerformanceFee":
		var w v2FeeUpdate
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = FeeUpdated{Meta: meta, Fee: FeePerformance, Bps: p.bps("performance_fee", w.PerformanceFee)}

	case "UpdateManagementFee":
		var w v2FeeUpdate
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = FeeUpdated{Meta: meta, Fee: FeeManagement, Bps: p.bps("management_fee", w.ManagementFee)}

	case "UpdateRewards":
		var w v2FeeUpdate
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = FeeUpdated{Meta: meta, Fee: FeeRewards, Recipient: p.addr("rewards", w.Rewards)}

	case "NewVault":
		var w v2NewVault
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = VaultRegistered{
			Meta:           meta,
			Token:          p.addr("token", w.Token),
			APIVersion:     w.APIVersion,
			Classification: w.Classification,
		}

	case "StrategyAdded":
		var w v2StrategyAdded
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = StrategyAdded{
			Meta:              meta,
			Strategy:          p.addr("strategy", w.Strategy),
			DebtRatio:         p.amt("debt_ratio", w.DebtRatio),
			PerformanceFeeBps: p.bps("performance_fee", w.PerformanceFee),
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if p.err != nil {
		return nil, p.err
	}
	return ev, nil
}
