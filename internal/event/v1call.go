package event

import (
	"encoding/json"
	"fmt"
)

// Legacy vaults are indexed from call traces. A deposit call carries the
// asset amount only and a withdraw call the share amount only; the ledger
// derives the other side from spot values.

type v1Deposit struct {
	Sender string `json:"sender"`
	Amount string `json:"_amount"`
}

type v1Withdraw struct {
	Sender string `json:"sender"`
	Shares string `json:"_shares"`
}

type v1Transfer struct {
	Sender string `json:"sender"`
	To     string `json:"_to"`
	Value  string `json:"_value"`
}

func decodeV1Call(meta Meta, kind string, payload json.RawMessage) (Event, error) {
	var p parser
	var ev Event

	switch kind {
	case "deposit":
		var w v1Deposit
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = Deposit{
			Meta:    meta,
			Account: p.addr("sender", w.Sender),
			Assets:  p.amt("_amount", w.Amount),
		}

	case "withdraw":
		var w v1Withdraw
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = Withdraw{
			Meta:    meta,
			Account: p.addr("sender", w.Sender),
			Shares:  p.amt("_shares", w.Shares),
		}

	case "transfer":
		var w v1Transfer
		if err := unmarshal(payload, &w); err != nil {
			return nil, err
		}
		ev = Transfer{
			Meta:   meta,
			From:   p.addr("sender", w.Sender),
			To:     p.addr("_to", w.To),
			Shares: p.amt("_value", w.Value),
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if p.err != nil {
		return nil, p.err
	}
	return ev, nil
}
