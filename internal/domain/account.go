package domain

import "quant_go/pkg/quant"

// AccountSnapshot is the account state recorded at a bar close.
// Equity = Cash + sum of position market values, and recomputing it
// from the same state always yields the same value.
type AccountSnapshot struct {
	Ts            quant.TimeStamp `json:"ts"`
	Cash          quant.Money     `json:"cash"`
	PositionValue quant.Money     `json:"position_value"`
	Equity        quant.Money     `json:"equity"`
	MarginUsed    quant.Money     `json:"margin_used"`
	RealizedPnL   quant.Money     `json:"realized_pnl"`
	UnrealizedPnL quant.Money     `json:"unrealized_pnl"`
}
