package domain

import (
	"quant_go/pkg/quant"
	"quant_go/pkg/safe"
)

// Position is the signed net exposure in one instrument, maintained by
// average-cost accounting. Created implicitly on the first trade; the
// average cost is meaningless while Volume is zero.
type Position struct {
	Symbol      string            `json:"symbol"`
	Volume      quant.VolumeMilli `json:"volume"` // positive long, negative short
	AvgCost     quant.PriceMicros `json:"avg_cost"`
	RealizedPnL quant.Money       `json:"realized_pnl"`
}

// IsLong reports whether the position is net long.
func (p *Position) IsLong() bool { return p.Volume > 0 }

// IsShort reports whether the position is net short.
func (p *Position) IsShort() bool { return p.Volume < 0 }

// UnrealizedPnL marks the open volume against the given price.
// size is the contract multiplier.
func (p *Position) UnrealizedPnL(mark quant.PriceMicros, size int64) quant.Money {
	if p.Volume == 0 {
		return 0
	}
	diff := safe.Sub(int64(mark), int64(p.AvgCost))
	pnl := safe.MulDiv(diff, int64(p.Volume), quant.VolumeScale)
	return quant.Money(safe.Mul(pnl, size))
}

// MarketValue returns the signed mark-to-market value of the position.
func (p *Position) MarketValue(mark quant.PriceMicros, size int64) quant.Money {
	if p.Volume == 0 {
		return 0
	}
	v := safe.MulDiv(int64(mark), int64(p.Volume), quant.VolumeScale)
	return quant.Money(safe.Mul(v, size))
}
