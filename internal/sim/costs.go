package sim

import (
	"github.com/shopspring/decimal"

	"quant_go/pkg/quant"
)

// CommissionMode selects how commission is charged per fill.
type CommissionMode string

const (
	// CommissionRate charges a fraction of fill turnover.
	CommissionRate CommissionMode = "rate"
	// CommissionFixed charges a flat amount per fill.
	CommissionFixed CommissionMode = "fixed"
	// CommissionPerUnit charges a fixed amount per contract.
	CommissionPerUnit CommissionMode = "per_unit"
)

// StopFillRule selects the price a triggered stop order fills at.
type StopFillRule string

const (
	// RuleNextAvailable fills at the stop level unless the bar opened
	// through it, in which case the open is the first available price.
	RuleNextAvailable StopFillRule = "next_available"
	// RuleStopPrice fills exactly at the stop level.
	RuleStopPrice StopFillRule = "stop_price"
)

// CostModel prices the frictions applied to each fill. Configured
// rates stay in decimal so a rate like 2.5e-5 keeps its exact value;
// only the final charge is rounded back to money.
type CostModel struct {
	Mode     CommissionMode
	Rate     decimal.Decimal // turnover fraction, Mode == CommissionRate
	Fixed    quant.Money     // flat charge, Mode == CommissionFixed
	PerUnit  decimal.Decimal // per contract, Mode == CommissionPerUnit
	Slippage decimal.Decimal // price units lost per contract
	Size     int64           // contract multiplier
}

func (c *CostModel) size() decimal.Decimal {
	if c.Size <= 0 {
		return decimal.New(1, 0)
	}
	return decimal.New(c.Size, 0)
}

// Commission returns the fee charged for one fill.
func (c *CostModel) Commission(price quant.PriceMicros, volume quant.VolumeMilli) quant.Money {
	switch c.Mode {
	case CommissionFixed:
		return c.Fixed
	case CommissionPerUnit:
		return quant.MoneyFromDecimal(volume.Decimal().Mul(c.size()).Mul(c.PerUnit))
	default:
		turnover := price.Decimal().Mul(volume.Decimal()).Mul(c.size())
		return quant.MoneyFromDecimal(turnover.Mul(c.Rate))
	}
}

// SlippageCost returns the friction charged beside commission,
// modeled as a fixed price concession per contract.
func (c *CostModel) SlippageCost(volume quant.VolumeMilli) quant.Money {
	if c.Slippage.IsZero() {
		return 0
	}
	return quant.MoneyFromDecimal(volume.Decimal().Mul(c.size()).Mul(c.Slippage))
}
