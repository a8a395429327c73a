package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant_go/internal/domain"
	"quant_go/pkg/quant"
)

const capital = quant.Money(10_000_000_000) // 10,000.0

func trade(dir domain.Direction, price quant.PriceMicros, vol quant.VolumeMilli, commission quant.Money) domain.Trade {
	return domain.Trade{
		ID: "t", OrderID: "o", Symbol: "ETH.LOCAL",
		Direction: dir, Price: price, Volume: vol,
		Commission: commission,
	}
}

func TestLedger_BuyMovesCashAndEquity(t *testing.T) {
	l := New(capital, 1, decimal.Zero)

	// Buy 1.0 @ 100.0, commission 0.02.
	l.OnTrade(trade(domain.Long, 100_000_000, 1000, 20_000))
	assert.Equal(t, capital-100_000_000-20_000, l.Cash())

	snap := l.MarkToMarket(1000, map[string]quant.PriceMicros{"ETH.LOCAL": 105_000_000})
	assert.Equal(t, quant.Money(105_000_000), snap.PositionValue)
	assert.Equal(t, quant.Money(5_000_000), snap.UnrealizedPnL)
	assert.Equal(t, snap.Cash+snap.PositionValue, snap.Equity)
}

func TestLedger_RoundTripRealizesPnL(t *testing.T) {
	l := New(capital, 1, decimal.Zero)

	l.OnTrade(trade(domain.Long, 100_000_000, 2000, 0))
	l.OnTrade(trade(domain.Short, 110_000_000, 2000, 0))

	// 2.0 * (110 - 100) = 20.0 realized, position flat.
	assert.Equal(t, quant.Money(20_000_000), l.RealizedPnL())
	pos := l.Position("ETH.LOCAL")
	assert.Equal(t, quant.VolumeMilli(0), pos.Volume)
	assert.Equal(t, capital+20_000_000, l.Cash())

	snap := l.MarkToMarket(1000, map[string]quant.PriceMicros{"ETH.LOCAL": 120_000_000})
	assert.Equal(t, quant.Money(0), snap.UnrealizedPnL)
	assert.Equal(t, capital+20_000_000, snap.Equity)
}

func TestLedger_AverageCostBlends(t *testing.T) {
	l := New(capital, 1, decimal.Zero)

	l.OnTrade(trade(domain.Long, 100_000_000, 1000, 0))
	l.OnTrade(trade(domain.Long, 110_000_000, 1000, 0))

	pos := l.Position("ETH.LOCAL")
	assert.Equal(t, quant.VolumeMilli(2000), pos.Volume)
	assert.Equal(t, quant.PriceMicros(105_000_000), pos.AvgCost)
}

func TestLedger_FlipThroughFlat(t *testing.T) {
	l := New(capital, 1, decimal.Zero)

	l.OnTrade(trade(domain.Long, 100_000_000, 1000, 0))
	// Sell 3.0: closes the 1.0 long at +10, opens 2.0 short at 110.
	l.OnTrade(trade(domain.Short, 110_000_000, 3000, 0))

	assert.Equal(t, quant.Money(10_000_000), l.RealizedPnL())
	pos := l.Position("ETH.LOCAL")
	assert.Equal(t, quant.VolumeMilli(-2000), pos.Volume)
	assert.Equal(t, quant.PriceMicros(110_000_000), pos.AvgCost)
}

func TestLedger_ShortCoverRealizes(t *testing.T) {
	l := New(capital, 1, decimal.Zero)

	l.OnTrade(trade(domain.Short, 100_000_000, 1000, 0))
	l.OnTrade(trade(domain.Long, 90_000_000, 1000, 0))

	assert.Equal(t, quant.Money(10_000_000), l.RealizedPnL())
	assert.Equal(t, capital+10_000_000, l.Cash())
}

func TestLedger_ContractMultiplier(t *testing.T) {
	l := New(quant.Money(10_000_000_000_000), 300, decimal.Zero)

	// Buy 1.0 contract @ 4000.0 with size 300: notional 1,200,000.
	l.OnTrade(trade(domain.Long, 4_000_000_000, 1000, 0))
	assert.Equal(t, quant.Money(10_000_000_000_000-1_200_000_000_000), l.Cash())

	snap := l.MarkToMarket(1000, map[string]quant.PriceMicros{"ETH.LOCAL": 4_010_000_000})
	// (4010 - 4000) * 1.0 * 300 = 3000.0 unrealized.
	assert.Equal(t, quant.Money(3_000_000_000), snap.UnrealizedPnL)
}

func TestLedger_MarkToMarketIdempotent(t *testing.T) {
	l := New(capital, 1, decimal.Zero)
	l.OnTrade(trade(domain.Long, 100_000_000, 1000, 0))

	marks := map[string]quant.PriceMicros{"ETH.LOCAL": 103_000_000}
	first := l.MarkToMarket(1000, marks)
	second := l.MarkToMarket(1000, marks)
	require.Equal(t, first, second)

	// Marks persist: a later call without a fresh mark reuses 103.
	third := l.MarkToMarket(2000, nil)
	assert.Equal(t, first.Equity, third.Equity)
}

func TestLedger_MarginUsed(t *testing.T) {
	l := New(capital, 1, decimal.RequireFromString("0.1"))
	l.OnTrade(trade(domain.Long, 100_000_000, 1000, 0))

	snap := l.MarkToMarket(1000, map[string]quant.PriceMicros{"ETH.LOCAL": 100_000_000})
	assert.Equal(t, quant.Money(10_000_000), snap.MarginUsed)
}

func TestLedger_UntradedSymbolIsFlat(t *testing.T) {
	l := New(capital, 1, decimal.Zero)
	pos := l.Position("BTC.LOCAL")
	assert.Equal(t, quant.VolumeMilli(0), pos.Volume)
	assert.Equal(t, 0, l.TradeCount())
}
