// Package stats turns a run's trades and daily closes into per-day
// mark-to-market results and aggregate performance metrics. Statistics
// are float math on top of the fixed-point run records; precision here
// is presentational, not accounting.
package stats

import (
	"sort"
	"time"

	"quant_go/internal/domain"
	"quant_go/pkg/quant"
)

// DailyResult is one day's mark-to-market decomposition. Holding PnL
// marks the overnight position from the previous close; trading PnL
// marks each fill from its price to the day's close.
type DailyResult struct {
	Date     time.Time `json:"date"`
	Close    float64   `json:"close_price"`
	PreClose float64   `json:"pre_close"`

	TradeCount int     `json:"trade_count"`
	StartPos   float64 `json:"start_pos"`
	EndPos     float64 `json:"end_pos"`

	Turnover   float64 `json:"turnover"`
	Commission float64 `json:"commission"`
	Slippage   float64 `json:"slippage"`

	TradingPnL float64 `json:"trading_pnl"`
	HoldingPnL float64 `json:"holding_pnl"`
	TotalPnL   float64 `json:"total_pnl"`
	NetPnL     float64 `json:"net_pnl"`

	// Filled in by ComputeMetrics.
	Balance   float64 `json:"balance"`
	Return    float64 `json:"return"`
	Drawdown  float64 `json:"drawdown"`
	DDPercent float64 `json:"ddpercent"`

	trades []domain.Trade
}

// Builder accumulates fills and daily closes during a run and chains
// the per-day results together at the end.
type Builder struct {
	size   float64
	byDate map[time.Time]*DailyResult
}

// NewBuilder creates a builder for one run. size is the contract
// multiplier.
func NewBuilder(size int64) *Builder {
	if size <= 0 {
		size = 1
	}
	return &Builder{size: float64(size), byDate: make(map[time.Time]*DailyResult)}
}

func (b *Builder) day(ts quant.TimeStamp) *DailyResult {
	date := ts.Date().Time()
	d, ok := b.byDate[date]
	if !ok {
		d = &DailyResult{Date: date}
		b.byDate[date] = d
	}
	return d
}

// OnTrade assigns a fill to its trading day.
func (b *Builder) OnTrade(t domain.Trade) {
	d := b.day(t.Ts)
	d.trades = append(d.trades, t)
}

// OnDayClose records the closing price of the day containing ts.
// Called on every daily bar; the last call for a date wins.
func (b *Builder) OnDayClose(ts quant.TimeStamp, close quant.PriceMicros) {
	b.day(ts).Close = close.Float()
}

// Finalize chains the days in date order and computes each day's PnL
// decomposition. The builder keeps its state, so calling twice yields
// the same slice.
func (b *Builder) Finalize() []DailyResult {
	days := make([]*DailyResult, 0, len(b.byDate))
	for _, d := range b.byDate {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	preClose := 0.0
	startPos := 0.0
	out := make([]DailyResult, 0, len(days))
	for _, d := range days {
		d.computePnL(preClose, startPos, b.size)
		preClose = d.Close
		startPos = d.EndPos
		out = append(out, *d)
	}
	return out
}

func (d *DailyResult) computePnL(preClose, startPos, size float64) {
	// A zero previous close would make the first day's holding mark
	// meaningless; fall back to one the way a zero-division guard does.
	if preClose != 0 {
		d.PreClose = preClose
	} else {
		d.PreClose = 1
	}

	d.StartPos = startPos
	d.EndPos = startPos
	d.HoldingPnL = startPos * (d.Close - d.PreClose) * size

	d.TradeCount = len(d.trades)
	d.Turnover, d.Commission, d.Slippage, d.TradingPnL = 0, 0, 0, 0
	for _, t := range d.trades {
		posChange := t.Volume.Float()
		if t.Direction == domain.Short {
			posChange = -posChange
		}
		d.EndPos += posChange

		d.Turnover += t.Volume.Float() * size * t.Price.Float()
		d.TradingPnL += posChange * (d.Close - t.Price.Float()) * size
		d.Commission += t.Commission.Float()
		d.Slippage += t.Slippage.Float()
	}

	d.TotalPnL = d.TradingPnL + d.HoldingPnL
	d.NetPnL = d.TotalPnL - d.Commission - d.Slippage
}
