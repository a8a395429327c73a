package ledger

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"quant_go/internal/domain"
	"quant_go/pkg/quant"
	"quant_go/pkg/safe"
)

// Ledger is the single source of truth for cash and positions. Cash
// moves only on fills; equity is recomputed from marks at bar closes.
// All mutation happens on the replay goroutine.
type Ledger struct {
	cash       quant.Money
	size       int64
	marginRate decimal.Decimal

	positions map[string]*domain.Position
	marks     map[string]quant.PriceMicros

	realized   quant.Money
	commission quant.Money
	slippage   quant.Money
	tradeCount int
}

// New creates a ledger funded with the starting capital. size is the
// contract multiplier shared by every instrument in the run.
func New(capital quant.Money, size int64, marginRate decimal.Decimal) *Ledger {
	if size <= 0 {
		size = 1
	}
	return &Ledger{
		cash:       capital,
		size:       size,
		marginRate: marginRate,
		positions:  make(map[string]*domain.Position),
		marks:      make(map[string]quant.PriceMicros),
	}
}

// AvailableCash returns the cash free to margin new orders.
func (l *Ledger) AvailableCash() quant.Money { return l.cash }

// Cash returns the current cash balance.
func (l *Ledger) Cash() quant.Money { return l.cash }

// RealizedPnL returns the cumulative realized profit across symbols,
// before commission and slippage.
func (l *Ledger) RealizedPnL() quant.Money { return l.realized }

// TotalCommission returns the cumulative commission paid.
func (l *Ledger) TotalCommission() quant.Money { return l.commission }

// TotalSlippage returns the cumulative slippage paid.
func (l *Ledger) TotalSlippage() quant.Money { return l.slippage }

// TradeCount returns the number of fills applied.
func (l *Ledger) TradeCount() int { return l.tradeCount }

// Position returns a snapshot of the net position in symbol. A flat
// zero-value position is returned for symbols never traded.
func (l *Ledger) Position(symbol string) domain.Position {
	if p, ok := l.positions[symbol]; ok {
		return *p
	}
	return domain.Position{Symbol: symbol}
}

// notional returns the cash value of volume contracts at price.
func (l *Ledger) notional(price quant.PriceMicros, volume quant.VolumeMilli) quant.Money {
	v := safe.MulDiv(int64(price), int64(volume), quant.VolumeScale)
	return quant.Money(safe.Mul(v, l.size))
}

// OnTrade applies one fill: cash moves by the signed notional plus
// costs, and the position updates under average-cost accounting. A
// fill that crosses through flat closes the old side at its average
// cost and opens the remainder at the fill price.
func (l *Ledger) OnTrade(t domain.Trade) {
	p, ok := l.positions[t.Symbol]
	if !ok {
		p = &domain.Position{Symbol: t.Symbol}
		l.positions[t.Symbol] = p
	}

	sign := t.Direction.Sign()
	l.cash -= quant.Money(sign) * l.notional(t.Price, t.Volume)
	l.cash -= t.Commission + t.Slippage
	l.commission += t.Commission
	l.slippage += t.Slippage
	l.tradeCount++

	remaining := t.Volume
	if p.Volume != 0 && (p.Volume > 0) != (sign > 0) {
		// Closing against the existing side realizes PnL at avg cost.
		closed := min(remaining, absVolume(p.Volume))
		diff := safe.Sub(int64(t.Price), int64(p.AvgCost))
		pnl := safe.Mul(safe.MulDiv(diff, int64(closed), quant.VolumeScale), l.size)
		if p.Volume < 0 {
			pnl = -pnl
		}
		p.RealizedPnL += quant.Money(pnl)
		l.realized += quant.Money(pnl)

		p.Volume += quant.VolumeMilli(sign) * closed
		remaining -= closed
		if p.Volume == 0 {
			p.AvgCost = 0
		}
	}
	if remaining > 0 {
		// Opening (or flipping): blend the fill into the average cost.
		oldAbs := absVolume(p.Volume)
		newAbs := oldAbs + remaining
		weighted := safe.Add(
			safe.MulDiv(int64(p.AvgCost), int64(oldAbs), quant.VolumeScale),
			safe.MulDiv(int64(t.Price), int64(remaining), quant.VolumeScale),
		)
		p.AvgCost = quant.PriceMicros(safe.MulDiv(weighted, quant.VolumeScale, int64(newAbs)))
		p.Volume += quant.VolumeMilli(sign) * remaining
	}

	slog.Debug("fill applied",
		slog.String("symbol", t.Symbol),
		slog.String("direction", string(t.Direction)),
		slog.String("volume", t.Volume.String()),
		slog.String("cash", l.cash.String()))
}

// MarkToMarket recomputes the account snapshot at ts using the given
// closing marks. Marks persist between calls, so instruments without a
// fresh bar keep their last known price. The computation reads ledger
// state without mutating it beyond the mark cache, so repeating a call
// with the same inputs yields the same snapshot.
func (l *Ledger) MarkToMarket(ts quant.TimeStamp, marks map[string]quant.PriceMicros) domain.AccountSnapshot {
	for sym, mark := range marks {
		l.marks[sym] = mark
	}

	snap := domain.AccountSnapshot{
		Ts:          ts,
		Cash:        l.cash,
		RealizedPnL: l.realized,
	}
	for _, sym := range l.symbols() {
		p := l.positions[sym]
		mark, ok := l.marks[sym]
		if !ok || p.Volume == 0 {
			continue
		}
		snap.PositionValue += p.MarketValue(mark, l.size)
		snap.UnrealizedPnL += p.UnrealizedPnL(mark, l.size)
	}
	snap.Equity = snap.Cash + snap.PositionValue
	if !l.marginRate.IsZero() {
		gross := snap.PositionValue
		if gross < 0 {
			gross = -gross
		}
		snap.MarginUsed = quant.MoneyFromDecimal(gross.Decimal().Mul(l.marginRate))
	}
	return snap
}

// symbols returns position keys in stable order.
func (l *Ledger) symbols() []string {
	out := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func absVolume(v quant.VolumeMilli) quant.VolumeMilli {
	if v < 0 {
		return -v
	}
	return v
}
