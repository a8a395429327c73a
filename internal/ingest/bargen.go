// Package ingest collects live ticks over websocket, aggregates them
// into bars and persists them, so the backtest side always reads from
// the same bar store regardless of where the data came from.
package ingest

import (
	"time"

	"quant_go/internal/domain"
	"quant_go/pkg/quant"
)

// BarGenerator folds a tick stream into bars of one interval. A bar is
// emitted when the first tick of the next bucket arrives, so emitted
// bars are final.
type BarGenerator struct {
	interval domain.Interval
	onBar    func(domain.Bar)
	cur      *domain.Bar
}

// NewBarGenerator creates a generator emitting finished bars to onBar.
func NewBarGenerator(interval domain.Interval, onBar func(domain.Bar)) *BarGenerator {
	return &BarGenerator{interval: interval, onBar: onBar}
}

func (g *BarGenerator) bucket(ts quant.TimeStamp) quant.TimeStamp {
	span := int64(g.interval.Duration() / time.Microsecond)
	if span <= 0 {
		return ts
	}
	return quant.TimeStamp(int64(ts) / span * span)
}

// OnTick folds one tick into the current bar, emitting the previous
// bar when the tick opens a new bucket. Ticks must arrive in time
// order; late ticks are folded into the current bar rather than
// rewriting history.
func (g *BarGenerator) OnTick(t domain.Tick) {
	b := g.bucket(t.Ts)
	if g.cur != nil && b > g.cur.Ts {
		g.onBar(*g.cur)
		g.cur = nil
	}

	if g.cur == nil {
		g.cur = &domain.Bar{
			Symbol:   t.Symbol,
			Interval: g.interval,
			Ts:       b,
			Open:     t.Last,
			High:     t.Last,
			Low:      t.Last,
			Close:    t.Last,
			Volume:   t.Volume,
		}
		return
	}

	if t.Last > g.cur.High {
		g.cur.High = t.Last
	}
	if t.Last < g.cur.Low {
		g.cur.Low = t.Last
	}
	g.cur.Close = t.Last
	g.cur.Volume += t.Volume
}

// Flush emits the in-progress bar, if any. Called on shutdown; the
// emitted bar may still have been partial.
func (g *BarGenerator) Flush() {
	if g.cur != nil {
		g.onBar(*g.cur)
		g.cur = nil
	}
}
