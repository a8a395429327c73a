// Package strategy holds the builtin strategy modules compiled into
// the binary. They implement the same contract as out-of-tree plugins
// and are addressed as "builtin:<name>".
package strategy

import (
	"fmt"

	"quant_go/internal/host"
	"quant_go/pkg/contract"
)

func init() {
	host.RegisterBuiltin("dblma", func() contract.Module {
		return NewDoubleMA(DefaultDoubleMAConfig())
	})
}

// DoubleMAConfig tunes the crossover module.
type DoubleMAConfig struct {
	FastWindow int
	SlowWindow int
	Volume     int64 // volume millis per entry
	// PriceOffset widens the limit past the close so the next bar
	// crosses it like a marketable order.
	PriceOffset int64 // price micros
}

// DefaultDoubleMAConfig returns the stock parameters.
func DefaultDoubleMAConfig() DoubleMAConfig {
	return DoubleMAConfig{
		FastWindow:  5,
		SlowWindow:  20,
		Volume:      1000,
		PriceOffset: 5_000_000,
	}
}

// DoubleMA trades fast/slow moving-average crossovers: net long after
// a golden cross, net short after a death cross. Position changes go
// out as marketable limit orders on the crossing bar.
type DoubleMA struct {
	cfg  DoubleMAConfig
	ctx  contract.Context
	fast *smaRing
	slow *smaRing

	// previous sign of fast-slow; zero until both windows fill
	prevSign int
}

// NewDoubleMA validates the configuration and builds the module.
func NewDoubleMA(cfg DoubleMAConfig) *DoubleMA {
	return &DoubleMA{
		cfg:  cfg,
		fast: newSMARing(cfg.FastWindow),
		slow: newSMARing(cfg.SlowWindow),
	}
}

func (m *DoubleMA) Init(ctx contract.Context) error {
	if m.cfg.FastWindow <= 0 || m.cfg.SlowWindow <= m.cfg.FastWindow {
		return fmt.Errorf("invalid windows fast=%d slow=%d", m.cfg.FastWindow, m.cfg.SlowWindow)
	}
	if m.cfg.Volume <= 0 {
		return fmt.Errorf("invalid volume %d", m.cfg.Volume)
	}
	m.ctx = ctx
	return nil
}

func (m *DoubleMA) Start() error {
	m.ctx.Log("dblma started",
		"fast", m.cfg.FastWindow, "slow", m.cfg.SlowWindow)
	return nil
}

func (m *DoubleMA) Stop() error { return nil }

func (m *DoubleMA) OnBar(b contract.Bar) {
	m.fast.push(b.Close)
	m.slow.push(b.Close)
	if !m.slow.full() {
		return
	}

	sign := cmpSign(m.fast.avg(), m.slow.avg())
	defer func() { m.prevSign = sign }()
	if sign == 0 || m.prevSign == 0 || sign == m.prevSign {
		return
	}

	pos := m.ctx.Position(b.Symbol)
	if sign > 0 {
		// Golden cross: cover any short, then open long.
		m.enter(b, contract.Long, pos)
	} else {
		m.enter(b, contract.Short, pos)
	}
}

// enter sends the orders moving the position from pos to the target
// side in one bar: a closing order for the opposite exposure, then the
// opening order.
func (m *DoubleMA) enter(b contract.Bar, dir string, pos int64) {
	price := b.Close + m.cfg.PriceOffset
	closeVol := -pos // short exposure a long entry must cover
	if dir == contract.Short {
		price = b.Close - m.cfg.PriceOffset
		closeVol = pos // long exposure a short entry must flatten
	}
	if closeVol > 0 {
		m.ctx.SendOrder(contract.OrderSpec{
			Symbol: b.Symbol, Direction: dir, Offset: contract.Close,
			Type: contract.Limit, Price: price, Volume: closeVol,
		})
	}
	m.ctx.SendOrder(contract.OrderSpec{
		Symbol: b.Symbol, Direction: dir, Offset: contract.Open,
		Type: contract.Limit, Price: price, Volume: m.cfg.Volume,
	})
}

func (m *DoubleMA) OnTick(contract.Tick) {}

func (m *DoubleMA) OnOrderUpdate(u contract.OrderUpdate) {
	if u.Status == contract.Rejected {
		m.ctx.Log("order rejected", "order_id", u.OrderID)
	}
}

func (m *DoubleMA) OnTradeFill(f contract.TradeFill) {}

func cmpSign(a, b int64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

// smaRing is a fixed-window running mean over int64 samples.
type smaRing struct {
	buf []int64
	sum int64
	n   int
	idx int
}

func newSMARing(window int) *smaRing {
	if window < 1 {
		window = 1
	}
	return &smaRing{buf: make([]int64, window)}
}

func (r *smaRing) push(v int64) {
	if r.n == len(r.buf) {
		r.sum -= r.buf[r.idx]
	} else {
		r.n++
	}
	r.buf[r.idx] = v
	r.sum += v
	r.idx = (r.idx + 1) % len(r.buf)
}

func (r *smaRing) full() bool { return r.n == len(r.buf) }

func (r *smaRing) avg() int64 { return r.sum / int64(r.n) }
