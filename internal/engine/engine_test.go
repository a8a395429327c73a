package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant_go/internal/domain"
	"quant_go/internal/sim"
	"quant_go/internal/strategy"
	"quant_go/pkg/contract"
	"quant_go/pkg/quant"
)

// memorySource serves bars from a slice, honoring the paging contract.
type memorySource struct {
	bars []domain.Bar
}

func (s *memorySource) LoadBarsPage(_ context.Context, symbol string, interval domain.Interval, from, end quant.TimeStamp, limit int) ([]domain.Bar, error) {
	var page []domain.Bar
	for _, b := range s.bars {
		if b.Ts >= from && b.Ts <= end {
			page = append(page, b)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

// scriptedModule drives scenario tests with an OnBar hook.
type scriptedModule struct {
	ctx     contract.Context
	onBar   func(ctx contract.Context, n int, b contract.Bar)
	n       int
	updates []contract.OrderUpdate
}

func (m *scriptedModule) Init(ctx contract.Context) error { m.ctx = ctx; return nil }
func (m *scriptedModule) Start() error                    { return nil }
func (m *scriptedModule) Stop() error                     { return nil }
func (m *scriptedModule) OnBar(b contract.Bar) {
	m.n++
	if m.onBar != nil {
		m.onBar(m.ctx, m.n, b)
	}
}
func (m *scriptedModule) OnTick(contract.Tick) {}
func (m *scriptedModule) OnOrderUpdate(u contract.OrderUpdate) {
	m.updates = append(m.updates, u)
}
func (m *scriptedModule) OnTradeFill(contract.TradeFill) {}

var runStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// zigzagCloses produces a deterministic trending path with regular
// reversals, enough to force several MA crossovers.
func zigzagCloses(n int) []int64 {
	closes := make([]int64, n)
	price := int64(100_000_000)
	for i := range closes {
		if i%40 < 20 {
			price += 2_000_000
		} else {
			price -= 2_000_000
		}
		closes[i] = price
	}
	return closes
}

func dailyBars(closes []int64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i := range closes {
		open := closes[i]
		if i > 0 {
			open = closes[i-1]
		}
		hi := max(open, closes[i]) + 1_000_000
		lo := min(open, closes[i]) - 1_000_000
		bars[i] = domain.Bar{
			Symbol:   "IF888.LOCAL",
			Interval: domain.IntervalDaily,
			Ts:       quant.FromTime(runStart.AddDate(0, 0, i).Add(15 * time.Hour)),
			Open:     quant.PriceMicros(open),
			High:     quant.PriceMicros(hi),
			Low:      quant.PriceMicros(lo),
			Close:    quant.PriceMicros(closes[i]),
			Volume:   10_000,
		}
	}
	return bars
}

func baseConfig(module contract.Module, nDays int) Config {
	return Config{
		Symbol:   "IF888.LOCAL",
		Interval: domain.IntervalDaily,
		Start:    runStart,
		End:      runStart.AddDate(0, 0, nDays),
		Capital:  10_000_000_000, // 10,000.0
		Size:     1,
		Strategy: "test:scripted",
		Module:   module,
	}
}

// refAccount mirrors the run with independent float arithmetic: fills
// happen on the bar after submission, limit orders at min/max of limit
// and open, commission as a fraction of turnover.
type refAccount struct {
	cash float64
	pos  int64 // volume millis
	rate float64
}

type refOrder struct {
	long  bool
	price int64 // limit, micros
	vol   int64 // millis
}

func (a *refAccount) fill(o refOrder, bar domain.Bar) {
	price := int64(bar.Open)
	if o.long {
		if int64(bar.Low) > o.price {
			panic("reference order did not cross")
		}
		price = min(o.price, price)
	} else {
		if int64(bar.High) < o.price {
			panic("reference order did not cross")
		}
		price = max(o.price, price)
	}
	notional := float64(price) / 1e6 * float64(o.vol) / 1e3
	commission := notional * a.rate
	if o.long {
		a.cash -= notional + commission
		a.pos += o.vol
	} else {
		a.cash += notional - commission
		a.pos -= o.vol
	}
}

// TestRun_CrossoverMatchesReference replays 100 synthetic daily bars
// through the full stack with the crossover strategy and checks the
// final equity against the independently computed reference.
func TestRun_CrossoverMatchesReference(t *testing.T) {
	const (
		fast, slow = 3, 7
		volume     = 1000
		offset     = 5_000_000
		rate       = 0.0001
	)
	closes := zigzagCloses(100)
	bars := dailyBars(closes)

	cfg := baseConfig(strategy.NewDoubleMA(strategy.DoubleMAConfig{
		FastWindow: fast, SlowWindow: slow, Volume: volume, PriceOffset: offset,
	}), len(bars))
	cfg.Strategy = "builtin:dblma"
	cfg.Cost = sim.CostModel{Mode: sim.CommissionRate, Rate: decimal.RequireFromString("0.0001")}

	bt, err := New(cfg)
	require.NoError(t, err)
	rep, err := bt.Run(context.Background(), &memorySource{bars: bars})
	require.NoError(t, err)
	require.NotEmpty(t, rep.Trades, "the zigzag path must produce crossovers")

	// Reference: same crossover logic in integer micros, same pending
	// order model, float accounting.
	acct := &refAccount{cash: 10_000, rate: rate}
	var fastSum, slowSum int64
	var fastBuf, slowBuf []int64
	prevSign := 0
	var pending []refOrder

	push := func(buf []int64, sum *int64, w int, v int64) []int64 {
		buf = append(buf, v)
		*sum += v
		if len(buf) > w {
			*sum -= buf[0]
			buf = buf[1:]
		}
		return buf
	}
	for _, bar := range bars {
		posBefore := acct.pos
		for _, o := range pending {
			acct.fill(o, bar)
		}
		pending = pending[:0]

		c := int64(bar.Close)
		fastBuf = push(fastBuf, &fastSum, fast, c)
		slowBuf = push(slowBuf, &slowSum, slow, c)
		if len(slowBuf) < slow {
			continue
		}
		sign := 0
		if fastSum/int64(fast) > slowSum/int64(slow) {
			sign = 1
		} else if fastSum/int64(fast) < slowSum/int64(slow) {
			sign = -1
		}
		if sign != 0 && prevSign != 0 && sign != prevSign {
			long := sign > 0
			price := c + offset
			closeVol := -posBefore
			if !long {
				price = c - offset
				closeVol = posBefore
			}
			if closeVol > 0 {
				pending = append(pending, refOrder{long: long, price: price, vol: closeVol})
			}
			pending = append(pending, refOrder{long: long, price: price, vol: volume})
		}
		if sign != 0 {
			prevSign = sign
		}
	}
	refEquity := acct.cash + float64(acct.pos)/1e3*float64(closes[len(closes)-1])/1e6

	require.NotEmpty(t, rep.Snapshots)
	gotEquity := rep.Snapshots[len(rep.Snapshots)-1].Equity.Float()
	assert.InEpsilon(t, refEquity, gotEquity, 1e-6, "ledger equity diverges from reference")
	assert.InEpsilon(t, refEquity, rep.Metrics.EndBalance, 1e-6, "statistics balance diverges from reference")
	assert.Equal(t, len(rep.Trades), rep.Metrics.TotalTradeCount)
}

// TestRun_StopOrderFillsOnFirstQualifyingBar submits one buy stop and
// checks it fills exactly once, on the first bar whose high reaches
// the trigger.
func TestRun_StopOrderFillsOnFirstQualifyingBar(t *testing.T) {
	closes := []int64{100_000_000, 101_000_000, 103_500_000, 105_000_000, 106_000_000}
	bars := dailyBars(closes)

	mod := &scriptedModule{}
	mod.onBar = func(ctx contract.Context, n int, b contract.Bar) {
		if n == 1 {
			ctx.SendOrder(contract.OrderSpec{
				Symbol: "IF888.LOCAL", Direction: contract.Long, Offset: contract.Open,
				Type: contract.Stop, Price: 103_000_000, Volume: 1000,
			})
		}
	}

	bt, err := New(baseConfig(mod, len(bars)))
	require.NoError(t, err)
	rep, err := bt.Run(context.Background(), &memorySource{bars: bars})
	require.NoError(t, err)

	// Bar 3 (high 104.5) is the first to reach the 103 trigger.
	require.Len(t, rep.Trades, 1)
	tr := rep.Trades[0]
	assert.Equal(t, bars[2].Ts, tr.Ts)
	assert.Equal(t, quant.PriceMicros(103_000_000), tr.Price)
	assert.Equal(t, quant.VolumeMilli(1000), tr.Volume)
}

// TestRun_CancelledOrderNeverFills cancels a resting limit before the
// market reaches it; later bars that cross the level must not fill it.
func TestRun_CancelledOrderNeverFills(t *testing.T) {
	closes := []int64{100_000_000, 99_000_000, 95_000_000, 92_000_000}
	bars := dailyBars(closes)

	mod := &scriptedModule{}
	var orderID string
	mod.onBar = func(ctx contract.Context, n int, b contract.Bar) {
		switch n {
		case 1:
			// Resting bid far below the market.
			orderID = ctx.SendOrder(contract.OrderSpec{
				Symbol: "IF888.LOCAL", Direction: contract.Long, Offset: contract.Open,
				Type: contract.Limit, Price: 94_000_000, Volume: 1000,
			})
		case 2:
			ctx.CancelOrder(orderID)
		}
	}

	bt, err := New(baseConfig(mod, len(bars)))
	require.NoError(t, err)
	rep, err := bt.Run(context.Background(), &memorySource{bars: bars})
	require.NoError(t, err)

	assert.Empty(t, rep.Trades)
	last := mod.updates[len(mod.updates)-1]
	assert.Equal(t, contract.Cancelled, last.Status)
	assert.Equal(t, orderID, last.OrderID)
}

// TestRun_OutOfOrderFeedHaltsRun corrupts the feed ordering and checks
// the run halts with a data error before any trading happens.
func TestRun_OutOfOrderFeedHaltsRun(t *testing.T) {
	bars := dailyBars(zigzagCloses(30))
	bars[5].Ts = bars[2].Ts

	cfg := baseConfig(strategy.NewDoubleMA(strategy.DoubleMAConfig{
		FastWindow: 2, SlowWindow: 3, Volume: 1000, PriceOffset: 5_000_000,
	}), len(bars))
	bt, err := New(cfg)
	require.NoError(t, err)

	rep, err := bt.Run(context.Background(), &memorySource{bars: bars})
	var dataErr *domain.DataError
	require.ErrorAs(t, err, &dataErr)
	assert.Empty(t, rep.Trades)
	assert.NotEmpty(t, rep.Warnings)
}

// TestRun_DataErrorVoidsEarlierFills corrupts the feed after a fill
// already happened; the halted run must still report zero trades.
func TestRun_DataErrorVoidsEarlierFills(t *testing.T) {
	bars := dailyBars(zigzagCloses(10))
	bars[6].Ts = bars[3].Ts

	mod := &scriptedModule{}
	mod.onBar = func(ctx contract.Context, n int, b contract.Bar) {
		if n == 1 {
			ctx.SendOrder(contract.OrderSpec{
				Symbol: "IF888.LOCAL", Direction: contract.Long, Offset: contract.Open,
				Type: contract.Market, Volume: 1000,
			})
		}
	}

	bt, err := New(baseConfig(mod, len(bars)))
	require.NoError(t, err)
	rep, err := bt.Run(context.Background(), &memorySource{bars: bars})

	var dataErr *domain.DataError
	require.ErrorAs(t, err, &dataErr)
	// The market order filled on bar 2, well before the corruption, but
	// a voided run keeps none of it.
	assert.Empty(t, rep.Trades)
	assert.Empty(t, rep.Snapshots)
	assert.Zero(t, rep.Metrics.TotalTradeCount)
	assert.NotEmpty(t, rep.Warnings)
}

// TestRun_StrategyFaultDoesNotHaltRun panics the module mid-run and
// checks the run still processes every bar and reports the fault.
func TestRun_StrategyFaultDoesNotHaltRun(t *testing.T) {
	bars := dailyBars(zigzagCloses(10))

	mod := &scriptedModule{}
	mod.onBar = func(ctx contract.Context, n int, b contract.Bar) {
		if n == 3 {
			panic("scripted fault")
		}
	}

	bt, err := New(baseConfig(mod, len(bars)))
	require.NoError(t, err)
	rep, err := bt.Run(context.Background(), &memorySource{bars: bars})

	var fault *domain.StrategyFaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "OnBar", fault.Callback)
	// Every bar was still marked: the run outlived the module.
	assert.Len(t, rep.Snapshots, len(bars))
	assert.Equal(t, 3, mod.n)
}

func TestNew_UnknownStrategyFailsBeforeData(t *testing.T) {
	cfg := baseConfig(nil, 1)
	cfg.Strategy = "builtin:does-not-exist"
	cfg.Module = nil
	_, err := New(cfg)
	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
}
