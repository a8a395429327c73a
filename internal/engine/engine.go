// Package engine orchestrates one backtest run: it replays historical
// bars through the event bus, routes them to the matching simulator,
// the strategy host and the ledger, and assembles the run report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"quant_go/internal/domain"
	"quant_go/internal/event"
	"quant_go/internal/feed"
	"quant_go/internal/host"
	"quant_go/internal/ledger"
	"quant_go/internal/report"
	"quant_go/internal/sim"
	"quant_go/internal/stats"
	"quant_go/pkg/contract"
	"quant_go/pkg/quant"
)

// Config is one run's full parameter set.
type Config struct {
	Symbol   string
	Interval domain.Interval
	Start    time.Time
	End      time.Time

	Capital    quant.Money
	Size       int64
	PriceTick  quant.PriceMicros
	MarginRate decimal.Decimal
	StopRule   sim.StopFillRule
	Cost       sim.CostModel

	AnnualDays int
	RiskFree   float64

	// Strategy is a module reference ("builtin:<name>" or a plugin
	// path). Module, when non-nil, bypasses loading.
	Strategy string
	Module   contract.Module

	Log *slog.Logger
}

func (c *Config) normalize() {
	if c.Size <= 0 {
		c.Size = 1
	}
	if c.AnnualDays <= 0 {
		c.AnnualDays = 240
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	c.Cost.Size = c.Size
}

// Backtest is a single-use run object. Construct, call Run once,
// discard. Nothing here is goroutine-safe; the whole run executes on
// the caller's goroutine.
type Backtest struct {
	cfg Config
	bus *event.Bus

	sim     *sim.Simulator
	ledger  *ledger.Ledger
	host    *host.Host
	builder *stats.Builder

	lastBar   quant.TimeStamp
	lastClose quant.PriceMicros
	trades    []domain.Trade
	snapshots []domain.AccountSnapshot
}

// New wires a run from its config. The strategy module is loaded and
// version-checked here, before any market data is touched.
func New(cfg Config) (*Backtest, error) {
	cfg.normalize()

	module := cfg.Module
	if module == nil {
		var err error
		module, err = host.Load(cfg.Strategy)
		if err != nil {
			return nil, err
		}
	}

	b := &Backtest{
		cfg:     cfg,
		bus:     event.NewBus(),
		ledger:  ledger.New(cfg.Capital, cfg.Size, cfg.MarginRate),
		builder: stats.NewBuilder(cfg.Size),
	}
	b.sim = sim.NewSimulator(sim.Config{
		Symbol:     cfg.Symbol,
		PriceTick:  cfg.PriceTick,
		StopRule:   cfg.StopRule,
		MarginRate: cfg.MarginRate,
		Cost:       cfg.Cost,
	}, b.ledger)
	b.host = host.NewHost(module, b.bus, b.sim, b.ledger, cfg.Log)
	b.subscribe()
	return b, nil
}

// subscribe fixes the dispatch order for the whole run. For each bar:
// matching crosses the resting book first, then the strategy sees the
// bar, then the bar-close snapshot is scheduled. Fills and order
// updates queued by matching dispatch after the bar's own dispatch
// completes and before the snapshot, so the ledger is settled when the
// day is marked.
func (b *Backtest) subscribe() {
	b.bus.Subscribe(event.EvBar, func(e event.Event) {
		bar := e.(event.BarEvent).Bar
		b.lastBar = bar.Ts
		b.lastClose = bar.Close
		res := b.sim.OnBar(bar)
		b.publishResult(bar.Ts, res)
	})
	b.bus.Subscribe(event.EvBar, func(e event.Event) {
		b.host.OnBar(e.(event.BarEvent).Bar)
	})
	b.bus.Subscribe(event.EvBar, func(e event.Event) {
		b.bus.Publish(event.TimerEvent{BaseEvent: event.BaseEvent{Ts: e.GetTs()}})
	})

	b.bus.Subscribe(event.EvTick, func(e event.Event) {
		tick := e.(event.TickEvent).Tick
		b.lastBar = tick.Ts
		b.lastClose = tick.Last
		b.publishResult(tick.Ts, b.sim.OnTick(tick))
	})
	b.bus.Subscribe(event.EvTick, func(e event.Event) {
		b.host.OnTick(e.(event.TickEvent).Tick)
	})

	b.bus.Subscribe(event.EvOrderUpdate, func(e event.Event) {
		b.host.OnOrderUpdate(e.(event.OrderUpdateEvent).Order)
	})

	b.bus.Subscribe(event.EvTradeFill, func(e event.Event) {
		t := e.(event.TradeFillEvent).Trade
		b.ledger.OnTrade(t)
		b.builder.OnTrade(t)
		b.trades = append(b.trades, t)
	})
	b.bus.Subscribe(event.EvTradeFill, func(e event.Event) {
		b.host.OnTradeFill(e.(event.TradeFillEvent).Trade)
	})

	b.bus.Subscribe(event.EvSubmitOrder, func(e event.Event) {
		sub := e.(event.SubmitOrderEvent)
		upd := b.sim.Submit(sub.AssignedID, sub.Request)
		b.bus.Publish(event.OrderUpdateEvent{BaseEvent: event.BaseEvent{Ts: upd.UpdatedTs}, Order: upd})
	})
	b.bus.Subscribe(event.EvCancelOrder, func(e event.Event) {
		if upd, ok := b.sim.Cancel(e.(event.CancelOrderEvent).OrderID); ok {
			b.bus.Publish(event.OrderUpdateEvent{BaseEvent: event.BaseEvent{Ts: upd.UpdatedTs}, Order: upd})
		}
	})
	b.bus.Subscribe(event.EvCancelAll, func(e event.Event) {
		for _, upd := range b.sim.CancelAll() {
			b.bus.Publish(event.OrderUpdateEvent{BaseEvent: event.BaseEvent{Ts: upd.UpdatedTs}, Order: upd})
		}
	})

	b.bus.Subscribe(event.EvTimer, func(e event.Event) {
		snap := b.ledger.MarkToMarket(b.lastBar, map[string]quant.PriceMicros{b.cfg.Symbol: b.lastClose})
		b.snapshots = append(b.snapshots, snap)
		b.builder.OnDayClose(b.lastBar, b.lastClose)
	})
}

func (b *Backtest) publishResult(ts quant.TimeStamp, res sim.Result) {
	for _, upd := range res.Updates {
		b.bus.Publish(event.OrderUpdateEvent{BaseEvent: event.BaseEvent{Ts: ts}, Order: upd})
	}
	for _, t := range res.Trades {
		b.bus.Publish(event.TradeFillEvent{BaseEvent: event.BaseEvent{Ts: ts}, Trade: t})
	}
}

// Run replays the configured range from source and returns the run
// report. The report is always returned, including alongside an error,
// so a halted run's partial records stay inspectable. The error is a
// *domain.DataError for a corrupt feed and a *domain.StrategyFaultError
// when the module faulted mid-run; the run itself completes in the
// latter case.
func (b *Backtest) Run(ctx context.Context, source feed.BarSource) (*report.Report, error) {
	cfg := b.cfg
	rep := report.New(cfg.Symbol, string(cfg.Interval), cfg.Strategy, cfg.Start, cfg.End)

	if err := b.host.Init(); err != nil {
		return rep, &domain.LoadError{Path: cfg.Strategy, Reason: err.Error()}
	}
	if err := b.host.Start(); err != nil {
		return rep, &domain.LoadError{Path: cfg.Strategy, Reason: err.Error()}
	}

	stream, err := feed.NewReplayer(source).Open(ctx,
		cfg.Symbol, cfg.Interval, quant.FromTime(cfg.Start), quant.FromTime(cfg.End))
	if err != nil {
		return rep, fmt.Errorf("opening replay stream: %w", err)
	}
	defer stream.Close()

	cfg.Log.Info("run started",
		slog.String("run_id", rep.RunID),
		slog.String("symbol", cfg.Symbol),
		slog.String("strategy", cfg.Strategy))

	bars := 0
	for stream.Next() {
		if ctx.Err() != nil {
			break
		}
		bar := stream.Bar()
		b.bus.Publish(event.BarEvent{BaseEvent: event.BaseEvent{Ts: bar.Ts}, Bar: bar})
		bars++
	}

	runErr := stream.Err()
	if runErr != nil {
		// Corrupt feed: the whole run is void, not just the tail. Drop
		// pending dispatch and every trade and mark recorded before the
		// bad record, so a halted run reports zero trades.
		b.bus.Drain()
		b.trades = nil
		b.snapshots = nil
		b.builder = stats.NewBuilder(b.cfg.Size)
		rep.AddWarning("run halted: %v", runErr)
	}
	if err := ctx.Err(); err != nil && runErr == nil {
		runErr = err
	}

	if err := b.host.Stop(); err != nil {
		rep.AddWarning("module stop: %v", err)
	}
	if fault := b.host.Fault(); fault != nil {
		rep.AddWarning("strategy fault in %s: module detached mid-run", fault.Callback)
		if runErr == nil {
			runErr = fault
		}
	}

	b.finalize(rep)
	cfg.Log.Info("run finished",
		slog.String("run_id", rep.RunID),
		slog.Int("bars", bars),
		slog.Int("trades", len(b.trades)))
	return rep, runErr
}

func (b *Backtest) finalize(rep *report.Report) {
	daily := b.builder.Finalize()
	rep.Metrics = stats.ComputeMetrics(daily, b.cfg.Capital.Float(), b.cfg.AnnualDays, b.cfg.RiskFree)
	rep.Daily = daily
	rep.Trades = b.trades
	rep.Snapshots = b.snapshots
}
