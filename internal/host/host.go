// Package host runs one strategy module inside a backtest, isolating
// its faults from the run and deferring its order actions through the
// event bus.
package host

import (
	"fmt"
	"log/slog"

	"quant_go/internal/domain"
	"quant_go/internal/event"
	"quant_go/pkg/contract"
	"quant_go/pkg/quant"
)

// IDSource hands out order ids ahead of submission, so a module gets
// its id synchronously while the submission travels through the bus.
type IDSource interface {
	NextOrderID() string
}

// PositionView exposes read-only position state to module callbacks.
type PositionView interface {
	Position(symbol string) domain.Position
}

// Host wraps one strategy module. Every callback runs under a recover
// guard: a panic marks the module faulted and permanently detaches it,
// while the run itself keeps executing. Not goroutine-safe; it lives
// on the replay goroutine.
type Host struct {
	module    contract.Module
	bus       *event.Bus
	ids       IDSource
	positions PositionView
	log       *slog.Logger

	now      quant.TimeStamp
	callback string
	fault    *domain.StrategyFaultError
}

// NewHost wires a loaded module to the run's bus and collaborators.
func NewHost(module contract.Module, bus *event.Bus, ids IDSource, positions PositionView, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{module: module, bus: bus, ids: ids, positions: positions, log: log}
}

// Fault returns the fault that detached the module, or nil.
func (h *Host) Fault() *domain.StrategyFaultError { return h.fault }

// Faulted reports whether the module has been detached.
func (h *Host) Faulted() bool { return h.fault != nil }

// Init runs the module's Init with the host as its context.
func (h *Host) Init() error {
	var err error
	h.guard("Init", func() { err = h.module.Init(h) })
	if h.fault != nil {
		return h.fault
	}
	if err != nil {
		return fmt.Errorf("module init: %w", err)
	}
	return nil
}

// Start runs the module's Start hook.
func (h *Host) Start() error {
	var err error
	h.guard("Start", func() { err = h.module.Start() })
	if h.fault != nil {
		return h.fault
	}
	if err != nil {
		return fmt.Errorf("module start: %w", err)
	}
	return nil
}

// Stop runs the module's Stop hook. Called even after a fault so the
// module can release resources. The first fault recorded during the
// run wins: a panic inside Stop never erases or replaces it.
func (h *Host) Stop() error {
	var err error
	prior := h.fault
	h.fault = nil
	h.guard("Stop", func() { err = h.module.Stop() })
	if prior != nil {
		h.fault = prior
		return nil
	}
	if h.fault != nil {
		return nil
	}
	return err
}

// OnBar forwards a bar to the module.
func (h *Host) OnBar(b domain.Bar) {
	h.now = b.Ts
	h.guard("OnBar", func() { h.module.OnBar(toContractBar(b)) })
}

// OnTick forwards a tick to the module.
func (h *Host) OnTick(t domain.Tick) {
	h.now = t.Ts
	h.guard("OnTick", func() { h.module.OnTick(toContractTick(t)) })
}

// OnOrderUpdate forwards an order transition to the module.
func (h *Host) OnOrderUpdate(o domain.Order) {
	h.guard("OnOrderUpdate", func() { h.module.OnOrderUpdate(toContractOrder(o)) })
}

// OnTradeFill forwards a fill to the module.
func (h *Host) OnTradeFill(t domain.Trade) {
	h.guard("OnTradeFill", func() { h.module.OnTradeFill(toContractTrade(t)) })
}

// guard runs one callback under fault isolation. After the first
// fault the module receives nothing further.
func (h *Host) guard(name string, fn func()) {
	if h.fault != nil {
		return
	}
	h.callback = name
	defer func() {
		h.callback = ""
		if r := recover(); r != nil {
			h.fault = &domain.StrategyFaultError{Callback: name, Panic: r}
			h.log.Error("strategy module faulted, detaching",
				slog.String("callback", name),
				slog.Any("panic", r))
		}
	}()
	fn()
}

// SendOrder implements contract.Context. The id is handed back
// immediately; the submission dispatches after the current callback
// returns, never inside the module's stack frame.
func (h *Host) SendOrder(spec contract.OrderSpec) string {
	id := h.ids.NextOrderID()
	h.bus.Publish(event.SubmitOrderEvent{
		BaseEvent: event.BaseEvent{Ts: h.now},
		Request: event.OrderRequest{
			Symbol:    spec.Symbol,
			Direction: domain.Direction(spec.Direction),
			Offset:    domain.Offset(spec.Offset),
			Type:      domain.OrderType(spec.Type),
			Price:     quant.PriceMicros(spec.Price),
			Volume:    quant.VolumeMilli(spec.Volume),
		},
		AssignedID: id,
	})
	return id
}

// CancelOrder implements contract.Context.
func (h *Host) CancelOrder(orderID string) {
	h.bus.Publish(event.CancelOrderEvent{
		BaseEvent: event.BaseEvent{Ts: h.now},
		OrderID:   orderID,
	})
}

// CancelAll implements contract.Context.
func (h *Host) CancelAll() {
	h.bus.Publish(event.CancelAllEvent{BaseEvent: event.BaseEvent{Ts: h.now}})
}

// Position implements contract.Context.
func (h *Host) Position(symbol string) int64 {
	return int64(h.positions.Position(symbol).Volume)
}

// Log implements contract.Context, tagging module output so it is
// distinguishable from engine logging.
func (h *Host) Log(msg string, args ...any) {
	h.log.With(slog.String("source", "strategy")).Info(msg, args...)
}
