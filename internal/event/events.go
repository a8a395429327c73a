package event

import (
	"quant_go/internal/domain"
	"quant_go/pkg/quant"
)

// Type defines the kind of event.
type Type uint16

const (
	EvBar Type = iota + 1
	EvTick
	EvOrderUpdate
	EvTradeFill
	EvTimer
	EvSubmitOrder
	EvCancelOrder
	EvCancelAll
)

// Event is the interface for all bus events.
type Event interface {
	GetTs() quant.TimeStamp
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Ts quant.TimeStamp `json:"ts"`
}

func (e BaseEvent) GetTs() quant.TimeStamp { return e.Ts }

// BarEvent carries one historical bar.
type BarEvent struct {
	BaseEvent
	Bar domain.Bar `json:"bar"`
}

func (e BarEvent) GetType() Type { return EvBar }

// TickEvent carries one historical tick.
type TickEvent struct {
	BaseEvent
	Tick domain.Tick `json:"tick"`
}

func (e TickEvent) GetType() Type { return EvTick }

// OrderUpdateEvent carries an order status change.
type OrderUpdateEvent struct {
	BaseEvent
	Order domain.Order `json:"order"`
}

func (e OrderUpdateEvent) GetType() Type { return EvOrderUpdate }

// TradeFillEvent carries one executed fill.
type TradeFillEvent struct {
	BaseEvent
	Trade domain.Trade `json:"trade"`
}

func (e TradeFillEvent) GetType() Type { return EvTradeFill }

// TimerEvent fires at bar-close boundaries for periodic work.
type TimerEvent struct {
	BaseEvent
}

func (e TimerEvent) GetType() Type { return EvTimer }

// OrderRequest is a strategy-issued submission, deferred through the
// bus so it never executes inside the module's stack frame.
type OrderRequest struct {
	Symbol    string
	Direction domain.Direction
	Offset    domain.Offset
	Type      domain.OrderType
	Price     quant.PriceMicros
	Volume    quant.VolumeMilli
}

// SubmitOrderEvent carries a deferred order submission.
type SubmitOrderEvent struct {
	BaseEvent
	Request OrderRequest `json:"request"`
	// AssignedID is the order id the host handed back to the module.
	AssignedID string `json:"assigned_id"`
}

func (e SubmitOrderEvent) GetType() Type { return EvSubmitOrder }

// CancelOrderEvent carries a deferred cancellation by order id.
type CancelOrderEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
}

func (e CancelOrderEvent) GetType() Type { return EvCancelOrder }

// CancelAllEvent carries a deferred cancellation of every resting
// order.
type CancelAllEvent struct {
	BaseEvent
}

func (e CancelAllEvent) GetType() Type { return EvCancelAll }
