// Package contract defines the boundary between the backtest host and
// strategy modules. It is deliberately self-contained: modules compiled
// out-of-tree import only this package, so the host's internals can
// change without rebuilding every strategy.
package contract

// Version is the contract revision this package describes. The host
// refuses any module declaring a different revision before feeding it
// data. Bump it whenever a type or method in this package changes
// shape or meaning.
const Version = 1

// Exported symbol names a compiled plugin must provide.
const (
	SymbolVersion = "Version" // int
	SymbolNew     = "New"     // func() contract.Module
)

// Direction values.
const (
	Long  = "LONG"
	Short = "SHORT"
)

// Offset values.
const (
	Open  = "OPEN"
	Close = "CLOSE"
)

// Order type values.
const (
	Limit  = "LIMIT"
	Market = "MARKET"
	Stop   = "STOP"
)

// Order status values.
const (
	Submitted       = "SUBMITTED"
	NotTraded       = "NOT_TRADED"
	PartiallyFilled = "PARTIALLY_FILLED"
	Filled          = "FILLED"
	Cancelled       = "CANCELLED"
	Rejected        = "REJECTED"
)

// Prices are fixed-point with 6 decimal places, volumes with 3, money
// amounts with 6. Timestamps are unix microseconds UTC.
const (
	PriceScale  = 1_000_000
	VolumeScale = 1_000
	MoneyScale  = 1_000_000
)

// Bar is one OHLCV record delivered to OnBar.
type Bar struct {
	Symbol string
	Ts     int64
	Open   int64
	High   int64
	Low    int64
	Close  int64
	Volume int64
}

// Tick is one quote record delivered to OnTick.
type Tick struct {
	Symbol string
	Ts     int64
	Last   int64
	Bid    int64
	Ask    int64
	Volume int64
}

// OrderUpdate is one order lifecycle transition delivered to
// OnOrderUpdate.
type OrderUpdate struct {
	OrderID   string
	Symbol    string
	Direction string
	Offset    string
	Type      string
	Status    string
	Price     int64
	Volume    int64
	Traded    int64
	Ts        int64
}

// TradeFill is one executed fill delivered to OnTradeFill.
type TradeFill struct {
	TradeID    string
	OrderID    string
	Symbol     string
	Direction  string
	Offset     string
	Price      int64
	Volume     int64
	Ts         int64
	Commission int64
	Slippage   int64
}

// OrderSpec is a module's order submission.
type OrderSpec struct {
	Symbol    string
	Direction string
	Offset    string
	Type      string
	Price     int64
	Volume    int64
}

// Context is the host surface a module calls back into. Calls are
// valid only inside a callback, on the callback's goroutine. SendOrder
// returns the order id immediately; the submission itself is deferred
// until the current callback returns.
type Context interface {
	SendOrder(spec OrderSpec) string
	CancelOrder(orderID string)
	CancelAll()
	Position(symbol string) int64
	Log(msg string, args ...any)
}

// Module is the strategy interface. Lifecycle: Init, Start, then data
// callbacks in event order, then Stop. A panic in any callback
// permanently detaches the module from the run.
type Module interface {
	Init(ctx Context) error
	Start() error
	OnBar(b Bar)
	OnTick(tk Tick)
	OnOrderUpdate(u OrderUpdate)
	OnTradeFill(f TradeFill)
	Stop() error
}

// Factory is the constructor a plugin exports under SymbolNew.
type Factory func() Module
