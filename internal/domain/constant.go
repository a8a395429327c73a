package domain

import "time"

// Direction of an order or trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for Long and -1 for Short.
func (d Direction) Sign() int64 {
	if d == Short {
		return -1
	}
	return 1
}

// Offset tells whether an order opens or closes a position.
type Offset string

const (
	OffsetNone  Offset = ""
	OffsetOpen  Offset = "OPEN"
	OffsetClose Offset = "CLOSE"
)

// OrderType selects the matching rule applied to an order.
type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
	Stop   OrderType = "STOP"
)

// Status of an order. Transitions are monotonic; Filled, Cancelled and
// Rejected are terminal.
type Status string

const (
	Submitted       Status = "SUBMITTED"
	NotTraded       Status = "NOT_TRADED"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Filled          Status = "FILLED"
	Cancelled       Status = "CANCELLED"
	Rejected        Status = "REJECTED"
)

// IsActive reports whether an order in this status can still trade.
func (s Status) IsActive() bool {
	switch s {
	case Submitted, NotTraded, PartiallyFilled:
		return true
	}
	return false
}

// Interval of a bar.
type Interval string

const (
	IntervalMinute Interval = "1m"
	IntervalHour   Interval = "1h"
	IntervalDaily  Interval = "d"
)

// Duration returns the wall-clock span of one bar of this interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalMinute:
		return time.Minute
	case IntervalHour:
		return time.Hour
	case IntervalDaily:
		return 24 * time.Hour
	}
	return 0
}

// ParseInterval validates an interval string from the CLI or config.
func ParseInterval(s string) (Interval, bool) {
	switch Interval(s) {
	case IntervalMinute, IntervalHour, IntervalDaily:
		return Interval(s), true
	}
	return "", false
}
