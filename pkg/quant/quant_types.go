package quant

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PriceMicros represents price multiplied by 1,000,000 (10^6).
// E.g., 3512.25 = 3,512,250,000 PriceMicros.
type PriceMicros int64

// VolumeMilli represents contract volume multiplied by 1,000 (10^3).
// E.g., 1.0 contract = 1,000 VolumeMilli.
type VolumeMilli int64

// Money represents an amount of quote currency in micros (10^6).
type Money int64

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

const (
	PriceScale  = 1000000
	VolumeScale = 1000
	MoneyScale  = 1000000
)

// ToPriceMicros converts a float64 (from external data) to PriceMicros.
// Only used at the boundary. Internal logic uses PriceMicros directly.
func ToPriceMicros(f float64) PriceMicros {
	return PriceMicros(math.Round(f * PriceScale))
}

// ToVolumeMilli converts a float64 to VolumeMilli.
func ToVolumeMilli(f float64) VolumeMilli {
	return VolumeMilli(math.Round(f * VolumeScale))
}

// ToMoney converts a float64 quote amount to Money micros.
func ToMoney(f float64) Money {
	return Money(math.Round(f * MoneyScale))
}

func (p PriceMicros) Float() float64 { return float64(p) / PriceScale }
func (v VolumeMilli) Float() float64 { return float64(v) / VolumeScale }
func (m Money) Float() float64       { return float64(m) / MoneyScale }

func (p PriceMicros) String() string {
	return fmt.Sprintf("%.6f", float64(p)/PriceScale)
}

func (v VolumeMilli) String() string {
	return fmt.Sprintf("%.3f", float64(v)/VolumeScale)
}

func (m Money) String() string {
	return fmt.Sprintf("%.6f", float64(m)/MoneyScale)
}

// Decimal views, used where cost arithmetic must be exact.
func (p PriceMicros) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -6)
}

func (v VolumeMilli) Decimal() decimal.Decimal {
	return decimal.New(int64(v), -3)
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -6)
}

// MoneyFromDecimal rounds a decimal quote amount to Money micros.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(6).Round(0).IntPart())
}

// ParsePrice parses a numeric string into PriceMicros without going
// through float64. Fractions beyond six digits are truncated.
func ParsePrice(s string) (PriceMicros, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return PriceMicros(d.Shift(6).Truncate(0).IntPart()), nil
}

// ParseVolume parses a numeric string into VolumeMilli.
func ParseVolume(s string) (VolumeMilli, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return VolumeMilli(d.Shift(3).Truncate(0).IntPart()), nil
}

// FromTime converts a time.Time to a TimeStamp.
func FromTime(t time.Time) TimeStamp {
	return TimeStamp(t.UnixMicro())
}

// Time converts a TimeStamp back to a UTC time.Time.
func (ts TimeStamp) Time() time.Time {
	return time.UnixMicro(int64(ts)).UTC()
}

// Date truncates a TimeStamp to midnight UTC of its calendar day.
func (ts TimeStamp) Date() TimeStamp {
	const day = int64(24 * time.Hour / time.Microsecond)
	v := int64(ts)
	if v < 0 {
		v -= day - 1
	}
	return TimeStamp((v / day) * day)
}

// RoundToTick rounds a price to the nearest multiple of the price tick.
// A zero tick leaves the price unchanged.
func RoundToTick(p PriceMicros, tick PriceMicros) PriceMicros {
	if tick <= 0 {
		return p
	}
	half := int64(tick) / 2
	v := int64(p)
	if v >= 0 {
		return PriceMicros(((v + half) / int64(tick)) * int64(tick))
	}
	return PriceMicros(((v - half) / int64(tick)) * int64(tick))
}
