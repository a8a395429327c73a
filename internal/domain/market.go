package domain

import "quant_go/pkg/quant"

// Bar is an aggregated OHLCV record for one interval. Immutable once
// produced by the feed.
type Bar struct {
	Symbol   string            `json:"symbol"`
	Ts       quant.TimeStamp   `json:"ts"`
	Interval Interval          `json:"interval"`
	Open     quant.PriceMicros `json:"open"`
	High     quant.PriceMicros `json:"high"`
	Low      quant.PriceMicros `json:"low"`
	Close    quant.PriceMicros `json:"close"`
	Volume   quant.VolumeMilli `json:"volume"`
}

// Tick is a single best-bid/ask/last-trade update. Immutable.
type Tick struct {
	Symbol string            `json:"symbol"`
	Ts     quant.TimeStamp   `json:"ts"`
	Last   quant.PriceMicros `json:"last"`
	Bid    quant.PriceMicros `json:"bid"`
	Ask    quant.PriceMicros `json:"ask"`
	Volume quant.VolumeMilli `json:"volume"`
}
