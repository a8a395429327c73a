package domain

import "quant_go/pkg/quant"

// Order is a working limit or market order. Its lifecycle is owned
// exclusively by the matching simulator.
type Order struct {
	ID        string            `json:"id"`
	Symbol    string            `json:"symbol"`
	Direction Direction         `json:"direction"`
	Offset    Offset            `json:"offset"`
	Type      OrderType         `json:"type"`
	Price     quant.PriceMicros `json:"price"`
	Volume    quant.VolumeMilli `json:"volume"`
	Traded    quant.VolumeMilli `json:"traded"`
	Status    Status            `json:"status"`
	CreatedTs quant.TimeStamp   `json:"created_ts"`
	UpdatedTs quant.TimeStamp   `json:"updated_ts"`
}

// IsActive reports whether the order can still produce fills.
func (o *Order) IsActive() bool {
	return o.Status.IsActive()
}

// Remaining returns the unfilled volume.
func (o *Order) Remaining() quant.VolumeMilli {
	return o.Volume - o.Traded
}
