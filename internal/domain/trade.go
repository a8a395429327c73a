package domain

import "quant_go/pkg/quant"

// Trade is an executed fill against exactly one order. The sum of fill
// volumes over an order's trades never exceeds the order volume, with
// equality exactly when the order is Filled.
type Trade struct {
	ID         string            `json:"id"`
	OrderID    string            `json:"order_id"`
	Symbol     string            `json:"symbol"`
	Direction  Direction         `json:"direction"`
	Offset     Offset            `json:"offset"`
	Price      quant.PriceMicros `json:"price"`
	Volume     quant.VolumeMilli `json:"volume"`
	Ts         quant.TimeStamp   `json:"ts"`
	Commission quant.Money       `json:"commission"`
	Slippage   quant.Money       `json:"slippage"`
}
