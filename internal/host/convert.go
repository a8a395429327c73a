package host

import (
	"quant_go/internal/domain"
	"quant_go/pkg/contract"
)

func toContractBar(b domain.Bar) contract.Bar {
	return contract.Bar{
		Symbol: b.Symbol,
		Ts:     int64(b.Ts),
		Open:   int64(b.Open),
		High:   int64(b.High),
		Low:    int64(b.Low),
		Close:  int64(b.Close),
		Volume: int64(b.Volume),
	}
}

func toContractTick(t domain.Tick) contract.Tick {
	return contract.Tick{
		Symbol: t.Symbol,
		Ts:     int64(t.Ts),
		Last:   int64(t.Last),
		Bid:    int64(t.Bid),
		Ask:    int64(t.Ask),
		Volume: int64(t.Volume),
	}
}

func toContractOrder(o domain.Order) contract.OrderUpdate {
	return contract.OrderUpdate{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Direction: string(o.Direction),
		Offset:    string(o.Offset),
		Type:      string(o.Type),
		Status:    string(o.Status),
		Price:     int64(o.Price),
		Volume:    int64(o.Volume),
		Traded:    int64(o.Traded),
		Ts:        int64(o.UpdatedTs),
	}
}

func toContractTrade(t domain.Trade) contract.TradeFill {
	return contract.TradeFill{
		TradeID:    t.ID,
		OrderID:    t.OrderID,
		Symbol:     t.Symbol,
		Direction:  string(t.Direction),
		Offset:     string(t.Offset),
		Price:      int64(t.Price),
		Volume:     int64(t.Volume),
		Ts:         int64(t.Ts),
		Commission: int64(t.Commission),
		Slippage:   int64(t.Slippage),
	}
}
