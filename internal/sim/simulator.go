package sim

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"quant_go/internal/domain"
	"quant_go/internal/event"
	"quant_go/pkg/quant"
)

// CashView lets the simulator see the funding available when checking
// margin for new orders. A nil view disables the check.
type CashView interface {
	AvailableCash() quant.Money
}

// Config carries the per-run execution parameters of one instrument.
type Config struct {
	Symbol     string
	PriceTick  quant.PriceMicros
	StopRule   StopFillRule
	MarginRate decimal.Decimal // fraction of notional reserved; zero disables the check
	Cost       CostModel
}

// Result is the outcome of feeding one event to the simulator. Updates
// and Trades are emitted in deterministic order: pending acks first,
// then one Filled update per fill, trades in the same fill order.
type Result struct {
	Updates []domain.Order
	Trades  []domain.Trade
}

// Simulator matches resting orders against historical bars. It is a
// pure state machine: given the same submissions and the same bars it
// produces byte-identical results. All order lifecycle transitions
// originate here and nowhere else.
type Simulator struct {
	cfg  Config
	cash CashView
	book *orderBook

	orders    map[string]*domain.Order
	submitted []string // ids in submission order, for deterministic sweeps
	pending   []*domain.Order

	orderSeq int64
	tradeSeq int64
	now      quant.TimeStamp
}

// NewSimulator creates a simulator with an empty book. cash may be nil
// when margin checking is not wanted.
func NewSimulator(cfg Config, cash CashView) *Simulator {
	if cfg.StopRule == "" {
		cfg.StopRule = RuleNextAvailable
	}
	return &Simulator{
		cfg:    cfg,
		cash:   cash,
		book:   newOrderBook(),
		orders: make(map[string]*domain.Order),
	}
}

// NextOrderID reserves the id the next accepted submission will get.
// The strategy host hands it to the module synchronously while the
// submission itself travels through the bus.
func (s *Simulator) NextOrderID() string {
	s.orderSeq++
	return fmt.Sprintf("%d", s.orderSeq)
}

// Submit validates a request and rests the order, or rejects it. The
// returned order is the Submitted (or Rejected) snapshot to publish.
func (s *Simulator) Submit(id string, req event.OrderRequest) domain.Order {
	o := &domain.Order{
		ID:        id,
		Symbol:    req.Symbol,
		Direction: req.Direction,
		Offset:    req.Offset,
		Type:      req.Type,
		Price:     quant.RoundToTick(req.Price, s.cfg.PriceTick),
		Volume:    req.Volume,
		Status:    domain.Submitted,
		CreatedTs: s.now,
		UpdatedTs: s.now,
	}
	s.orders[id] = o
	s.submitted = append(s.submitted, id)

	if reason := s.rejectReason(o); reason != "" {
		o.Status = domain.Rejected
		slog.Debug("order rejected",
			slog.String("order_id", id), slog.String("reason", reason))
		return *o
	}

	s.book.add(o, s.orderSeq)
	s.pending = append(s.pending, o)
	return *o
}

func (s *Simulator) rejectReason(o *domain.Order) string {
	if o.Volume <= 0 {
		return "non-positive volume"
	}
	if o.Type != domain.Market && o.Price <= 0 {
		return "non-positive price"
	}
	if s.cash == nil || s.cfg.MarginRate.IsZero() || o.Direction != domain.Long {
		return ""
	}
	// Margin check uses the limit (or stop) level as the worst-case
	// fill; market orders have no bound and skip the check.
	if o.Type == domain.Market {
		return ""
	}
	notional := o.Price.Decimal().Mul(o.Volume.Decimal()).Mul(s.cfg.Cost.size())
	required := quant.MoneyFromDecimal(notional.Mul(s.cfg.MarginRate))
	if required > s.cash.AvailableCash() {
		return "insufficient margin"
	}
	return ""
}

// Cancel removes a resting order. Returns the Cancelled snapshot and
// true, or false when the id is unknown or already terminal.
func (s *Simulator) Cancel(id string) (domain.Order, bool) {
	o, ok := s.orders[id]
	if !ok || !o.IsActive() {
		return domain.Order{}, false
	}
	s.book.remove(id)
	o.Status = domain.Cancelled
	o.UpdatedTs = s.now
	return *o, true
}

// CancelAll cancels every resting order in submission order.
func (s *Simulator) CancelAll() []domain.Order {
	var out []domain.Order
	for _, id := range s.submitted {
		if upd, ok := s.Cancel(id); ok {
			out = append(out, upd)
		}
	}
	return out
}

// Order returns a snapshot of any order ever submitted.
func (s *Simulator) Order(id string) (domain.Order, bool) {
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// ActiveCount returns the number of resting orders.
func (s *Simulator) ActiveCount() int { return s.book.len() }

// OnBar advances simulated time to the bar and crosses the book
// against its range. Market orders fill at the open, then limit
// orders, then stop orders; within each group price priority rules,
// FIFO at equal price.
func (s *Simulator) OnBar(bar domain.Bar) Result {
	s.now = bar.Ts
	var res Result
	s.ackPending(&res)
	s.fillMarket(&res, bar)
	s.crossLimits(&res, bar)
	s.crossStops(&res, bar)
	return res
}

// ackPending acknowledges orders submitted since the previous bar:
// Submitted becomes NotTraded before any crossing is attempted.
func (s *Simulator) ackPending(res *Result) {
	for _, o := range s.pending {
		if o.Status != domain.Submitted {
			continue
		}
		o.Status = domain.NotTraded
		o.UpdatedTs = s.now
		res.Updates = append(res.Updates, *o)
	}
	s.pending = s.pending[:0]
}

func (s *Simulator) fillMarket(res *Result, bar domain.Bar) {
	queue := s.book.market
	s.book.market = nil
	for _, e := range queue {
		delete(s.book.entries, e.order.ID)
		s.fill(res, e.order, bar.Open)
	}
}

func (s *Simulator) crossLimits(res *Result, bar domain.Bar) {
	// A buy limit crosses when the bar trades at or below it; the fill
	// improves to the open when the bar opened below the limit.
	if bar.Low > 0 {
		for _, e := range collect(s.book.limitBuys, func(p int64) bool { return p >= int64(bar.Low) }) {
			s.unrest(e)
			s.fill(res, e.order, min(e.order.Price, bar.Open))
		}
	}
	for _, e := range collect(s.book.limitSells, func(p int64) bool { return p <= int64(bar.High) }) {
		s.unrest(e)
		s.fill(res, e.order, max(e.order.Price, bar.Open))
	}
}

func (s *Simulator) crossStops(res *Result, bar domain.Bar) {
	for _, e := range collect(s.book.stopBuys, func(p int64) bool { return p <= int64(bar.High) }) {
		s.unrest(e)
		price := e.order.Price
		if s.cfg.StopRule == RuleNextAvailable {
			price = max(price, bar.Open)
		}
		s.fill(res, e.order, price)
	}
	for _, e := range collect(s.book.stopSells, func(p int64) bool { return p >= int64(bar.Low) }) {
		s.unrest(e)
		price := e.order.Price
		if s.cfg.StopRule == RuleNextAvailable {
			price = min(price, bar.Open)
		}
		s.fill(res, e.order, price)
	}
}

// OnTick advances simulated time to the tick and crosses the book
// against its quote: the ask substitutes for the bar low on buys, the
// bid for the bar high on sells, and the last price both triggers and
// bounds stop fills. A zero bid or ask falls back to the last price.
func (s *Simulator) OnTick(t domain.Tick) Result {
	s.now = t.Ts
	ask, bid := t.Ask, t.Bid
	if ask == 0 {
		ask = t.Last
	}
	if bid == 0 {
		bid = t.Last
	}

	var res Result
	s.ackPending(&res)

	queue := s.book.market
	s.book.market = nil
	for _, e := range queue {
		delete(s.book.entries, e.order.ID)
		price := ask
		if e.order.Direction == domain.Short {
			price = bid
		}
		s.fill(&res, e.order, price)
	}

	if ask > 0 {
		for _, e := range collect(s.book.limitBuys, func(p int64) bool { return p >= int64(ask) }) {
			s.unrest(e)
			s.fill(&res, e.order, min(e.order.Price, ask))
		}
	}
	if bid > 0 {
		for _, e := range collect(s.book.limitSells, func(p int64) bool { return p <= int64(bid) }) {
			s.unrest(e)
			s.fill(&res, e.order, max(e.order.Price, bid))
		}
	}

	for _, e := range collect(s.book.stopBuys, func(p int64) bool { return p <= int64(t.Last) }) {
		s.unrest(e)
		price := e.order.Price
		if s.cfg.StopRule == RuleNextAvailable {
			price = max(price, t.Last)
		}
		s.fill(&res, e.order, price)
	}
	for _, e := range collect(s.book.stopSells, func(p int64) bool { return p >= int64(t.Last) }) {
		s.unrest(e)
		price := e.order.Price
		if s.cfg.StopRule == RuleNextAvailable {
			price = min(price, t.Last)
		}
		s.fill(&res, e.order, price)
	}
	return res
}

func (s *Simulator) unrest(e *bookEntry) {
	delete(s.book.entries, e.order.ID)
	if tr := s.book.tree(e.order); tr != nil {
		tr.Delete(e)
	}
}

// fill completes an order in full at price and records the trade with
// its costs. Partial fills do not occur under bar-range matching.
func (s *Simulator) fill(res *Result, o *domain.Order, price quant.PriceMicros) {
	volume := o.Remaining()
	o.Traded = o.Volume
	o.Status = domain.Filled
	o.UpdatedTs = s.now
	res.Updates = append(res.Updates, *o)

	s.tradeSeq++
	res.Trades = append(res.Trades, domain.Trade{
		ID:         fmt.Sprintf("%d", s.tradeSeq),
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Direction:  o.Direction,
		Offset:     o.Offset,
		Price:      price,
		Volume:     volume,
		Ts:         s.now,
		Commission: s.cfg.Cost.Commission(price, volume),
		Slippage:   s.cfg.Cost.SlippageCost(volume),
	})
}
