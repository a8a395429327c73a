package sim

import (
	"github.com/tidwall/btree"

	"quant_go/internal/domain"
)

// bookEntry pairs a resting order with its submission sequence so
// equal-price orders keep FIFO priority.
type bookEntry struct {
	price int64
	seq   int64
	order *domain.Order
}

// orderBook holds the resting orders of one simulated instrument.
// Each side is price-ordered so a crossing scan touches marketable
// levels first and can stop at the first non-marketable one.
type orderBook struct {
	limitBuys  *btree.BTreeG[*bookEntry] // highest limit first
	limitSells *btree.BTreeG[*bookEntry] // lowest limit first
	stopBuys   *btree.BTreeG[*bookEntry] // lowest trigger first
	stopSells  *btree.BTreeG[*bookEntry] // highest trigger first
	market     []*bookEntry              // FIFO, fills at next open

	entries map[string]*bookEntry
}

func lessDescending(a, b *bookEntry) bool {
	if a.price != b.price {
		return a.price > b.price
	}
	return a.seq < b.seq
}

func lessAscending(a, b *bookEntry) bool {
	if a.price != b.price {
		return a.price < b.price
	}
	return a.seq < b.seq
}

func newOrderBook() *orderBook {
	return &orderBook{
		limitBuys:  btree.NewBTreeG(lessDescending),
		limitSells: btree.NewBTreeG(lessAscending),
		stopBuys:   btree.NewBTreeG(lessAscending),
		stopSells:  btree.NewBTreeG(lessDescending),
		entries:    make(map[string]*bookEntry),
	}
}

func (b *orderBook) tree(o *domain.Order) *btree.BTreeG[*bookEntry] {
	switch {
	case o.Type == domain.Limit && o.Direction == domain.Long:
		return b.limitBuys
	case o.Type == domain.Limit:
		return b.limitSells
	case o.Type == domain.Stop && o.Direction == domain.Long:
		return b.stopBuys
	case o.Type == domain.Stop:
		return b.stopSells
	}
	return nil
}

// add rests an accepted order. seq fixes FIFO priority at equal price.
func (b *orderBook) add(o *domain.Order, seq int64) {
	e := &bookEntry{price: int64(o.Price), seq: seq, order: o}
	b.entries[o.ID] = e
	if tr := b.tree(o); tr != nil {
		tr.Set(e)
	} else {
		b.market = append(b.market, e)
	}
}

// remove takes an order out of the book, in whichever collection it
// rests. Returns false for ids that are not resting.
func (b *orderBook) remove(id string) bool {
	e, ok := b.entries[id]
	if !ok {
		return false
	}
	delete(b.entries, id)
	if tr := b.tree(e.order); tr != nil {
		tr.Delete(e)
		return true
	}
	for i, m := range b.market {
		if m == e {
			b.market = append(b.market[:i], b.market[i+1:]...)
			break
		}
	}
	return true
}

// resting reports whether the order id is still in the book.
func (b *orderBook) resting(id string) bool {
	_, ok := b.entries[id]
	return ok
}

func (b *orderBook) len() int { return len(b.entries) }

// collect gathers tree entries in priority order while keep returns
// true. Mutation happens after the scan; btree iteration is not safe
// against concurrent deletes.
func collect(tr *btree.BTreeG[*bookEntry], keep func(price int64) bool) []*bookEntry {
	var out []*bookEntry
	tr.Scan(func(e *bookEntry) bool {
		if !keep(e.price) {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}
