package domain

import (
	"fmt"
	"sync"
)

// OrderID is the 128-bit ledger-native order identifier. The high half
// carries the price in lots, the low half a sequence number.
type OrderID struct {
	Hi uint64
	Lo uint64
}

// String returns the identifier as 32 hex digits.
func (id OrderID) String() string {
	return fmt.Sprintf("%016x%016x", id.Hi, id.Lo)
}

// PriceLevel is one decoded resting order. Price and Quantity are in native
// units, already scaled by the market's lot sizes. Levels are produced fresh
// on every decode and never mutated in place.
type PriceLevel struct {
	OrderID       OrderID
	ClientOrderID uint64
	Price         uint64
	Quantity      uint64
}

// OrderBook holds both decoded sides of one market. The two sides are
// guarded independently so a bid update never blocks an ask reader. One
// instance exists per market for the process lifetime and is shared by
// reference with every subscriber; sides are replaced wholesale, so a slice
// returned by Bids or Asks is a stable snapshot.
type OrderBook struct {
	Market Address

	bidMu sync.RWMutex
	bids  []PriceLevel

	askMu sync.RWMutex
	asks  []PriceLevel
}

// NewOrderBook creates an empty book for a market.
func NewOrderBook(market Address) *OrderBook {
	return &OrderBook{Market: market}
}

// Bids returns the current bid side, best (highest) price first.
func (b *OrderBook) Bids() []PriceLevel {
	b.bidMu.RLock()
	defer b.bidMu.RUnlock()
	return b.bids
}

// Asks returns the current ask side, best (lowest) price first.
func (b *OrderBook) Asks() []PriceLevel {
	b.askMu.RLock()
	defer b.askMu.RUnlock()
	return b.asks
}

// SetBids replaces the bid side wholesale.
func (b *OrderBook) SetBids(levels []PriceLevel) {
	b.bidMu.Lock()
	b.bids = levels
	b.bidMu.Unlock()
}

// SetAsks replaces the ask side wholesale.
func (b *OrderBook) SetAsks(levels []PriceLevel) {
	b.askMu.Lock()
	b.asks = levels
	b.askMu.Unlock()
}

// BestBid returns the top bid level, if any.
func (b *OrderBook) BestBid() (PriceLevel, bool) {
	b.bidMu.RLock()
	defer b.bidMu.RUnlock()
	if len(b.bids) == 0 {
		return PriceLevel{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the top ask level, if any.
func (b *OrderBook) BestAsk() (PriceLevel, bool) {
	b.askMu.RLock()
	defer b.askMu.RUnlock()
	if len(b.asks) == 0 {
		return PriceLevel{}, false
	}
	return b.asks[0], true
}
