package domain

import (
	"github.com/shopspring/decimal"
)

// Market describes one tracked market: the market account itself, the two
// order-book side accounts, and the lot-size scale factors the slab codec
// needs to turn raw lot counts into native price/quantity units.
type Market struct {
	Name    string
	Address Address
	Bids    Address
	Asks    Address

	// Lot sizes are fixed per market by the on-ledger program.
	CoinLotSize  uint64
	PriceLotSize uint64

	// Decimal places of the base and quote tokens, for display conversion.
	BaseDecimals  int32
	QuoteDecimals int32
}

// DisplayPrice converts a native price into quote-token units.
func (m *Market) DisplayPrice(native uint64) decimal.Decimal {
	return decimal.NewFromUint64(native).Shift(-m.QuoteDecimals)
}

// DisplayQuantity converts a native quantity into base-token units.
func (m *Market) DisplayQuantity(native uint64) decimal.Decimal {
	return decimal.NewFromUint64(native).Shift(-m.BaseDecimals)
}
