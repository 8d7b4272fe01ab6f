package domain

import (
	"time"
)

// MarketInfo is the persisted registry row for a tracked market
type MarketInfo struct {
	Address       string    `gorm:"primaryKey" json:"address"`
	Name          string    `json:"name"`
	Bids          string    `json:"bids"`
	Asks          string    `json:"asks"`
	CoinLotSize   uint64    `json:"coin_lot_size"`
	PriceLotSize  uint64    `json:"price_lot_size"`
	BaseDecimals  int32     `json:"base_decimals"`
	QuoteDecimals int32     `json:"quote_decimals"`
	IsActive      bool      `json:"is_active" gorm:"index"`   // Actively watched
	IsFavorite    bool      `json:"is_favorite" gorm:"index"` // User favorite status
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToMarket converts the registry row into the runtime watch descriptor.
func (m *MarketInfo) ToMarket() (Market, error) {
	addr, err := ParseAddress(m.Address)
	if err != nil {
		return Market{}, err
	}
	bids, err := ParseAddress(m.Bids)
	if err != nil {
		return Market{}, err
	}
	asks, err := ParseAddress(m.Asks)
	if err != nil {
		return Market{}, err
	}
	return Market{
		Name:          m.Name,
		Address:       addr,
		Bids:          bids,
		Asks:          asks,
		CoinLotSize:   m.CoinLotSize,
		PriceLotSize:  m.PriceLotSize,
		BaseDecimals:  m.BaseDecimals,
		QuoteDecimals: m.QuoteDecimals,
	}, nil
}

// NewMarketInfo builds a registry row from a runtime Market.
func NewMarketInfo(m Market) *MarketInfo {
	return &MarketInfo{
		Address:       m.Address.String(),
		Name:          m.Name,
		Bids:          m.Bids.String(),
		Asks:          m.Asks.String(),
		CoinLotSize:   m.CoinLotSize,
		PriceLotSize:  m.PriceLotSize,
		BaseDecimals:  m.BaseDecimals,
		QuoteDecimals: m.QuoteDecimals,
		IsActive:      true,
		UpdatedAt:     time.Now(),
	}
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
