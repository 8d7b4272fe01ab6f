package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"chain_sync/internal/domain"
)

// Fixed account layouts, little-endian, version-specific to the external
// ledger program. Each starts with an 8-byte discriminator.
var (
	traderAccountDiscriminator = []byte("trdracct")
	openOrdersDiscriminator    = []byte("openordr")
)

const (
	traderAccountLen = 80
	openOrdersLen    = 104
)

func decodeError(layout, format string, args ...any) error {
	return &domain.DecodeError{Layout: layout, Reason: fmt.Sprintf(format, args...)}
}

// DecodeTraderAccount parses the trading account page of an authority.
func DecodeTraderAccount(data []byte) (*domain.TraderAccount, error) {
	if len(data) < traderAccountLen {
		return nil, decodeError("trader_account", "page truncated: %d bytes, need %d", len(data), traderAccountLen)
	}
	if !bytes.Equal(data[0:8], traderAccountDiscriminator) {
		return nil, decodeError("trader_account", "discriminator mismatch")
	}

	authority, err := domain.AddressFromBytes(data[8:40])
	if err != nil {
		return nil, decodeError("trader_account", "authority: %v", err)
	}

	return &domain.TraderAccount{
		Authority:     authority,
		BaseDeposits:  binary.LittleEndian.Uint64(data[40:48]),
		QuoteDeposits: binary.LittleEndian.Uint64(data[48:56]),
		BaseBorrows:   binary.LittleEndian.Uint64(data[56:64]),
		QuoteBorrows:  binary.LittleEndian.Uint64(data[64:72]),
		UpdatedSlot:   binary.LittleEndian.Uint64(data[72:80]),
	}, nil
}

// DecodeOpenOrders parses a per-market open-orders account page.
func DecodeOpenOrders(data []byte) (*domain.OpenOrders, error) {
	if len(data) < openOrdersLen {
		return nil, decodeError("open_orders", "page truncated: %d bytes, need %d", len(data), openOrdersLen)
	}
	if !bytes.Equal(data[0:8], openOrdersDiscriminator) {
		return nil, decodeError("open_orders", "discriminator mismatch")
	}

	market, err := domain.AddressFromBytes(data[8:40])
	if err != nil {
		return nil, decodeError("open_orders", "market: %v", err)
	}
	owner, err := domain.AddressFromBytes(data[40:72])
	if err != nil {
		return nil, decodeError("open_orders", "owner: %v", err)
	}

	return &domain.OpenOrders{
		Market:     market,
		Owner:      owner,
		BaseTotal:  binary.LittleEndian.Uint64(data[72:80]),
		BaseFree:   binary.LittleEndian.Uint64(data[80:88]),
		QuoteTotal: binary.LittleEndian.Uint64(data[88:96]),
		QuoteFree:  binary.LittleEndian.Uint64(data[96:104]),
	}, nil
}
