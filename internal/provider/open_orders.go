package provider

import (
	"sync"

	"chain_sync/internal/cache"
	"chain_sync/internal/codec"
	"chain_sync/internal/domain"
)

// OpenOrdersUpdate tags a decoded open-orders account with its address so
// subscribers watching many accounts can discriminate.
type OpenOrdersUpdate struct {
	Address    domain.Address
	OpenOrders *domain.OpenOrders
}

// OpenOrdersProvider watches an arbitrary list of open-orders accounts
// that all share one binary shape.
type OpenOrdersProvider struct {
	*Provider[OpenOrdersUpdate]

	watched map[domain.Address]struct{}

	mu     sync.RWMutex
	latest map[domain.Address]*domain.OpenOrders
}

// NewOpenOrdersProvider creates a provider for the given accounts.
func NewOpenOrdersProvider(c *cache.AccountsCache, accounts []domain.Address) *OpenOrdersProvider {
	watched := make(map[domain.Address]struct{}, len(accounts))
	for _, a := range accounts {
		watched[a] = struct{}{}
	}

	p := &OpenOrdersProvider{
		watched: watched,
		latest:  make(map[domain.Address]*domain.OpenOrders, len(accounts)),
	}
	p.Provider = NewProvider(
		"open_orders_provider",
		c,
		func(addr domain.Address) bool {
			_, ok := watched[addr]
			return ok
		},
		p.decodeUpdate,
	)
	return p
}

func (p *OpenOrdersProvider) decodeUpdate(addr domain.Address, rec *domain.AccountRecord) (OpenOrdersUpdate, bool, error) {
	oo, err := codec.DecodeOpenOrders(rec.Data)
	if err != nil {
		return OpenOrdersUpdate{}, false, err
	}
	p.mu.Lock()
	p.latest[addr] = oo
	p.mu.Unlock()
	return OpenOrdersUpdate{Address: addr, OpenOrders: oo}, true, nil
}

// Latest returns the most recently decoded state for one account, or false
// if it has not decoded successfully yet.
func (p *OpenOrdersProvider) Latest(addr domain.Address) (*domain.OpenOrders, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	oo, ok := p.latest[addr]
	return oo, ok
}
