package provider

import (
	"sync"

	"chain_sync/internal/cache"
	"chain_sync/internal/codec"
	"chain_sync/internal/domain"
)

// TraderAccountProvider watches the single configured trading account and
// republishes a freshly decoded copy on every update.
type TraderAccountProvider struct {
	*Provider[*domain.TraderAccount]

	mu     sync.RWMutex
	latest *domain.TraderAccount
}

// NewTraderAccountProvider creates a provider for one trading account.
func NewTraderAccountProvider(c *cache.AccountsCache, account domain.Address) *TraderAccountProvider {
	p := &TraderAccountProvider{}
	p.Provider = NewProvider(
		"trader_account_provider",
		c,
		func(addr domain.Address) bool { return addr == account },
		p.decodeUpdate,
	)
	return p
}

func (p *TraderAccountProvider) decodeUpdate(_ domain.Address, rec *domain.AccountRecord) (*domain.TraderAccount, bool, error) {
	acc, err := codec.DecodeTraderAccount(rec.Data)
	if err != nil {
		return nil, false, err
	}
	p.mu.Lock()
	p.latest = acc
	p.mu.Unlock()
	return acc, true, nil
}

// Latest returns the most recently decoded account state, or false if no
// update has decoded successfully yet.
func (p *TraderAccountProvider) Latest() (*domain.TraderAccount, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return nil, false
	}
	return p.latest, true
}
