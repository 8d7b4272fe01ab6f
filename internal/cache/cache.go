package cache

import (
	"errors"
	"log/slog"
	"sync"

	"chain_sync/internal/bus"
	"chain_sync/internal/domain"
	"chain_sync/internal/infra"
)

// NotifyCapacity is the bounded per-subscriber buffer of the change
// notification stream. A subscriber further behind than this loses its
// oldest notifications; the periodic replay pass is the correctness
// backstop for anything missed.
const NotifyCapacity = 65535

const shardCount = 16

// AccountsCache is the shared store of the latest observed snapshot per
// ledger address. It owns the raw bytes exclusively: records are immutable
// and replaced wholesale, so readers get consistent snapshots without
// copying. Independent keys never contend on a global lock.
type AccountsCache struct {
	shards [shardCount]shard
	hub    *bus.Hub[domain.Address]
	logger *slog.Logger
}

type shard struct {
	mu      sync.RWMutex
	records map[domain.Address]*domain.AccountRecord
}

// New creates an empty cache with its own notification hub.
func New() *AccountsCache {
	c := &AccountsCache{
		hub:    bus.NewHub[domain.Address](NotifyCapacity),
		logger: slog.Default().With("module", "accounts_cache"),
	}
	for i := range c.shards {
		c.shards[i].records = make(map[domain.Address]*domain.AccountRecord)
	}
	return c
}

func (c *AccountsCache) shardFor(addr domain.Address) *shard {
	return &c.shards[addr[0]&(shardCount-1)]
}

// Get returns the latest snapshot for an address, or false if the address
// has never been hydrated. Never blocks on writers of other shards.
func (c *AccountsCache) Get(addr domain.Address) (*domain.AccountRecord, bool) {
	sh := c.shardFor(addr)
	sh.mu.RLock()
	rec, ok := sh.records[addr]
	sh.mu.RUnlock()
	return rec, ok
}

// Insert stores rec as the latest snapshot for addr, then notifies every
// subscriber. The record is stored before the notification is attempted, so
// a consumer reacting to the notification always reads at least this write.
//
// Two non-fatal conditions surface as errors the caller may ignore:
// ErrStaleRecord when rec carries a slot strictly older than the cached
// snapshot (a delayed duplicate fetch racing a newer one; the newer state is
// kept and nobody is notified), and ErrNoSubscribers when the notification
// had no listeners.
func (c *AccountsCache) Insert(addr domain.Address, rec *domain.AccountRecord) error {
	sh := c.shardFor(addr)
	sh.mu.Lock()
	if existing, ok := sh.records[addr]; ok && rec.Slot < existing.Slot {
		sh.mu.Unlock()
		infra.GlobalMetrics.RecordStaleReject()
		c.logger.Debug("rejected stale account record",
			slog.String("address", addr.Short()),
			slog.Uint64("slot", rec.Slot),
			slog.Uint64("cached_slot", existing.Slot),
		)
		return domain.ErrStaleRecord
	}
	sh.records[addr] = rec
	sh.mu.Unlock()

	infra.GlobalMetrics.RecordInsert()

	if err := c.hub.Publish(addr); err != nil {
		if errors.Is(err, domain.ErrNoSubscribers) {
			c.logger.Debug("no subscribers for account update", slog.String("address", addr.Short()))
		}
		return err
	}
	return nil
}

// Subscribe returns a new independent subscriber to the change stream.
func (c *AccountsCache) Subscribe() *bus.Subscription[domain.Address] {
	return c.hub.Subscribe()
}

// Len returns the number of cached addresses.
func (c *AccountsCache) Len() int {
	n := 0
	for i := range c.shards {
		c.shards[i].mu.RLock()
		n += len(c.shards[i].records)
		c.shards[i].mu.RUnlock()
	}
	return n
}

// Addresses returns every cached address, in no particular order.
func (c *AccountsCache) Addresses() []domain.Address {
	addrs := make([]domain.Address, 0, c.Len())
	for i := range c.shards {
		c.shards[i].mu.RLock()
		for addr := range c.shards[i].records {
			addrs = append(addrs, addr)
		}
		c.shards[i].mu.RUnlock()
	}
	return addrs
}
