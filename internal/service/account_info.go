// Package service contains the background loops that keep the accounts
// cache and chain metadata fresh.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chain_sync/internal/cache"
	"chain_sync/internal/domain"
	"chain_sync/internal/infra"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 500 * time.Millisecond
)

// AccountInfoService keeps the cache hydrated for a fixed watch-list. It
// performs one full hydration pass on start, then re-fetches the entire
// list in batches every interval for the process lifetime. This periodic
// replay is the correctness backstop for the lossy notification path: any
// update a subscriber missed is re-observed within one interval.
type AccountInfoService struct {
	cache     *cache.AccountsCache
	client    domain.AccountFetcher
	keys      []domain.Address
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

// NewAccountInfoService creates a poll service with default cadence.
func NewAccountInfoService(c *cache.AccountsCache, client domain.AccountFetcher, keys []domain.Address) *AccountInfoService {
	return &AccountInfoService{
		cache:     c,
		client:    client,
		keys:      keys,
		batchSize: defaultBatchSize,
		interval:  defaultPollInterval,
		logger:    slog.Default().With("module", "account_info_service"),
	}
}

// NewAccountInfoServiceWithConfig creates a poll service with custom cadence.
func NewAccountInfoServiceWithConfig(c *cache.AccountsCache, client domain.AccountFetcher, keys []domain.Address, batchSize int, interval time.Duration) *AccountInfoService {
	s := NewAccountInfoService(c, client, keys)
	if batchSize > 0 && batchSize <= defaultBatchSize {
		s.batchSize = batchSize
	}
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// Hydrate performs one full pass over the watch-list. A failed batch is
// logged and skipped; the next replay cycle retries it, so a transient RPC
// error costs at most one interval of staleness for those addresses.
func (s *AccountInfoService) Hydrate(ctx context.Context) error {
	for from := 0; from < len(s.keys); from += s.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		to := min(from+s.batchSize, len(s.keys))
		if err := s.updateBatch(ctx, from, to); err != nil {
			infra.GlobalMetrics.RecordRPCBatchFailure()
			s.logger.Warn("batch fetch failed, skipping until next cycle",
				slog.Int("from", from),
				slog.Int("to", to),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// Run hydrates once, then replays the full watch-list every interval until
// the context is cancelled.
func (s *AccountInfoService) Run(ctx context.Context) {
	s.logger.Info("account info service started",
		slog.Int("accounts", len(s.keys)),
		slog.Duration("interval", s.interval),
	)

	if err := s.Hydrate(ctx); err != nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("received shutdown signal, stopping")
			return
		case <-ticker.C:
			if err := s.Hydrate(ctx); err != nil {
				return
			}
		}
	}
}

func (s *AccountInfoService) updateBatch(ctx context.Context, from, to int) error {
	batch := s.keys[from:to]
	res, err := s.client.GetMultipleAccounts(ctx, batch)
	if err != nil {
		return err
	}

	for i, rec := range res.Records {
		if rec == nil {
			// Address has no account on the ledger; not cached at all.
			continue
		}
		err := s.cache.Insert(batch[i], rec)
		if err != nil && !errors.Is(err, domain.ErrNoSubscribers) && !errors.Is(err, domain.ErrStaleRecord) {
			s.logger.Warn("cache insert failed", slog.String("address", batch[i].Short()), slog.Any("error", err))
		}
	}
	return nil
}
