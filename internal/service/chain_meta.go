package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chain_sync/internal/domain"
)

const defaultChainMetaInterval = 2500 * time.Millisecond

// ChainMeta is a point-in-time view of the chain head.
type ChainMeta struct {
	Blockhash string
	Slot      uint64
	UpdatedAt time.Time
}

// ChainMetaService keeps the latest block hash and slot fresh for
// downstream transaction building. Fetch failures are logged and retried
// on the next tick; the previous snapshot stays readable throughout.
type ChainMetaService struct {
	client   domain.ChainMetaSource
	interval time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	meta ChainMeta
}

// NewChainMetaService creates a chain meta service with default cadence.
func NewChainMetaService(client domain.ChainMetaSource) *ChainMetaService {
	return &ChainMetaService{
		client:   client,
		interval: defaultChainMetaInterval,
		logger:   slog.Default().With("module", "chain_meta_service"),
	}
}

// NewChainMetaServiceWithConfig creates a chain meta service with a custom
// refresh interval.
func NewChainMetaServiceWithConfig(client domain.ChainMetaSource, interval time.Duration) *ChainMetaService {
	s := NewChainMetaService(client)
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// Run refreshes immediately, then on every tick until cancellation.
func (s *ChainMetaService) Run(ctx context.Context) {
	s.logger.Info("chain meta service started", slog.Duration("interval", s.interval))

	if err := s.refresh(ctx); err != nil {
		s.logger.Warn("initial chain meta fetch failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("received shutdown signal, stopping")
			return
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				s.logger.Warn("chain meta fetch failed", slog.Any("error", err))
			}
		}
	}
}

func (s *ChainMetaService) refresh(ctx context.Context) error {
	hash, _, err := s.client.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}
	slot, err := s.client.GetSlot(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.meta = ChainMeta{Blockhash: hash, Slot: slot, UpdatedAt: time.Now()}
	s.mu.Unlock()
	return nil
}

// Snapshot returns the most recent chain meta. The zero value means no
// fetch has succeeded yet.
func (s *ChainMetaService) Snapshot() ChainMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}
