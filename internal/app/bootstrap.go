package app

import (
	"context"
	"fmt"
	"log/slog"

	"chain_sync/internal/domain"
	"chain_sync/internal/infra"
	"chain_sync/internal/infra/storage"

	"github.com/joho/godotenv"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage

	// Parsed watch descriptors, ready for the services and providers.
	Markets        []domain.Market
	TraderKey      domain.Address
	OpenOrdersKeys []domain.Address
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Chain Sync...")

	// 1. Preload .env so secrets can override the YAML config
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment", slog.Any("error", err))
	}

	// 2. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 3. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 4. Initialize Storage (DB)
	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 5. Parse watch descriptors
	if err := b.parseWatchList(); err != nil {
		return err
	}
	slog.Info("✅ Watch-list parsed",
		slog.Int("markets", len(b.Markets)),
		slog.Int("open_orders", len(b.OpenOrdersKeys)),
	)

	return nil
}

func (b *Bootstrap) parseWatchList() error {
	for _, mc := range b.Config.Markets {
		m, err := mc.ToMarket()
		if err != nil {
			return fmt.Errorf("market config: %w", err)
		}
		b.Markets = append(b.Markets, m)
	}

	if b.Config.Accounts.Trader != "" {
		trader, err := domain.ParseAddress(b.Config.Accounts.Trader)
		if err != nil {
			return fmt.Errorf("trader account: %w", err)
		}
		b.TraderKey = trader
	}

	for _, s := range b.Config.Accounts.OpenOrders {
		addr, err := domain.ParseAddress(s)
		if err != nil {
			return fmt.Errorf("open orders account: %w", err)
		}
		b.OpenOrdersKeys = append(b.OpenOrdersKeys, addr)
	}
	return nil
}

// WatchList returns every address the poll service must keep fresh:
// both book sides and the market account per market, the trader account,
// and every open-orders account. Duplicates are removed; order is stable.
func (b *Bootstrap) WatchList() []domain.Address {
	seen := make(map[domain.Address]struct{})
	var keys []domain.Address
	add := func(a domain.Address) {
		if a.IsZero() {
			return
		}
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		keys = append(keys, a)
	}

	for _, m := range b.Markets {
		add(m.Address)
		add(m.Bids)
		add(m.Asks)
	}
	add(b.TraderKey)
	for _, a := range b.OpenOrdersKeys {
		add(a)
	}
	return keys
}

// SyncMarkets mirrors the configured markets into the registry database,
// preserving user state (favorites) across runs.
func (b *Bootstrap) SyncMarkets(ctx context.Context) {
	slog.Info("🔄 Syncing market registry...")

	for _, m := range b.Markets {
		select {
		case <-ctx.Done():
			return
		default:
		}

		row := domain.NewMarketInfo(m)

		// Check if exists to preserve IsFavorite
		if existing, _ := b.Storage.GetMarket(row.Address); existing != nil {
			row.IsFavorite = existing.IsFavorite
			row.CreatedAt = existing.CreatedAt
		}

		if err := b.Storage.UpsertMarket(row); err != nil {
			slog.Error("Failed to upsert market", slog.String("market", m.Name), slog.Any("error", err))
		}
	}

	b.deactivateStaleMarkets()

	if favorites, err := b.Storage.GetFavorites(); err == nil && len(favorites) > 0 {
		slog.Info("⭐ Favorite markets restored", slog.Int("count", len(favorites)))
	}

	slog.Info("✨ Market registry synced", slog.Int("markets", len(b.Markets)))
}

// deactivateStaleMarkets clears the active flag on registry rows that are no
// longer in the configured watch-list. The rows stay in the registry so
// favorites survive a config change.
func (b *Bootstrap) deactivateStaleMarkets() {
	configured := make(map[string]struct{}, len(b.Markets))
	for _, m := range b.Markets {
		configured[m.Address.String()] = struct{}{}
	}

	active, err := b.Storage.GetActiveMarkets()
	if err != nil {
		slog.Error("Failed to load active markets", slog.Any("error", err))
		return
	}

	for _, row := range active {
		if _, ok := configured[row.Address]; ok {
			continue
		}
		if err := b.Storage.SetActive(row.Address, false); err != nil {
			slog.Error("Failed to deactivate market", slog.String("market", row.Name), slog.Any("error", err))
		} else {
			slog.Info("Market no longer configured, deactivated", slog.String("market", row.Name))
		}
	}
}
