package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chain_sync/internal/app"
	"chain_sync/internal/cache"
	"chain_sync/internal/provider"
	"chain_sync/internal/rpc"
	"chain_sync/internal/service"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background market registry sync
	go bootstrap.SyncMarkets(ctx)

	cfg := bootstrap.Config

	// 5. Accounts cache + RPC client
	accounts := cache.New()
	client := rpc.NewClient(cfg.RPC.HTTPURL, time.Duration(cfg.RPC.RequestTimeoutSec)*time.Second)

	// 6. Chain meta loop (fresh block hash for downstream tx building)
	chainMeta := service.NewChainMetaServiceWithConfig(client, time.Duration(cfg.Sync.ChainMetaIntervalMS)*time.Millisecond)
	go chainMeta.Run(ctx)
	slog.InfoContext(ctx, "✅ ChainMetaService started")

	// 7. Typed providers (subscribe to the cache before hydration starts)
	if !bootstrap.TraderKey.IsZero() {
		traderProvider := provider.NewTraderAccountProvider(accounts, bootstrap.TraderKey)
		go traderProvider.Run(ctx)
		slog.InfoContext(ctx, "✅ TraderAccountProvider started")
	}

	if len(bootstrap.OpenOrdersKeys) > 0 {
		openOrdersProvider := provider.NewOpenOrdersProvider(accounts, bootstrap.OpenOrdersKeys)
		go openOrdersProvider.Run(ctx)
		slog.InfoContext(ctx, "✅ OpenOrdersProvider started", slog.Int("accounts", len(bootstrap.OpenOrdersKeys)))
	}

	bookProvider := provider.NewOrderBookProvider(accounts, bootstrap.Markets)
	go bookProvider.Run(ctx)
	slog.InfoContext(ctx, "✅ OrderBookProvider started", slog.Int("markets", len(bootstrap.Markets)))

	// 8. Push feed (optional) + poll-and-hydrate backstop
	watchList := bootstrap.WatchList()

	if cfg.RPC.WSURL != "" {
		feed := rpc.NewAccountSubscriber(cfg.RPC.WSURL, accounts, watchList)
		if err := feed.Connect(ctx); err != nil {
			slog.Error("Failed to connect account feed", slog.Any("error", err))
		}
		defer feed.Disconnect()
		slog.InfoContext(ctx, "✅ AccountSubscriber started")
	}

	poller := service.NewAccountInfoServiceWithConfig(
		accounts, client, watchList,
		cfg.Sync.BatchSize,
		time.Duration(cfg.Sync.PollIntervalMS)*time.Millisecond,
	)
	go poller.Run(ctx)
	slog.InfoContext(ctx, "✅ AccountInfoService started", slog.Int("accounts", len(watchList)))

	slog.InfoContext(ctx, "✨ Chain Sync fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	if cfg.Sync.DumpOnExit || os.Getenv("CHAIN_SYNC_DUMP") != "" {
		if err := accounts.DumpToFile("chain_sync_dump.json.zst"); err != nil {
			slog.Error("Failed to dump cache state", slog.Any("error", err))
		}
	}

	slog.Info("👋 Shutting down gracefully...")
}
