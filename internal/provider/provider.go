// Package provider turns raw cache notifications into typed domain
// updates. One generic loop is specialized three times with different
// watch sets and decode functions.
package provider

import (
	"context"
	"errors"
	"log/slog"

	"chain_sync/internal/bus"
	"chain_sync/internal/cache"
	"chain_sync/internal/domain"
	"chain_sync/internal/infra"
)

// DefaultFanoutCapacity bounds each provider's own broadcast buffer,
// mirroring the cache notification capacity.
const DefaultFanoutCapacity = cache.NotifyCapacity

// DecodeFunc turns a raw account snapshot into a typed value. Returning
// ok=false skips publication without error (e.g. bytes unchanged since the
// last decode). An error leaves the previously published value intact.
type DecodeFunc[T any] func(addr domain.Address, rec *domain.AccountRecord) (value T, ok bool, err error)

// Provider is the generic notification→decode→republish loop. It consumes
// its own subscription of the cache's change stream, filters to its watch
// set, always re-reads the freshest snapshot from the cache, and fans the
// decoded value out on its own typed hub.
type Provider[T any] struct {
	name   string
	cache  *cache.AccountsCache
	out    *bus.Hub[T]
	watch  func(domain.Address) bool
	decode DecodeFunc[T]
	logger *slog.Logger
}

// NewProvider wires a generic provider. watch and decode define the
// specialization.
func NewProvider[T any](name string, c *cache.AccountsCache, watch func(domain.Address) bool, decode DecodeFunc[T]) *Provider[T] {
	return &Provider[T]{
		name:   name,
		cache:  c,
		out:    bus.NewHub[T](DefaultFanoutCapacity),
		watch:  watch,
		decode: decode,
		logger: slog.Default().With("module", name),
	}
}

// Subscribe returns a new receiver of this provider's typed updates.
func (p *Provider[T]) Subscribe() *bus.Subscription[T] {
	return p.out.Subscribe()
}

// Run consumes cache notifications until the context is cancelled. Lag on
// the notification stream is logged and absorbed — the periodic replay
// pass re-observes anything missed, so the loop never tries to catch up.
func (p *Provider[T]) Run(ctx context.Context) {
	sub := p.cache.Subscribe()
	defer sub.Close()

	p.logger.Info("provider started")

	for {
		addr, err := sub.Recv(ctx)
		if err != nil {
			var lag *domain.LagError
			switch {
			case errors.As(err, &lag):
				infra.GlobalMetrics.RecordLag(lag.Missed)
				p.logger.Warn("notification stream lagged, waiting for replay pass", slog.Uint64("missed", lag.Missed))
				continue
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				p.logger.Info("received shutdown signal, stopping")
				return
			case errors.Is(err, domain.ErrSubscriptionClosed):
				return
			default:
				p.logger.Warn("notification receive failed", slog.Any("error", err))
				continue
			}
		}
		p.process(addr)
	}
}

func (p *Provider[T]) process(addr domain.Address) {
	if !p.watch(addr) {
		return
	}

	// Always decode the freshest snapshot, not whatever bytes triggered
	// the notification.
	rec, ok := p.cache.Get(addr)
	if !ok {
		return
	}

	v, ok, err := p.decode(addr, rec)
	if err != nil {
		infra.GlobalMetrics.RecordDecodeError()
		p.logger.Warn("failed to decode account update",
			slog.String("address", addr.Short()),
			slog.Any("error", err),
		)
		return
	}
	if !ok {
		return
	}

	if err := p.out.Publish(v); err != nil {
		// Normal steady state when no handler currently cares.
		p.logger.Debug("no subscribers for typed update", slog.String("address", addr.Short()))
	}
}
