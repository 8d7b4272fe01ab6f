package domain

import (
	"context"
)

// AccountFetcher is the read-side RPC capability the sync services rely on.
// Batch size is bounded by the node; the poll service partitions its
// watch-list accordingly.
type AccountFetcher interface {
	GetMultipleAccounts(ctx context.Context, addrs []Address) (*AccountBatch, error)
	GetAccountInfo(ctx context.Context, addr Address) (*AccountRecord, error)
}

// ChainMetaSource provides the latest block identifier and slot, needed by
// downstream transaction building.
type ChainMetaSource interface {
	GetLatestBlockhash(ctx context.Context) (string, uint64, error)
	GetSlot(ctx context.Context) (uint64, error)
}

// AccountFeed is a push-based account update source (websocket worker)
type AccountFeed interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}
