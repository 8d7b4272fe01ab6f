package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"chain_sync/internal/cache"
	"chain_sync/internal/domain"
)

func testAddr(b byte) domain.Address {
	var a domain.Address
	a[0] = b
	a[31] = b
	return a
}

// fakeFetcher serves canned account data and records the batch shapes it
// was asked for.
type fakeFetcher struct {
	mu       sync.Mutex
	data     map[domain.Address][]byte
	slot     uint64
	batches  [][]domain.Address
	failNext map[int]bool // fail the n-th call (0-based)
	calls    int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		data:     make(map[domain.Address][]byte),
		slot:     1,
		failNext: make(map[int]bool),
	}
}

func (f *fakeFetcher) set(addr domain.Address, data []byte) {
	f.mu.Lock()
	f.data[addr] = data
	f.mu.Unlock()
}

func (f *fakeFetcher) GetMultipleAccounts(ctx context.Context, addrs []domain.Address) (*domain.AccountBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.calls
	f.calls++
	f.batches = append(f.batches, append([]domain.Address(nil), addrs...))

	if f.failNext[call] {
		return nil, domain.NewRPCError("getMultipleAccounts", fmt.Errorf("node unavailable"))
	}

	batch := &domain.AccountBatch{
		Slot:    f.slot,
		Records: make([]*domain.AccountRecord, len(addrs)),
	}
	for i, a := range addrs {
		if data, ok := f.data[a]; ok {
			batch.Records[i] = domain.NewAccountRecord(data, f.slot)
		}
	}
	return batch, nil
}

func (f *fakeFetcher) GetAccountInfo(ctx context.Context, addr domain.Address) (*domain.AccountRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[addr]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return domain.NewAccountRecord(data, f.slot), nil
}

func TestHydrateFillsCache(t *testing.T) {
	c := cache.New()
	f := newFakeFetcher()

	keys := []domain.Address{testAddr(1), testAddr(2), testAddr(3)}
	for i, k := range keys {
		f.set(k, []byte{byte(i + 1)})
	}

	s := NewAccountInfoService(c, f, keys)
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}

	if c.Len() != 3 {
		t.Fatalf("expected 3 cached accounts, got %d", c.Len())
	}
	for i, k := range keys {
		rec, ok := c.Get(k)
		if !ok || rec.Data[0] != byte(i+1) {
			t.Errorf("account %d not hydrated correctly", i)
		}
	}
}

func TestHydrateSkipsMissingAccounts(t *testing.T) {
	c := cache.New()
	f := newFakeFetcher()

	exists := testAddr(1)
	missing := testAddr(2)
	f.set(exists, []byte{0xAA})

	s := NewAccountInfoService(c, f, []domain.Address{exists, missing})
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}

	if _, ok := c.Get(exists); !ok {
		t.Error("existing account not cached")
	}
	if _, ok := c.Get(missing); ok {
		t.Error("missing account must not be cached at all")
	}
}

func TestHydrateBatching(t *testing.T) {
	c := cache.New()
	f := newFakeFetcher()

	keys := make([]domain.Address, 25)
	for i := range keys {
		keys[i] = testAddr(byte(i + 1))
		f.set(keys[i], []byte{byte(i)})
	}

	s := NewAccountInfoServiceWithConfig(c, f, keys, 10, time.Second)
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}

	// 25 keys at batch size 10: 10, 10, 5 — order preserved.
	if len(f.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(f.batches))
	}
	if len(f.batches[0]) != 10 || len(f.batches[1]) != 10 || len(f.batches[2]) != 5 {
		t.Errorf("unexpected batch sizes: %d, %d, %d", len(f.batches[0]), len(f.batches[1]), len(f.batches[2]))
	}
	if f.batches[0][0] != keys[0] || f.batches[2][4] != keys[24] {
		t.Error("batch contents out of order")
	}
}

func TestHydrateFailedBatchSkipped(t *testing.T) {
	c := cache.New()
	f := newFakeFetcher()

	keys := make([]domain.Address, 30)
	for i := range keys {
		keys[i] = testAddr(byte(i + 1))
		f.set(keys[i], []byte{byte(i)})
	}
	f.failNext[1] = true // second batch fails

	s := NewAccountInfoServiceWithConfig(c, f, keys, 10, time.Second)
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate must absorb batch failures, got %v", err)
	}

	// First and third batches still land.
	if _, ok := c.Get(keys[0]); !ok {
		t.Error("first batch not cached")
	}
	if _, ok := c.Get(keys[15]); ok {
		t.Error("failed batch leaked into cache")
	}
	if _, ok := c.Get(keys[25]); !ok {
		t.Error("batch after the failure not cached")
	}

	// Next pass retries the failed range.
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("second hydrate: %v", err)
	}
	if _, ok := c.Get(keys[15]); !ok {
		t.Error("failed range not recovered on replay")
	}
}

func TestHydrateStopsOnCancel(t *testing.T) {
	c := cache.New()
	f := newFakeFetcher()
	keys := []domain.Address{testAddr(1)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewAccountInfoService(c, f, keys)
	if err := s.Hydrate(ctx); err == nil {
		t.Error("expected context error from cancelled hydrate")
	}
	if f.calls != 0 {
		t.Errorf("cancelled hydrate still fetched %d batches", f.calls)
	}
}

// A subscriber that lost notifications converges through the replay pass:
// the full watch-list is re-fetched every interval, so state changed during
// the lag is re-observed.
func TestReplayConvergence(t *testing.T) {
	c := cache.New()
	f := newFakeFetcher()
	addr := testAddr(1)
	f.set(addr, []byte{1})

	s := NewAccountInfoServiceWithConfig(c, f, []domain.Address{addr}, 10, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.After(time.Second)
	for {
		if rec, ok := c.Get(addr); ok && rec.Data[0] == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("initial hydration never landed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Simulate state changing while nobody consumed the notification.
	f.mu.Lock()
	f.data[addr] = []byte{2}
	f.slot = 2
	f.mu.Unlock()

	deadline = time.After(time.Second)
	for {
		rec, _ := c.Get(addr)
		if rec.Data[0] == 2 && rec.Slot == 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("replay pass never converged on new state")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWithConfigBounds(t *testing.T) {
	c := cache.New()
	f := newFakeFetcher()

	s := NewAccountInfoServiceWithConfig(c, f, nil, 500, 0)
	if s.batchSize != defaultBatchSize {
		t.Errorf("batch size above the node limit must fall back to default, got %d", s.batchSize)
	}
	if s.interval != defaultPollInterval {
		t.Errorf("non-positive interval must fall back to default, got %v", s.interval)
	}
}
