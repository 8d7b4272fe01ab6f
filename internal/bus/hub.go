package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"chain_sync/internal/domain"
	"chain_sync/internal/infra"

	"github.com/google/uuid"
)

// Hub is a bounded, lossy, multi-subscriber broadcast channel. Publishing
// never blocks: a subscriber that falls behind its buffer loses the oldest
// pending values and observes a LagError on its next receive, at which point
// it must resynchronize from the source of truth instead of trusting the
// stream. Within one subscriber, delivery order matches publish order apart
// from dropped entries.
type Hub[T any] struct {
	mu       sync.RWMutex
	subs     map[uuid.UUID]*Subscription[T]
	capacity int
}

// NewHub creates a hub whose subscribers each buffer up to capacity values.
func NewHub[T any](capacity int) *Hub[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Hub[T]{
		subs:     make(map[uuid.UUID]*Subscription[T]),
		capacity: capacity,
	}
}

// Subscribe registers a new independent subscriber.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		id:  uuid.New(),
		hub: h,
		ch:  make(chan T, h.capacity),
	}
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	infra.GlobalMetrics.AddActiveSubscriber()
	return s
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub[T]) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers v to every current subscriber without blocking. A full
// subscriber has its oldest pending value evicted to make room. Returns
// ErrNoSubscribers when nobody is listening; the value is simply discarded.
func (h *Hub[T]) Publish(v T) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.subs) == 0 {
		return domain.ErrNoSubscribers
	}

	for _, s := range h.subs {
		select {
		case s.ch <- v:
		default:
			// Evict the oldest pending value, then retry once. The second
			// send can still lose to a concurrent publisher; count the loss
			// either way so the subscriber learns it lagged.
			select {
			case <-s.ch:
				s.dropped.Add(1)
			default:
			}
			select {
			case s.ch <- v:
			default:
				s.dropped.Add(1)
			}
		}
	}
	return nil
}

// Subscription is one receiver of a Hub's broadcast stream. Recv must only
// be called from a single goroutine.
type Subscription[T any] struct {
	id      uuid.UUID
	hub     *Hub[T]
	ch      chan T
	dropped atomic.Uint64
	acked   uint64 // drops already reported to the receiver
	closed  atomic.Bool
}

// Recv blocks until a value arrives, the context is done, or the
// subscription is closed. After the buffer overflowed, the next call returns
// a *domain.LagError exactly once before resuming delivery.
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	if d := s.dropped.Load(); d > s.acked {
		missed := d - s.acked
		s.acked = d
		return zero, &domain.LagError{Missed: missed}
	}
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case v, ok := <-s.ch:
		if !ok {
			return zero, domain.ErrSubscriptionClosed
		}
		return v, nil
	}
}

// Pending returns the number of buffered, unconsumed values.
func (s *Subscription[T]) Pending() int {
	return len(s.ch)
}

// Dropped returns the total number of values lost to overflow.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from its hub. Safe to call more than once.
func (s *Subscription[T]) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	// Publish sends only under the hub read lock, so closing the channel
	// under the write lock cannot race a send.
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	close(s.ch)
	s.hub.mu.Unlock()
	infra.GlobalMetrics.RemoveActiveSubscriber()
}
