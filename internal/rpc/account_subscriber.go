package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chain_sync/internal/cache"
	"chain_sync/internal/domain"
	"chain_sync/internal/infra"

	"github.com/gorilla/websocket"
)

const (
	maxRetries   = 10
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
)

// AccountSubscriber is the push-based half of the sync layer: it holds a
// websocket to the node, subscribes to every watch-list address and inserts
// each notification into the accounts cache as it arrives. The notification
// channel is best-effort; the poll service remains the correctness backstop,
// so a dropped connection only costs latency while the backoff reconnects.
type AccountSubscriber struct {
	wsURL string
	cache *cache.AccountsCache
	keys  []domain.Address

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *slog.Logger

	// Request id → address while a subscribe is in flight, then
	// node-assigned subscription id → address once confirmed.
	pending map[uint64]domain.Address
	subs    map[uint64]domain.Address
}

// NewAccountSubscriber creates a websocket worker for the given watch-list.
func NewAccountSubscriber(wsURL string, c *cache.AccountsCache, keys []domain.Address) *AccountSubscriber {
	return &AccountSubscriber{
		wsURL:  wsURL,
		cache:  c,
		keys:   keys,
		logger: slog.Default().With("module", "account_subscriber"),
	}
}

// Connect starts the WebSocket connection loop.
func (w *AccountSubscriber) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *AccountSubscriber) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			w.logger.Warn("account feed connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			infra.GlobalMetrics.RecordFeedReconnect()
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *AccountSubscriber) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.pending = make(map[uint64]domain.Address, len(w.keys))
	w.subs = make(map[uint64]domain.Address, len(w.keys))
	w.mu.Unlock()
	infra.GlobalMetrics.SetFeedConnected(true)

	if err := w.subscribeAll(); err != nil {
		w.closeConnection()
		return err
	}

	go w.pingLoop(ctx)
	w.logger.Info("account feed connected", slog.Int("accounts", len(w.keys)))
	return nil
}

type wsRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func (w *AccountSubscriber) subscribeAll() error {
	for i, addr := range w.keys {
		id := uint64(i + 1)
		req := wsRequest{
			Jsonrpc: "2.0",
			ID:      id,
			Method:  "accountSubscribe",
			Params:  []any{addr.String(), encodingParams},
		}
		b, err := json.Marshal(req)
		if err != nil {
			return err
		}
		w.mu.Lock()
		w.pending[id] = addr
		w.mu.Unlock()
		if err := w.threadSafeWrite(websocket.TextMessage, b); err != nil {
			return err
		}
	}
	return nil
}

func (w *AccountSubscriber) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.threadSafeWrite(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (w *AccountSubscriber) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *AccountSubscriber) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Work on a local copy: closeConnection may nil the field from
		// another goroutine between the unlock and the read.
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

// wsEnvelope covers both shapes the node sends: subscribe confirmations
// ({"id":N,"result":subID}) and account notifications.
type wsEnvelope struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *struct {
		Subscription uint64 `json:"subscription"`
		Result       struct {
			Context slotContext  `json:"context"`
			Value   accountValue `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (w *AccountSubscriber) handleMessage(msg []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		w.logger.Warn("unparseable feed message", slog.Any("error", err))
		return
	}

	// Subscribe confirmation: bind the node-assigned subscription id.
	if env.ID != 0 && env.Params == nil {
		var subID uint64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			return
		}
		w.mu.Lock()
		if addr, ok := w.pending[env.ID]; ok {
			w.subs[subID] = addr
			delete(w.pending, env.ID)
		}
		w.mu.Unlock()
		return
	}

	if env.Method != "accountNotification" || env.Params == nil {
		return
	}

	w.mu.RLock()
	addr, ok := w.subs[env.Params.Subscription]
	w.mu.RUnlock()
	if !ok {
		return
	}

	data, err := env.Params.Result.Value.decode()
	if err != nil {
		w.logger.Warn("bad account notification payload", slog.String("address", addr.Short()), slog.Any("error", err))
		return
	}

	rec := domain.NewAccountRecord(data, env.Params.Result.Context.Slot)
	// Stale and no-subscriber conditions are normal here.
	_ = w.cache.Insert(addr, rec)
}

func (w *AccountSubscriber) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
	infra.GlobalMetrics.SetFeedConnected(false)
}

// IsConnected reports whether the feed currently holds a live connection.
func (w *AccountSubscriber) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Disconnect stops the worker and waits for the connection loop to exit.
func (w *AccountSubscriber) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
