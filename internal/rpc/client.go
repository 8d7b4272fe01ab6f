package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"chain_sync/internal/domain"
)

// MaxBatchSize is the node-side limit on addresses per multi-account fetch.
const MaxBatchSize = 100

// Client is a JSON-RPC 2.0 client for a ledger node (Boundary Layer).
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	nextID     atomic.Uint64
}

// NewClient creates a new ledger RPC client.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "rpc_client"),
	}
}

type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorBody   `json:"error"`
}

// call performs one JSON-RPC request and unmarshals the result into out.
// All transport and node-side failures come back as retriable RPCErrors.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return domain.NewFatalRPCError(method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.NewFatalRPCError(method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewRPCError(method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NewRPCError(method, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewRPCError(method, err)
	}

	var rr rpcResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return domain.NewRPCError(method, err)
	}
	if rr.Error != nil {
		return domain.NewRPCError(method, fmt.Errorf("node error %d: %s", rr.Error.Code, rr.Error.Message))
	}

	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return domain.NewRPCError(method, err)
		}
	}
	return nil
}

// Wire shapes shared by the account-fetch methods.
type slotContext struct {
	Slot uint64 `json:"slot"`
}

type accountValue struct {
	// Data is a [payload, encoding] pair; payload is base64.
	Data     []string `json:"data"`
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
}

func (v *accountValue) decode() ([]byte, error) {
	if len(v.Data) == 0 {
		return nil, fmt.Errorf("account data missing")
	}
	return base64.StdEncoding.DecodeString(v.Data[0])
}

var encodingParams = map[string]string{"encoding": "base64", "commitment": "confirmed"}

// GetMultipleAccounts fetches up to MaxBatchSize accounts in one call. The
// returned batch is index-aligned with addrs; missing accounts are nil.
func (c *Client) GetMultipleAccounts(ctx context.Context, addrs []domain.Address) (*domain.AccountBatch, error) {
	const method = "getMultipleAccounts"
	if len(addrs) > MaxBatchSize {
		return nil, domain.NewFatalRPCError(method, fmt.Errorf("%d addresses exceeds batch limit %d", len(addrs), MaxBatchSize))
	}

	keys := make([]string, len(addrs))
	for i, a := range addrs {
		keys[i] = a.String()
	}

	var out struct {
		Context slotContext     `json:"context"`
		Value   []*accountValue `json:"value"`
	}
	if err := c.call(ctx, method, []any{keys, encodingParams}, &out); err != nil {
		return nil, err
	}
	if len(out.Value) != len(addrs) {
		return nil, domain.NewRPCError(method, fmt.Errorf("expected %d results, got %d", len(addrs), len(out.Value)))
	}

	batch := &domain.AccountBatch{
		Slot:    out.Context.Slot,
		Records: make([]*domain.AccountRecord, len(addrs)),
	}
	for i, v := range out.Value {
		if v == nil {
			continue
		}
		data, err := v.decode()
		if err != nil {
			return nil, domain.NewRPCError(method, fmt.Errorf("account %s: %w", addrs[i].Short(), err))
		}
		batch.Records[i] = domain.NewAccountRecord(data, out.Context.Slot)
	}
	return batch, nil
}

// GetAccountInfo fetches a single account. Returns ErrNotFound when the
// address has no account on the ledger.
func (c *Client) GetAccountInfo(ctx context.Context, addr domain.Address) (*domain.AccountRecord, error) {
	const method = "getAccountInfo"

	var out struct {
		Context slotContext   `json:"context"`
		Value   *accountValue `json:"value"`
	}
	if err := c.call(ctx, method, []any{addr.String(), encodingParams}, &out); err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, domain.ErrNotFound
	}
	data, err := out.Value.decode()
	if err != nil {
		return nil, domain.NewRPCError(method, err)
	}
	return domain.NewAccountRecord(data, out.Context.Slot), nil
}

// GetLatestBlockhash returns the most recent block hash and its slot.
func (c *Client) GetLatestBlockhash(ctx context.Context) (string, uint64, error) {
	var out struct {
		Context slotContext `json:"context"`
		Value   struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []any{map[string]string{"commitment": "confirmed"}}, &out); err != nil {
		return "", 0, err
	}
	return out.Value.Blockhash, out.Context.Slot, nil
}

// GetSlot returns the node's current slot.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}
