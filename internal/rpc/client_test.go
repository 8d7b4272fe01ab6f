package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chain_sync/internal/domain"
)

func testAddr(b byte) domain.Address {
	var a domain.Address
	a[0] = b
	a[31] = b
	return a
}

// rpcServer answers each JSON-RPC method with a canned result.
func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		result, ok := results[req.Method]
		if !ok {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
	}))
}

func accountJSON(data []byte) string {
	return fmt.Sprintf(`{"data":["%s","base64"],"lamports":1,"owner":"prog"}`, base64.StdEncoding.EncodeToString(data))
}

func TestGetMultipleAccounts(t *testing.T) {
	addrs := []domain.Address{testAddr(1), testAddr(2), testAddr(3)}

	srv := rpcServer(t, map[string]string{
		"getMultipleAccounts": fmt.Sprintf(
			`{"context":{"slot":42},"value":[%s,null,%s]}`,
			accountJSON([]byte{0xAA}), accountJSON([]byte{0xCC, 0xCD}),
		),
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	batch, err := c.GetMultipleAccounts(context.Background(), addrs)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if batch.Slot != 42 {
		t.Errorf("expected slot 42, got %d", batch.Slot)
	}
	if len(batch.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(batch.Records))
	}
	if !bytes.Equal(batch.Records[0].Data, []byte{0xAA}) {
		t.Errorf("record 0 data mismatch: %x", batch.Records[0].Data)
	}
	if batch.Records[1] != nil {
		t.Error("missing account must stay nil in the batch")
	}
	if !bytes.Equal(batch.Records[2].Data, []byte{0xCC, 0xCD}) {
		t.Errorf("record 2 data mismatch: %x", batch.Records[2].Data)
	}
	if batch.Records[0].Slot != 42 {
		t.Errorf("record slot not taken from context: %d", batch.Records[0].Slot)
	}
}

func TestGetMultipleAccountsBatchLimit(t *testing.T) {
	c := NewClient("http://localhost:0", time.Second)
	addrs := make([]domain.Address, MaxBatchSize+1)

	_, err := c.GetMultipleAccounts(context.Background(), addrs)
	if err == nil {
		t.Fatal("expected error for oversized batch")
	}
	if domain.IsRetriable(err) {
		t.Error("oversized batch must not be retriable")
	}
}

func TestGetMultipleAccountsCountMismatch(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getMultipleAccounts": `{"context":{"slot":1},"value":[null]}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.GetMultipleAccounts(context.Background(), []domain.Address{testAddr(1), testAddr(2)})
	if err == nil {
		t.Fatal("expected error for mismatched result count")
	}
}

func TestGetAccountInfo(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getAccountInfo": fmt.Sprintf(`{"context":{"slot":9},"value":%s}`, accountJSON([]byte{1, 2, 3})),
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	rec, err := c.GetAccountInfo(context.Background(), testAddr(1))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(rec.Data, []byte{1, 2, 3}) || rec.Slot != 9 {
		t.Errorf("unexpected record: %x slot=%d", rec.Data, rec.Slot)
	}
}

func TestGetAccountInfoNotFound(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getAccountInfo": `{"context":{"slot":9},"value":null}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.GetAccountInfo(context.Background(), testAddr(1))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNodeErrorIsRetriable(t *testing.T) {
	srv := rpcServer(t, map[string]string{}) // every method answers with an error
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.GetSlot(context.Background())
	if err == nil {
		t.Fatal("expected node error")
	}
	if !domain.IsRetriable(err) {
		t.Error("node-side errors must be retriable")
	}

	var re *domain.RPCError
	if !errors.As(err, &re) {
		t.Fatalf("expected RPCError, got %T", err)
	}
	if re.Op != "getSlot" {
		t.Errorf("expected op getSlot, got %s", re.Op)
	}
}

func TestTransportErrorIsRetriable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
	_, err := c.GetSlot(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !domain.IsRetriable(err) {
		t.Error("transport errors must be retriable")
	}
}

func TestGetLatestBlockhash(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getLatestBlockhash": `{"context":{"slot":77},"value":{"blockhash":"abc123","lastValidBlockHeight":500}}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	hash, slot, err := c.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if hash != "abc123" || slot != 77 {
		t.Errorf("unexpected result: %s, %d", hash, slot)
	}
}

func TestGetSlot(t *testing.T) {
	srv := rpcServer(t, map[string]string{"getSlot": `123456`})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	slot, err := c.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if slot != 123456 {
		t.Errorf("expected slot 123456, got %d", slot)
	}
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, 10*time.Second)
	if _, err := c.GetSlot(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}
