package domain

import (
	"testing"
)

func TestDisplayConversions(t *testing.T) {
	m := &Market{
		Name:          "SOL/USDC",
		BaseDecimals:  9,
		QuoteDecimals: 6,
	}

	if got := m.DisplayPrice(1_500_000); got.String() != "1.5" {
		t.Errorf("expected 1.5, got %s", got)
	}
	if got := m.DisplayQuantity(2_000_000_000); got.String() != "2" {
		t.Errorf("expected 2, got %s", got)
	}
	if got := m.DisplayPrice(0); !got.IsZero() {
		t.Errorf("expected zero, got %s", got)
	}
}

func TestAccountRecordFingerprint(t *testing.T) {
	a := NewAccountRecord([]byte{1, 2, 3}, 10)
	b := NewAccountRecord([]byte{1, 2, 3}, 20)
	c := NewAccountRecord([]byte{1, 2, 4}, 10)

	// Fingerprint covers the bytes only, never the slot.
	if a.Fingerprint != b.Fingerprint {
		t.Error("identical bytes produced different fingerprints")
	}
	if a.Fingerprint == c.Fingerprint {
		t.Error("different bytes produced the same fingerprint")
	}
}

func TestAccountRecordCopiesData(t *testing.T) {
	data := []byte{1, 2, 3}
	rec := NewAccountRecord(data, 1)
	data[0] = 0xFF
	if rec.Data[0] != 1 {
		t.Error("record shares the caller's buffer")
	}
}

func TestMarketInfoRoundTrip(t *testing.T) {
	addr, _ := ParseAddress("9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT")
	bids, _ := ParseAddress("14ivtgssEBoBjuZJtSAPKYgpUK7DmnSwuPMqJoVTSgKJ")
	asks, _ := ParseAddress("CEQdAFKdycHugujQg9k2wbmxjcpdYZyVLfV9WerTnafJ")

	m := Market{
		Name:          "SOL/USDC",
		Address:       addr,
		Bids:          bids,
		Asks:          asks,
		CoinLotSize:   100000000,
		PriceLotSize:  100,
		BaseDecimals:  9,
		QuoteDecimals: 6,
	}

	info := NewMarketInfo(m)
	if !info.IsActive {
		t.Error("new registry rows must start active")
	}

	back, err := info.ToMarket()
	if err != nil {
		t.Fatalf("to market: %v", err)
	}
	if back != m {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, m)
	}
}
