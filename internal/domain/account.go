package domain

import (
	"github.com/zeebo/blake3"
)

// AccountRecord is one observed snapshot of a ledger account: the raw bytes
// and the slot at which they were fetched. Records are immutable once built
// and are replaced wholesale in the cache — callers must never mutate Data.
type AccountRecord struct {
	Data        []byte
	Slot        uint64
	Fingerprint [32]byte
}

// NewAccountRecord copies data into a fresh record and fingerprints it.
// The fingerprint lets consumers recognize byte-identical re-observations
// cheaply, without comparing whole pages.
func NewAccountRecord(data []byte, slot uint64) *AccountRecord {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &AccountRecord{
		Data:        buf,
		Slot:        slot,
		Fingerprint: blake3.Sum256(buf),
	}
}

// AccountBatch is the positional result of a multi-account fetch.
// Records is index-aligned with the requested addresses; a nil entry means
// the account does not exist on the ledger.
type AccountBatch struct {
	Slot    uint64
	Records []*AccountRecord
}
