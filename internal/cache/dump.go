package cache

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
)

// DumpRecord is one cached account in a state dump. Data round-trips as
// base64 through encoding/json.
type DumpRecord struct {
	Address     string `json:"address"`
	Slot        uint64 `json:"slot"`
	Fingerprint string `json:"fingerprint"`
	Data        []byte `json:"data"`
}

// DumpFile is the decoded shape of a state dump.
type DumpFile struct {
	CreatedAt time.Time    `json:"created_at"`
	Records   []DumpRecord `json:"records"`
}

// Dump writes a zstd-compressed JSON snapshot of every cached record,
// sorted by address for stable diffs. Used for post-mortem inspection of
// decode failures; synced state is never reloaded from a dump.
func (c *AccountsCache) Dump(w io.Writer) error {
	df := DumpFile{CreatedAt: time.Now()}
	for _, addr := range c.Addresses() {
		rec, ok := c.Get(addr)
		if !ok {
			continue
		}
		df.Records = append(df.Records, DumpRecord{
			Address:     addr.String(),
			Slot:        rec.Slot,
			Fingerprint: hex.EncodeToString(rec.Fingerprint[:]),
			Data:        rec.Data,
		})
	}
	sort.Slice(df.Records, func(i, j int) bool {
		return df.Records[i].Address < df.Records[j].Address
	})

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(zw).Encode(&df); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// DumpToFile writes a state dump to path, creating or truncating it.
func (c *AccountsCache) DumpToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := c.Dump(f); err != nil {
		return err
	}
	c.logger.Info("wrote cache state dump",
		slog.String("path", path),
		slog.Int("accounts", c.Len()),
	)
	return nil
}

// ReadDump decodes a state dump written by Dump.
func ReadDump(r io.Reader) (*DumpFile, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var df DumpFile
	if err := json.NewDecoder(zr).Decode(&df); err != nil {
		return nil, err
	}
	return &df, nil
}
