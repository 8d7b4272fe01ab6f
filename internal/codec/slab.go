// Package codec decodes the fixed binary layouts of the on-ledger program:
// the critbit-slab order-book pages and the flat account structs. All
// decoders are pure functions over a byte page; they hold no state and
// re-parse from scratch on every call, which keeps them trivially correct
// under arbitrarily interleaved updates.
package codec

import (
	"encoding/binary"
	"fmt"

	"chain_sync/internal/domain"
)

// Side selects which half of a book a page encodes.
type Side int

const (
	Bid Side = iota
	Ask
)

// String returns the side name for log output.
func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// DefaultDepth is the maximum number of price levels a decode returns.
const DefaultDepth = 25

// Account pages are framed with fixed padding the program never interprets.
const (
	headPadding      = 5
	tailPadding      = 7
	discriminatorLen = 8
)

// Slab wire layout: a 32-byte header followed by a flat array of 72-byte
// node records. Node tag is a little-endian u32 at offset 0 of each record.
const (
	slabHeaderLen = 32
	nodeSize      = 72

	tagUninitialized = 0
	tagInner         = 1
	tagLeaf          = 2
	tagFree          = 3
	tagLastFree      = 4
)

type slabHeader struct {
	bumpIndex    uint64
	freeListLen  uint64
	freeListHead uint32
	root         uint32
	leafCount    uint64
}

// Slab is a parsed critbit-tree page encoding one side of an order book.
// The node region is kept raw; records are read on demand during traversal.
type Slab struct {
	header slabHeader
	nodes  []byte
}

func slabError(format string, args ...any) error {
	return &domain.DecodeError{Layout: "slab", Reason: fmt.Sprintf(format, args...)}
}

// NewSlab parses a slab from its own bytes: header plus node array, with
// the account framing already stripped.
func NewSlab(data []byte) (*Slab, error) {
	if len(data) < slabHeaderLen {
		return nil, slabError("page truncated: %d bytes, header needs %d", len(data), slabHeaderLen)
	}
	h := slabHeader{
		bumpIndex:    binary.LittleEndian.Uint64(data[0:8]),
		freeListLen:  binary.LittleEndian.Uint64(data[8:16]),
		freeListHead: binary.LittleEndian.Uint32(data[16:20]),
		root:         binary.LittleEndian.Uint32(data[20:24]),
		leafCount:    binary.LittleEndian.Uint64(data[24:32]),
	}
	nodes := data[slabHeaderLen:]
	if uint64(len(nodes)/nodeSize) < h.bumpIndex {
		return nil, slabError("page truncated: bump index %d, only %d node records", h.bumpIndex, len(nodes)/nodeSize)
	}
	return &Slab{header: h, nodes: nodes}, nil
}

// ParseOrderBookPage strips the account framing (head padding, program
// discriminator, tail padding) and parses the slab inside.
func ParseOrderBookPage(raw []byte) (*Slab, error) {
	minLen := headPadding + discriminatorLen + slabHeaderLen + tailPadding
	if len(raw) < minLen {
		return nil, slabError("account page truncated: %d bytes, need at least %d", len(raw), minLen)
	}
	body := raw[headPadding : len(raw)-tailPadding]
	return NewSlab(body[discriminatorLen:])
}

// LeafCount returns the number of resting orders the page claims to hold.
func (s *Slab) LeafCount() uint64 {
	return s.header.leafCount
}

func (s *Slab) node(idx uint32) ([]byte, error) {
	if uint64(idx) >= s.header.bumpIndex {
		return nil, slabError("node index %d out of range (bump index %d)", idx, s.header.bumpIndex)
	}
	off := int(idx) * nodeSize
	return s.nodes[off : off+nodeSize], nil
}

// GetDepth walks the tree and returns up to depth price levels in price
// order: descending for bids, ascending for asks. Prices and quantities are
// scaled from raw lot counts by the market's lot sizes. The walk is
// iterative; a malformed page surfaces a typed decode error, never a panic.
func (s *Slab) GetDepth(depth int, priceLotSize, coinLotSize uint64, side Side) ([]domain.PriceLevel, error) {
	if depth < 0 {
		depth = 0
	}
	levels := make([]domain.PriceLevel, 0, depth)
	if s.header.leafCount == 0 {
		return levels, nil
	}

	stack := make([]uint32, 0, 64)
	stack = append(stack, s.header.root)

	for len(stack) > 0 && len(levels) < depth {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := s.node(idx)
		if err != nil {
			return nil, err
		}

		switch tag := binary.LittleEndian.Uint32(n[0:4]); tag {
		case tagInner:
			left := binary.LittleEndian.Uint32(n[24:28])
			right := binary.LittleEndian.Uint32(n[28:32])
			// Push the far child first so the near child is visited next:
			// asks walk low keys first, bids walk high keys first.
			if side == Ask {
				stack = append(stack, right, left)
			} else {
				stack = append(stack, left, right)
			}
		case tagLeaf:
			keyLo := binary.LittleEndian.Uint64(n[8:16])
			keyHi := binary.LittleEndian.Uint64(n[16:24])
			qtyLots := binary.LittleEndian.Uint64(n[56:64])
			clientID := binary.LittleEndian.Uint64(n[64:72])
			levels = append(levels, domain.PriceLevel{
				OrderID:       domain.OrderID{Hi: keyHi, Lo: keyLo},
				ClientOrderID: clientID,
				Price:         keyHi * priceLotSize,
				Quantity:      qtyLots * coinLotSize,
			})
		case tagUninitialized, tagFree, tagLastFree:
			return nil, slabError("unexpected tag %d at node %d during traversal", tag, idx)
		default:
			return nil, slabError("unknown node tag %d at node %d", tag, idx)
		}
	}

	return levels, nil
}

// DecodeSide parses a raw order-book account page and returns its price
// levels for one side, capped at depth.
func DecodeSide(raw []byte, side Side, priceLotSize, coinLotSize uint64, depth int) ([]domain.PriceLevel, error) {
	slab, err := ParseOrderBookPage(raw)
	if err != nil {
		return nil, err
	}
	return slab.GetDepth(depth, priceLotSize, coinLotSize, side)
}
