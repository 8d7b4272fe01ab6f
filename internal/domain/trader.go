package domain

// TraderAccount is the decoded fixed-layout trading account of the
// configured authority. A fresh copy is produced on every decode.
type TraderAccount struct {
	Authority     Address
	BaseDeposits  uint64
	QuoteDeposits uint64
	BaseBorrows   uint64
	QuoteBorrows  uint64
	UpdatedSlot   uint64
}

// OpenOrders is the decoded per-market open-orders account. Many such
// accounts share one shape; updates are tagged with the account address so
// subscribers can discriminate.
type OpenOrders struct {
	Market     Address
	Owner      Address
	BaseTotal  uint64
	BaseFree   uint64
	QuoteTotal uint64
	QuoteFree  uint64
}

// BaseLocked returns the base amount committed to resting orders.
func (o *OpenOrders) BaseLocked() uint64 {
	return o.BaseTotal - o.BaseFree
}

// QuoteLocked returns the quote amount committed to resting orders.
func (o *OpenOrders) QuoteLocked() uint64 {
	return o.QuoteTotal - o.QuoteFree
}
