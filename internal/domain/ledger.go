package domain

import "time"

// LedgerEntryType tells credits from spends
type LedgerEntryType string

const (
	LedgerCredit LedgerEntryType = "credit"
	LedgerSpend  LedgerEntryType = "spend"
)

// Ledger reasons and idempotent operation names.
const (
	ReasonPurchaseGems = "purchase_gems"
	ReasonExpandWorld  = "expand_world"

	OpCreditGems = "credit_gems"
	OpExpandGems = "expand_gems"
)

// Ledger and idempotency retention.
const (
	LedgerCap     = 1000
	IdempotentTTL = 7 * 24 * time.Hour
)

// LedgerEntry is an immutable record of a currency movement
type LedgerEntry struct {
	ID        string           `json:"id"`
	Type      LedgerEntryType  `json:"type"`
	Reason    string           `json:"reason"`
	Delta     map[string]int64 `json:"delta"`
	Meta      map[string]any   `json:"meta"`
	Timestamp float64          `json:"ts"`
}

// Receipt is the cached first response of an idempotent operation
type Receipt struct {
	Op    string
	Token string
	Body  []byte
	TTL   time.Duration
}
