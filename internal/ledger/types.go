package ledger

import (
	"fmt"
	"time"
)

// Persisted keys. The last two belong to the catalog and group manager but are
// cleared by ResetAll together with the ledger's own keys.
const (
	KeyBalance      = "balance"
	KeyTransactions = "transactions"
	KeyBoostExpiry  = "boost-expiry"
	KeyDailyClaims  = "daily-claims"
	KeyDiscountUses = "discount-uses"
	KeyGroups       = "groups"
)

// Keys lists every key owned by or adjacent to the ledger, in reset order.
var Keys = []string{
	KeyBalance,
	KeyTransactions,
	KeyBoostExpiry,
	KeyDailyClaims,
	KeyDiscountUses,
	KeyGroups,
}

// MaxTransactions is the number of history entries retained.
const MaxTransactions = 24

// DefaultBoostDuration is the length of a double-points window.
const DefaultBoostDuration = time.Hour

// Source identifies where earned points came from. Only scan earnings are
// doubled by an active boost.
type Source string

const (
	SourceScan   Source = "scan"
	SourceGame   Source = "game"
	SourceManual Source = "manual"
)

// ParseSource validates a source name. An empty name means SourceManual.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceScan, SourceGame, SourceManual:
		return Source(s), nil
	case "":
		return SourceManual, nil
	default:
		return "", fmt.Errorf("unknown earn source %q", s)
	}
}

func (s Source) defaultReason() string {
	switch s {
	case SourceScan:
		return "QR-Scan"
	case SourceGame:
		return "Game"
	default:
		return "Points added"
	}
}

// TxType is the direction of a transaction.
type TxType string

const (
	TxEarn  TxType = "earn"
	TxSpend TxType = "spend"
)

// Transaction is an immutable history entry.
type Transaction struct {
	ID        string  `json:"id"`
	Type      TxType  `json:"type"`
	Amount    int     `json:"amount"`
	Reason    string  `json:"reason"`
	Key       *string `json:"key"`
	Timestamp string  `json:"timestamp"`
}

// KeyValue returns the redemption key or "" when none was issued.
func (t Transaction) KeyValue() string {
	if t.Key == nil {
		return ""
	}
	return *t.Key
}

// EarnResult describes the outcome of AddPoints.
type EarnResult struct {
	// Applied is false when the amount was rejected (non-positive).
	Applied     bool        `json:"applied"`
	Amount      int         `json:"amount"`
	Boosted     bool        `json:"boosted"`
	Balance     int         `json:"balance"`
	Transaction Transaction `json:"transaction"`
	// Persisted is false when a store write failed.
	Persisted bool `json:"persisted"`
}

// SpendOptions tunes DeductPoints.
type SpendOptions struct {
	IssueKey bool
}

// SpendResult describes the outcome of DeductPoints.
type SpendResult struct {
	Success      bool         `json:"success"`
	Key          string       `json:"key,omitempty"`
	Balance      int          `json:"balance"`
	Insufficient bool         `json:"insufficient,omitempty"`
	Transaction  *Transaction `json:"transaction,omitempty"`
	Persisted    bool         `json:"persisted"`
}

// DailyState tracks once-per-day reward claims.
type DailyState struct {
	Date   string          `json:"date"`
	Claims map[string]bool `json:"claims"`
}
