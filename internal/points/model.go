package points

import "time"

// EntryType classifies a ledger entry
type EntryType string

const (
	EntryEarn                EntryType = "earn"
	EntryRedeem              EntryType = "redeem"
	EntryBadgeReward         EntryType = "badge_reward"
	EntryMukandoContribution EntryType = "mukando_contribution"
	EntryMukandoPayout       EntryType = "mukando_payout"
)

// Entry is one append-only row of a customer's point history. Amount is
// signed: debits are negative, credits positive.
type Entry struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	BusinessID *int64    `json:"business_id,omitempty"`
	Type       EntryType `json:"type"`
	Amount     int64     `json:"amount"`
	GroupID    *int64    `json:"group_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
