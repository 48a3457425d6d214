package notification

import "time"

// Notification represents a notification in the system
type Notification struct {
	ID                int64     `json:"id"`
	RecipientID       int64     `json:"recipient_id"`
	Type              Type      `json:"type"`
	Message           string    `json:"message"`
	IsRead            bool      `json:"is_read"`
	RelatedEntityType *string   `json:"related_entity_type,omitempty"` // e.g., "SAVINGS_GROUP"
	RelatedEntityID   *int64    `json:"related_entity_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Type represents the type of notification
type Type string

const (
	TypeGroupApproved  Type = "GROUP_APPROVED"
	TypeGroupDeclined  Type = "GROUP_DECLINED"
	TypePayoutReceived Type = "PAYOUT_RECEIVED"
	TypeGroupCompleted Type = "GROUP_COMPLETED"
)

const entitySavingsGroup = "SAVINGS_GROUP"
