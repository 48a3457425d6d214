package points

// BalanceResponse represents the caller's point balance
type BalanceResponse struct {
	CustomerID int64 `json:"customer_id"`
	Points     int64 `json:"points"`
}

// EntryResponse represents one ledger entry
type EntryResponse struct {
	ID         int64     `json:"id"`
	Type       EntryType `json:"type"`
	Amount     int64     `json:"amount"`
	BusinessID *int64    `json:"business_id,omitempty"`
	GroupID    *int64    `json:"group_id,omitempty"`
	CreatedAt  string    `json:"created_at"`
}

// ToResponse converts an Entry model to an EntryResponse DTO
func (e *Entry) ToResponse() *EntryResponse {
	return &EntryResponse{
		ID:         e.ID,
		Type:       e.Type,
		Amount:     e.Amount,
		BusinessID: e.BusinessID,
		GroupID:    e.GroupID,
		CreatedAt:  e.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
