package points

import "context"

// Service handles balance and history queries for customers
type Service struct {
	reader Reader
}

// NewService creates a new point service
func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// Balance returns the customer's current balance
func (s *Service) Balance(ctx context.Context, customerID int64) (int64, error) {
	return s.reader.GetBalance(ctx, customerID)
}

// History retrieves the customer's ledger with pagination
func (s *Service) History(ctx context.Context, customerID int64, page, perPage int) ([]*Entry, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	// Unknown customers get a NotFound rather than an empty page.
	if _, err := s.reader.GetBalance(ctx, customerID); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	return s.reader.ListEntries(ctx, customerID, perPage, offset)
}
