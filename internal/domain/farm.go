package domain

import "context"

// Farm is the slice of the farm directory this service needs: existence
// and ownership. The marketplace owns the rest of the farm record.
type Farm struct {
	ID      int64  `json:"farmId"`
	Name    string `json:"name"`
	OwnerID int64  `json:"ownerId"`
}

// FarmDirectory resolves farms for room-creation validation.
type FarmDirectory interface {
	GetByID(ctx context.Context, id int64) (*Farm, error)
}
