package postgres

import (
	"context"
	"database/sql"

	"eum-chat/internal/domain"
)

// FarmRepository implements domain.FarmDirectory for PostgreSQL.
// Read-only: chat only needs farm existence and ownership.
type FarmRepository struct {
	db *sql.DB
}

// NewFarmRepository creates a new PostgreSQL farm repository.
func NewFarmRepository(db *sql.DB) *FarmRepository {
	return &FarmRepository{db: db}
}

// GetByID retrieves a farm by id.
func (r *FarmRepository) GetByID(ctx context.Context, id int64) (*domain.Farm, error) {
	query := `
		SELECT id, name, owner_id
		FROM farms
		WHERE id = $1
	`
	farm := &domain.Farm{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&farm.ID,
		&farm.Name,
		&farm.OwnerID,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrFarmNotFound
	}
	return farm, err
}
