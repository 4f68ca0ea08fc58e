package postgres

import (
	"context"
	"database/sql"

	"eum-chat/internal/domain"
)

// MemberRepository implements domain.MemberDirectory for PostgreSQL. The
// chat service only reads the member directory; account management lives
// elsewhere in the platform.
type MemberRepository struct {
	db *sql.DB
}

// NewMemberRepository creates a new PostgreSQL member repository.
func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// GetByID retrieves a member by id.
func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*domain.Member, error) {
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM members
		WHERE id = $1
	`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a member by email, used by login.
func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM members
		WHERE email = $1
	`
	return r.scan(r.db.QueryRowContext(ctx, query, email))
}

func (r *MemberRepository) scan(row *sql.Row) (*domain.Member, error) {
	member := &domain.Member{}
	err := row.Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.PasswordHash,
		&member.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrMemberNotFound
	}
	return member, err
}
