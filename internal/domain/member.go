package domain

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Member is a platform account: a buyer, or a farmer who owns farms.
type Member struct {
	ID           int64     `json:"memberId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MemberDirectory resolves members by id for participant validation.
type MemberDirectory interface {
	GetByID(ctx context.Context, id int64) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
}
