package service

import (
	"context"
	"time"

	"eum-chat/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 24 * time.Hour

// AuthService resolves the current caller from a session token and
// issues sessions on login. It is the concrete identity provider behind
// the chat gateway's Unauthenticated checks.
type AuthService struct {
	members     domain.MemberDirectory
	sessionRepo domain.SessionRepository
}

func NewAuthService(members domain.MemberDirectory, sessionRepo domain.SessionRepository) *AuthService {
	return &AuthService{
		members:     members,
		sessionRepo: sessionRepo,
	}
}

// Login verifies credentials and creates a session with an opaque token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Session, *domain.Member, error) {
	member, err := s.members.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(member.PasswordHash), []byte(password),
	); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	session := &domain.Session{
		MemberID:  member.ID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(sessionTTL),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, nil, err
	}

	return session, member, nil
}

// Logout deletes the session for the given token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessionRepo.Delete(ctx, token)
}

// ValidateSession resolves a session token to a live session.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*domain.Session, error) {
	return s.sessionRepo.GetByToken(ctx, token)
}

// GetMemberByID fetches a member from the directory.
func (s *AuthService) GetMemberByID(ctx context.Context, id int64) (*domain.Member, error) {
	return s.members.GetByID(ctx, id)
}
