package services

import (
	"context"
	"errors"
	"time"

	"marketplace-api/apperrors"
	"marketplace-api/models"

	"golang.org/x/crypto/bcrypt"
)

var errBadCredentials = apperrors.Unauthorized("invalid email or password")

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type AuthService struct {
	users  UserRepository
	tokens TokenIssuer
}

func NewAuthService(users UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Login checks the password against the stored bcrypt hash and issues a
// bearer token. Unknown emails and wrong passwords look the same.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, errBadCredentials
	}
	if !u.IsActive {
		return nil, apperrors.Forbidden("account is disabled")
	}

	token, exp, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, apperrors.Wrap(err, "issue token")
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}
