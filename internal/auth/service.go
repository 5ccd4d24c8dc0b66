package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/agentnet/agentnet/internal/hierarchy"
	"github.com/agentnet/agentnet/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	accounts hierarchy.Repository
	tokens   *TokenStore
}

// NewService constructs a new Service.
func NewService(accounts hierarchy.Repository, tokens *TokenStore) *Service {
	return &Service{accounts: accounts, tokens: tokens}
}

// Login validates credentials, stamps last access and issues a token.
// Unknown username and wrong password are indistinguishable to callers.
func (s *Service) Login(ctx context.Context, username, password string) (string, *hierarchy.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", nil, shared.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, shared.ErrInvalidCredentials
	}

	if err := s.accounts.TouchLastAccess(ctx, account.ID, time.Now().UTC()); err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(ctx, account.ID)
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}

// Logout revokes the given token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// ResolveActor maps a bearer token to the full account record.
func (s *Service) ResolveActor(ctx context.Context, token string) (*hierarchy.Account, error) {
	accountID, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Token outlived its account.
			return nil, shared.ErrUnauthenticated
		}
		return nil, err
	}
	return account, nil
}
