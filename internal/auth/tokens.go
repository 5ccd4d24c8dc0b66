// Package auth resolves bearer tokens to accounts. It is the session
// gate in front of the hierarchy and ledger engines; the core never
// parses tokens itself.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/agentnet/agentnet/internal/shared"
)

// TokenStore maps opaque bearer tokens to account IDs in Redis. Expiry
// is enforced by the key TTL; deletion invalidates a token immediately.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue mints a new token for the account.
func (s *TokenStore) Issue(ctx context.Context, accountID string) (string, error) {
	token := uuid.New().String()
	if err := s.client.Set(ctx, tokenKey(token), accountID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: issue token: %w: %v", shared.ErrStoreUnavailable, err)
	}
	return token, nil
}

// Resolve returns the account ID a token maps to, or ErrUnauthenticated
// when the token is absent, expired or revoked.
func (s *TokenStore) Resolve(ctx context.Context, token string) (string, error) {
	accountID, err := s.client.Get(ctx, tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", shared.ErrUnauthenticated
		}
		return "", fmt.Errorf("auth: resolve token: %w: %v", shared.ErrStoreUnavailable, err)
	}
	return accountID, nil
}

// Revoke deletes a token. Revoking an unknown token reports ErrNotFound.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	deleted, err := s.client.Del(ctx, tokenKey(token)).Result()
	if err != nil {
		return fmt.Errorf("auth: revoke token: %w: %v", shared.ErrStoreUnavailable, err)
	}
	if deleted == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TTL exposes the configured token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

func tokenKey(token string) string {
	return "token:" + token
}
