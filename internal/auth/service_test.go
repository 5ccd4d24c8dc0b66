package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentnet/agentnet/internal/hierarchy"
	"github.com/agentnet/agentnet/internal/shared"
)

// accountStore is a minimal in-memory hierarchy.Repository for auth tests.
type accountStore struct {
	mu       sync.Mutex
	accounts map[string]*hierarchy.Account
}

func newAccountStore() *accountStore {
	return &accountStore{accounts: make(map[string]*hierarchy.Account)}
}

func (s *accountStore) add(id, username, password string, role hierarchy.Role) *hierarchy.Account {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := &hierarchy.Account{ID: id, Username: username, PasswordHash: string(hash), Role: role}
	s.accounts[id] = acc
	return acc
}

func (s *accountStore) Get(ctx context.Context, id string) (*hierarchy.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *accountStore) GetByUsername(ctx context.Context, username string) (*hierarchy.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.Username == username {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *accountStore) Root(ctx context.Context) (*hierarchy.Account, error) {
	return nil, shared.ErrNotFound
}

func (s *accountStore) Create(ctx context.Context, account *hierarchy.Account) error {
	return nil
}

func (s *accountStore) Children(ctx context.Context, parentIDs []string) ([]hierarchy.Account, error) {
	return nil, nil
}

func (s *accountStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return nil
}

func (s *accountStore) TouchLastAccess(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.LastAccess = &at
	return nil
}

var _ hierarchy.Repository = (*accountStore)(nil)

func newTestAuthService(t *testing.T) (*Service, *accountStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	accounts := newAccountStore()
	return NewService(accounts, NewTokenStore(client, time.Hour)), accounts, mr
}

func TestLogin(t *testing.T) {
	svc, accounts, _ := newTestAuthService(t)
	accounts.add("acct-1", "alice", "secret1", hierarchy.RoleAgent)
	ctx := context.Background()

	token, account, err := svc.Login(ctx, "  Alice ", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "acct-1", account.ID)

	// Login stamps last access.
	stored, err := accounts.Get(ctx, "acct-1")
	require.NoError(t, err)
	require.NotNil(t, stored.LastAccess)

	actor, err := svc.ResolveActor(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "acct-1", actor.ID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, accounts, _ := newTestAuthService(t)
	accounts.add("acct-1", "alice", "secret1", hierarchy.RoleAgent)
	ctx := context.Background()

	// Unknown username and wrong password look identical.
	_, _, err := svc.Login(ctx, "nobody", "secret1")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	svc, accounts, _ := newTestAuthService(t)
	accounts.add("acct-1", "alice", "secret1", hierarchy.RoleAgent)
	ctx := context.Background()

	token, _, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))

	_, err = svc.ResolveActor(ctx, token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestResolveActorOrphanedToken(t *testing.T) {
	svc, accounts, _ := newTestAuthService(t)
	accounts.add("acct-1", "alice", "secret1", hierarchy.RoleAgent)
	ctx := context.Background()

	token, _, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	// Token outlives its account.
	accounts.mu.Lock()
	delete(accounts.accounts, "acct-1")
	accounts.mu.Unlock()

	_, err = svc.ResolveActor(ctx, token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "abc",
		"Basic xyz":   "",
		"Bearer":      "",
		"":            "",
		"Bearer a b":  "a b",
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		require.Equal(t, want, BearerToken(r), "header %q", header)
	}
}

func TestRequireActor(t *testing.T) {
	svc, accounts, _ := newTestAuthService(t)
	accounts.add("acct-1", "alice", "secret1", hierarchy.RoleAgent)

	token, _, err := svc.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	var gotActor *hierarchy.Account
	handler := svc.RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = hierarchy.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, gotActor)
	require.Equal(t, "acct-1", gotActor.ID)

	// No token.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token.
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer bogus")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
