package hierarchy

import (
	"context"
	"sync"
	"time"

	"github.com/agentnet/agentnet/internal/shared"
)

// memoryRepo is an in-memory Repository for tests.
type memoryRepo struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[string]*Account)}
}

func (r *memoryRepo) add(account Account) *Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	r.accounts[account.ID] = &account
	return &account
}

func (r *memoryRepo) Get(ctx context.Context, id string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (r *memoryRepo) GetByUsername(ctx context.Context, username string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if acc.Username == username {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) Root(ctx context.Context) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if acc.ParentID == nil && acc.Role == RoleAdmin {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) Create(ctx context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if acc.Username == account.Username {
			return shared.ErrDuplicateIdentity
		}
	}
	if account.ParentID != nil {
		if _, ok := r.accounts[*account.ParentID]; !ok {
			return shared.ErrInvalidHierarchy
		}
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *memoryRepo) Children(ctx context.Context, parentIDs []string) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	parents := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = true
	}
	var out []Account
	for _, acc := range r.accounts {
		if acc.ParentID != nil && parents[*acc.ParentID] {
			out = append(out, *acc)
		}
	}
	return out, nil
}

func (r *memoryRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.PasswordHash = hash
	return nil
}

func (r *memoryRepo) TouchLastAccess(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.LastAccess = &at
	return nil
}

var _ Repository = (*memoryRepo)(nil)

// seedTree builds admin -> m1 -> c1 -> s1 -> a1 -> p1 plus a sibling
// player p2 under a1 and a detached branch m2 -> c2.
func seedTree(repo *memoryRepo) map[string]*Account {
	out := make(map[string]*Account)
	add := func(id string, role Role, parent *Account, balance int64) *Account {
		acc := Account{ID: id, Username: id, Role: role, Balance: balance}
		if parent != nil {
			acc.ParentID = &parent.ID
		}
		out[id] = repo.add(acc)
		return out[id]
	}
	admin := add("admin", RoleAdmin, nil, 1_000_000)
	m1 := add("m1", RoleManager, admin, 0)
	c1 := add("c1", RoleCityManager, m1, 0)
	s1 := add("s1", RoleSuperAgent, c1, 0)
	a1 := add("a1", RoleAgent, s1, 0)
	add("p1", RolePlayer, a1, 0)
	add("p2", RolePlayer, a1, 0)
	m2 := add("m2", RoleManager, admin, 0)
	add("c2", RoleCityManager, m2, 0)
	return out
}
