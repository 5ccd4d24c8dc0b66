package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentnet/agentnet/internal/hierarchy"
	"github.com/agentnet/agentnet/internal/shared"
)

// memoryStore backs both the account tree and the ledger in tests, with
// the same atomicity contract as the database repositories.
type memoryStore struct {
	mu           sync.Mutex
	accounts     map[string]*hierarchy.Account
	transactions []Transaction
	seq          int64
	clock        time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts: make(map[string]*hierarchy.Account),
		clock:    time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memoryStore) add(account hierarchy.Account) *hierarchy.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = &account
	return &account
}

func (s *memoryStore) balance(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].Balance
}

func (s *memoryStore) totalBalance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, acc := range s.accounts {
		sum += acc.Balance
	}
	return sum
}

func (s *memoryStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

// hierarchy.Repository

func (s *memoryStore) Get(ctx context.Context, id string) (*hierarchy.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *memoryStore) GetByUsername(ctx context.Context, username string) (*hierarchy.Account, error) {
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

func (s *memoryStore) Root(ctx context.Context) (*hierarchy.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.ParentID == nil && acc.Role == hierarchy.RoleAdmin {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *memoryStore) Create(ctx context.Context, account *hierarchy.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.Username == account.Username {
			return shared.ErrDuplicateIdentity
		}
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *memoryStore) Children(ctx context.Context, parentIDs []string) ([]hierarchy.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parents := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = true
	}
	var out []hierarchy.Account
	for _, acc := range s.accounts {
		if acc.ParentID != nil && parents[*acc.ParentID] {
			out = append(out, *acc)
		}
	}
	return out, nil
}

func (s *memoryStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.PasswordHash = hash
	return nil
}

func (s *memoryStore) TouchLastAccess(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.LastAccess = &at
	return nil
}

// ledger.Repository

func (s *memoryStore) Transfer(ctx context.Context, txn *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.accounts[txn.FromID]
	if !ok {
		return shared.ErrNotFound
	}
	if from.Balance < txn.Amount {
		return shared.ErrInsufficientFunds
	}
	to, ok := s.accounts[txn.ToID]
	if !ok {
		return shared.ErrNotFound
	}

	from.Balance -= txn.Amount
	to.Balance += txn.Amount

	s.seq++
	s.clock = s.clock.Add(time.Second)
	txn.CreatedAt = s.clock
	s.transactions = append(s.transactions, *txn)
	return nil
}

func (s *memoryStore) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := make(map[string]bool, len(filter.AccountIDs))
	for _, id := range filter.AccountIDs {
		scope[id] = true
	}

	var matched []Transaction
	for _, txn := range s.transactions {
		if len(scope) > 0 && !scope[txn.FromID] && !scope[txn.ToID] {
			continue
		}
		if filter.FromDate != nil && txn.CreatedAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && txn.CreatedAt.After(*filter.ToDate) {
			continue
		}
		if filter.Kind != "" && txn.Kind != filter.Kind {
			continue
		}
		matched = append(matched, txn)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return strings.Compare(matched[i].ID, matched[j].ID) > 0
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}
	return matched[start:end], total, nil
}

var (
	_ hierarchy.Repository = (*memoryStore)(nil)
	_ Repository           = (*memoryStore)(nil)
)

// seedTree builds admin -> m1 -> c1 -> s1 -> a1 -> {p1, p2} plus a
// detached branch admin -> m2 -> c2. The admin carries the treasury.
func seedTree(store *memoryStore) map[string]*hierarchy.Account {
	out := make(map[string]*hierarchy.Account)
	add := func(id string, role hierarchy.Role, parent *hierarchy.Account, balance int64) *hierarchy.Account {
		acc := hierarchy.Account{ID: id, Username: id, Role: role, Balance: balance}
		if parent != nil {
			acc.ParentID = &parent.ID
		}
		out[id] = store.add(acc)
		return out[id]
	}
	admin := add("admin", hierarchy.RoleAdmin, nil, 1_000_000)
	m1 := add("m1", hierarchy.RoleManager, admin, 500)
	c1 := add("c1", hierarchy.RoleCityManager, m1, 100)
	s1 := add("s1", hierarchy.RoleSuperAgent, c1, 0)
	a1 := add("a1", hierarchy.RoleAgent, s1, 0)
	add("p1", hierarchy.RolePlayer, a1, 0)
	add("p2", hierarchy.RolePlayer, a1, 0)
	m2 := add("m2", hierarchy.RoleManager, admin, 0)
	add("c2", hierarchy.RoleCityManager, m2, 0)
	return out
}
