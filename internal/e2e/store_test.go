package e2e

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/agentnet/agentnet/internal/hierarchy"
	"github.com/agentnet/agentnet/internal/ledger"
	"github.com/agentnet/agentnet/internal/shared"
)

// store backs the full stack in-memory with the same contract as the
// PostgreSQL repositories.
type store struct {
	mu           sync.Mutex
	accounts     map[string]*hierarchy.Account
	transactions []ledger.Transaction
}

func newStore() *store {
	return &store{accounts: make(map[string]*hierarchy.Account)}
}

func (s *store) seedRoot(username, password string, treasury int64) *hierarchy.Account {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	acc := &hierarchy.Account{
		ID:           "root",
		Username:     username,
		PasswordHash: string(hash),
		Role:         hierarchy.RoleAdmin,
		Balance:      treasury,
		CreatedAt:    time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.ID] = acc
	return acc
}

func (s *store) Get(ctx context.Context, id string) (*hierarchy.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *store) GetByUsername(ctx context.Context, username string) (*hierarchy.Account, error) {
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

func (s *store) Root(ctx context.Context) (*hierarchy.Account, error) {
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

func (s *store) Create(ctx context.Context, account *hierarchy.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.Username == account.Username {
			return shared.ErrDuplicateIdentity
		}
	}
	if account.ParentID != nil {
		if _, ok := s.accounts[*account.ParentID]; !ok {
			return shared.ErrInvalidHierarchy
		}
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *store) Children(ctx context.Context, parentIDs []string) ([]hierarchy.Account, error) {
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

func (s *store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.PasswordHash = hash
	return nil
}

func (s *store) TouchLastAccess(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.LastAccess = &at
	return nil
}

func (s *store) Transfer(ctx context.Context, txn *ledger.Transaction) error {
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
	txn.CreatedAt = time.Now().UTC().Add(time.Duration(len(s.transactions)) * time.Millisecond)
	s.transactions = append(s.transactions, *txn)
	return nil
}

func (s *store) List(ctx context.Context, filter ledger.ListFilter) ([]ledger.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := make(map[string]bool, len(filter.AccountIDs))
	for _, id := range filter.AccountIDs {
		scope[id] = true
	}

	var matched []ledger.Transaction
	// Records are appended oldest first; walk backwards for newest first.
	for i := len(s.transactions) - 1; i >= 0; i-- {
		txn := s.transactions[i]
		if len(scope) > 0 && !scope[txn.FromID] && !scope[txn.ToID] {
			continue
		}
		if filter.Kind != "" && txn.Kind != filter.Kind {
			continue
		}
		matched = append(matched, txn)
	}

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
	_ hierarchy.Repository = (*store)(nil)
	_ ledger.Repository    = (*store)(nil)
)
