package hierarchy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentnet/agentnet/internal/shared"
)

const minPasswordLen = 6

// SubnetBalancer reports the summed balance of an account's descendants.
// Implemented by the ledger query service.
type SubnetBalancer interface {
	SubnetBalance(ctx context.Context, accountID string) (int64, error)
}

// ServiceConfig carries feature toggles for the account service.
type ServiceConfig struct {
	// SignupEnabled allows self-registration of player accounts under the root admin.
	SignupEnabled bool
}

// Service handles account tree business logic.
type Service struct {
	repo   Repository
	authz  *Authorizer
	subnet SubnetBalancer
	cfg    ServiceConfig
}

// NewService builds a Service instance.
func NewService(repo Repository, authz *Authorizer, cfg ServiceConfig) *Service {
	return &Service{repo: repo, authz: authz, cfg: cfg}
}

// SetSubnetBalancer injects the subtree balance provider. Account views
// omit the subnet rollup until one is set.
func (s *Service) SetSubnetBalancer(sb SubnetBalancer) {
	s.subnet = sb
}

// Authorizer exposes the authorization engine for collaborating modules.
func (s *Service) Authorizer() *Authorizer {
	return s.authz
}

// CreateAccountInput carries validated account creation parameters.
type CreateAccountInput struct {
	Username string
	Password string
	Role     Role
}

// CreateAccount creates a new account as a direct child of the actor.
// The capability matrix gates which roles the actor may create (root
// admin excepted) and the forest invariant requires the parent to
// strictly outrank the child.
func (s *Service) CreateAccount(ctx context.Context, actor *Account, input CreateAccountInput) (*Account, error) {
	username := normalizeUsername(input.Username)
	if len(username) < 4 {
		return nil, shared.NewValidationError("username", "username must be at least 4 characters long")
	}
	if len(input.Password) < minPasswordLen {
		return nil, shared.NewValidationError("password", "password must be at least 6 characters long")
	}
	if !input.Role.Valid() {
		return nil, shared.NewValidationError("role", "unknown role")
	}

	if !actor.IsRoot() && !CanTarget(actor.Role, ActionCreate, input.Role) {
		return nil, fmt.Errorf("%s may not create %s: %w", actor.Role, input.Role, shared.ErrRoleNotPermitted)
	}
	if !actor.Role.Outranks(input.Role) {
		return nil, fmt.Errorf("%s under %s: %w", input.Role, actor.Role, shared.ErrInvalidHierarchy)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &Account{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         input.Role,
		ParentID:     &actor.ID,
		Balance:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Signup self-registers a player account under the root admin. Guarded
// by the SignupEnabled toggle; disabled deployments only grow the tree
// through CreateAccount.
func (s *Service) Signup(ctx context.Context, username, password string) (*Account, error) {
	if !s.cfg.SignupEnabled {
		return nil, fmt.Errorf("signup disabled: %w", shared.ErrRoleNotPermitted)
	}
	root, err := s.repo.Root(ctx)
	if err != nil {
		return nil, err
	}
	return s.CreateAccount(ctx, root, CreateAccountInput{Username: username, Password: password, Role: RolePlayer})
}

// ParentSummary identifies an account's parent in views.
type ParentSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AccountView is the externally visible projection of an account. It
// never includes the credential hash.
type AccountView struct {
	ID         string         `json:"id"`
	Username   string         `json:"username"`
	Role       string         `json:"role"`
	Parent     *ParentSummary `json:"parent,omitempty"`
	Balance    int64          `json:"balance"`
	Subnet     *int64         `json:"subnet,omitempty"`
	LastAccess *time.Time     `json:"lastAccess,omitempty"`
}

// GetAccount returns the view of an account. Actors may always view
// themselves; anything else requires transitive view authorization.
func (s *Service) GetAccount(ctx context.Context, actor *Account, id string) (*AccountView, error) {
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != target.ID {
		if err := s.authz.Authorize(ctx, actor, target, ActionView); err != nil {
			return nil, err
		}
	}
	return s.buildView(ctx, target)
}

func (s *Service) buildView(ctx context.Context, account *Account) (*AccountView, error) {
	view := &AccountView{
		ID:         account.ID,
		Username:   account.Username,
		Role:       account.Role.String(),
		Balance:    account.Balance,
		LastAccess: account.LastAccess,
	}
	if account.ParentID != nil {
		parent, err := s.repo.Get(ctx, *account.ParentID)
		if err == nil {
			view.Parent = &ParentSummary{ID: parent.ID, Username: parent.Username}
		}
	}
	// Leaf players hold no subtree and the admin's rollup spans the
	// entire population; neither is a useful subnet figure.
	if s.subnet != nil && account.Role != RolePlayer && account.Role != RoleAdmin {
		sum, err := s.subnet.SubnetBalance(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		view.Subnet = &sum
	}
	return view, nil
}

// SubnetOf returns the summed balance of the target's descendants,
// excluding the target itself. Zero for accounts with no descendants.
// Actors may query themselves; anything else needs view authorization.
func (s *Service) SubnetOf(ctx context.Context, actor *Account, id string) (int64, error) {
	if s.subnet == nil {
		return 0, fmt.Errorf("subnet balancer not configured: %w", shared.ErrStoreUnavailable)
	}
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if actor.ID != target.ID {
		if err := s.authz.Authorize(ctx, actor, target, ActionView); err != nil {
			return 0, err
		}
	}
	return s.subnet.SubnetBalance(ctx, target.ID)
}

// SearchParams filters subtree account searches.
type SearchParams struct {
	Role     Role
	Username string
	Page     int
	PerPage  int
}

// SearchResult is a paginated account listing.
type SearchResult struct {
	Accounts   []AccountView     `json:"accounts"`
	Pagination shared.Pagination `json:"pagination"`
}

// Search lists accounts of a role within the actor's subtree, optionally
// filtered by username substring. Pagination is clamped.
func (s *Service) Search(ctx context.Context, actor *Account, params SearchParams) (*SearchResult, error) {
	if !actor.IsRoot() && !CanTarget(actor.Role, ActionView, params.Role) {
		return nil, fmt.Errorf("%s may not view %s: %w", actor.Role, params.Role, shared.ErrRoleNotPermitted)
	}

	descendants, err := Descendants(ctx, s.repo, actor.ID)
	if err != nil {
		return nil, err
	}

	needle := normalizeUsername(params.Username)
	var matched []Account
	for _, acc := range descendants {
		if acc.Role != params.Role {
			continue
		}
		if needle != "" && !strings.Contains(acc.Username, needle) {
			continue
		}
		matched = append(matched, acc)
	}

	pagination := shared.NewPagination(params.Page, params.PerPage, len(matched))
	start := pagination.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pagination.PerPage
	if end > len(matched) {
		end = len(matched)
	}

	views := make([]AccountView, 0, end-start)
	for _, acc := range matched[start:end] {
		view, err := s.buildView(ctx, &acc)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return &SearchResult{Accounts: views, Pagination: pagination}, nil
}

// RoleCount pairs a role with the number of visible accounts holding it.
type RoleCount struct {
	Role  string `json:"role"`
	Count int    `json:"count"`
}

// RoleStats counts the actor's visible descendants per role, in
// privilege order. Roles outside the actor's view capability are omitted.
func (s *Service) RoleStats(ctx context.Context, actor *Account) ([]RoleCount, error) {
	descendants, err := Descendants(ctx, s.repo, actor.ID)
	if err != nil {
		return nil, err
	}

	counts := [roleCount]int{}
	for _, acc := range descendants {
		counts[acc.Role]++
	}

	var out []RoleCount
	for _, role := range Roles() {
		if !actor.IsRoot() && !CanTarget(actor.Role, ActionView, role) {
			continue
		}
		out = append(out, RoleCount{Role: role.String(), Count: counts[role]})
	}
	return out, nil
}

// ResetPassword replaces a target account's credential. The capability
// matrix plus direct-child confinement applies; the root admin may reset
// anyone.
func (s *Service) ResetPassword(ctx context.Context, actor *Account, targetID, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return shared.NewValidationError("newPassword", "password must be at least 6 characters long")
	}
	target, err := s.repo.Get(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, actor, target, ActionResetPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(ctx, target.ID, string(hash))
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
