package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentnet/agentnet/internal/hierarchy"
	"github.com/agentnet/agentnet/internal/shared"
)

// subnetCacheTTL bounds the staleness of cached subtree rollups.
// Reporting tolerates slightly stale balances; mutations never read
// through this cache.
const subnetCacheTTL = time.Minute

// HistoryOptions filters paginated transaction listings.
type HistoryOptions struct {
	Page     int
	PerPage  int
	FromDate *time.Time
	ToDate   *time.Time
	Kind     Kind
}

// Page is a paginated transaction listing, newest first.
type Page struct {
	Transactions []Transaction     `json:"transactions"`
	Pagination   shared.Pagination `json:"pagination"`
}

// QueryService serves filtered transaction history and subtree balance
// rollups. Read-only; runs lock-free against a snapshot.
type QueryService struct {
	accounts hierarchy.Repository
	authz    *hierarchy.Authorizer
	repo     Repository
	cache    *redis.Client
}

// NewQueryService builds a QueryService. cache may be nil, disabling
// the subnet rollup cache.
func NewQueryService(accounts hierarchy.Repository, authz *hierarchy.Authorizer, repo Repository, cache *redis.Client) *QueryService {
	return &QueryService{accounts: accounts, authz: authz, repo: repo, cache: cache}
}

// History returns the target account's transactions. Actors may view
// their own history; anything else needs transitive view authorization.
func (q *QueryService) History(ctx context.Context, actor *hierarchy.Account, targetID string, opts HistoryOptions) (*Page, error) {
	target, err := q.accounts.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if actor.ID != target.ID {
		if err := q.authz.Authorize(ctx, actor, target, hierarchy.ActionView); err != nil {
			return nil, err
		}
	}
	return q.list(ctx, []string{target.ID}, opts)
}

// AggregateHistory returns transactions touching the actor or any
// account in its subtree.
func (q *QueryService) AggregateHistory(ctx context.Context, actor *hierarchy.Account, opts HistoryOptions) (*Page, error) {
	descendants, err := hierarchy.Descendants(ctx, q.accounts, actor.ID)
	if err != nil {
		return nil, err
	}
	scope := make([]string, 0, len(descendants)+1)
	scope = append(scope, actor.ID)
	for _, acc := range descendants {
		scope = append(scope, acc.ID)
	}
	return q.list(ctx, scope, opts)
}

func (q *QueryService) list(ctx context.Context, scope []string, opts HistoryOptions) (*Page, error) {
	if opts.Kind != "" && !opts.Kind.Valid() {
		return nil, shared.NewValidationError("kind", "kind must be deposit or withdrawal")
	}
	page, perPage := shared.ClampPage(opts.Page, opts.PerPage)

	items, total, err := q.repo.List(ctx, ListFilter{
		AccountIDs: scope,
		FromDate:   opts.FromDate,
		ToDate:     opts.ToDate,
		Kind:       opts.Kind,
		Offset:     (page - 1) * perPage,
		Limit:      perPage,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Transaction{}
	}
	return &Page{Transactions: items, Pagination: shared.NewPagination(page, perPage, total)}, nil
}

// SubnetBalance sums balances over the account's descendants, excluding
// the account itself. Zero for an account with no descendants. Results
// are cached for up to a minute.
func (q *QueryService) SubnetBalance(ctx context.Context, accountID string) (int64, error) {
	key := subnetCacheKey(accountID)
	if q.cache != nil {
		// Cache miss or cache trouble both degrade to a direct sum.
		if cached, err := q.cache.Get(ctx, key).Result(); err == nil {
			if sum, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
				return sum, nil
			}
		}
	}

	descendants, err := hierarchy.Descendants(ctx, q.accounts, accountID)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, acc := range descendants {
		sum += acc.Balance
	}

	if q.cache != nil {
		_ = q.cache.Set(ctx, key, strconv.FormatInt(sum, 10), subnetCacheTTL).Err()
	}
	return sum, nil
}

func subnetCacheKey(accountID string) string {
	return "subnet:" + accountID
}

var _ hierarchy.SubnetBalancer = (*QueryService)(nil)
