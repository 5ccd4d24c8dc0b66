package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentnet/agentnet/internal/shared"
)

// maxTreeDepth bounds descendant traversal. The role set keeps real
// trees at most six levels deep; the guard only protects against
// corrupt parent links forming a cycle.
const maxTreeDepth = 64

// Repository defines persistence operations for the account tree.
type Repository interface {
	Get(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	Root(ctx context.Context) (*Account, error)
	Create(ctx context.Context, account *Account) error
	Children(ctx context.Context, parentIDs []string) ([]Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	TouchLastAccess(ctx context.Context, id string, at time.Time) error
}

// Descendants returns the transitive closure below id, excluding id
// itself, via iterative frontier expansion over the parent index. One
// query per tree level, bounded by maxTreeDepth.
func Descendants(ctx context.Context, repo Repository, id string) ([]Account, error) {
	var out []Account
	frontier := []string{id}
	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= maxTreeDepth {
			return nil, fmt.Errorf("hierarchy: descendants of %s exceed depth %d", id, maxTreeDepth)
		}
		children, err := repo.Children(ctx, frontier)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, child := range children {
			out = append(out, child)
			frontier = append(frontier, child.ID)
		}
	}
	return out, nil
}

// IsAncestorOf reports whether ancestorID equals accountID or appears on
// its parent chain. Walks upward, so cost is bounded by tree depth.
func IsAncestorOf(ctx context.Context, repo Repository, ancestorID, accountID string) (bool, error) {
	if ancestorID == accountID {
		return true, nil
	}
	current := accountID
	for depth := 0; depth < maxTreeDepth; depth++ {
		acc, err := repo.Get(ctx, current)
		if err != nil {
			return false, err
		}
		if acc.ParentID == nil {
			return false, nil
		}
		if *acc.ParentID == ancestorID {
			return true, nil
		}
		current = *acc.ParentID
	}
	return false, fmt.Errorf("hierarchy: ancestry chain of %s exceeds depth %d", accountID, maxTreeDepth)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, username, password_hash, role, parent_id, balance, last_access, created_at, updated_at`

// Get fetches an account by id.
func (r *PGRepository) Get(ctx context.Context, id string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByUsername fetches an account by its unique username.
func (r *PGRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
	return scanAccount(row)
}

// Root fetches the root admin account.
func (r *PGRepository) Root(ctx context.Context) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE parent_id IS NULL AND role = 'admin'`)
	return scanAccount(row)
}

// Create inserts a new account node.
func (r *PGRepository) Create(ctx context.Context, account *Account) error {
	parent := pgtype.Text{}
	if account.ParentID != nil {
		parent = pgtype.Text{String: *account.ParentID, Valid: true}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, username, password_hash, role, parent_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		account.ID, account.Username, account.PasswordHash, account.Role.String(), parent, account.Balance,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return shared.ErrDuplicateIdentity
			case "23503":
				return shared.ErrInvalidHierarchy
			}
		}
		return storeErr("create account", err)
	}
	return nil
}

// Children returns direct children of the given parents.
func (r *PGRepository) Children(ctx context.Context, parentIDs []string) ([]Account, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE parent_id = ANY($1) ORDER BY created_at`, parentIDs)
	if err != nil {
		return nil, storeErr("list children", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list children", err)
	}
	return out, nil
}

// UpdatePasswordHash replaces the stored credential hash.
func (r *PGRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return storeErr("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TouchLastAccess stamps the account's last access time.
func (r *PGRepository) TouchLastAccess(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET last_access = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return storeErr("touch last access", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		acc        Account
		roleName   string
		parentID   pgtype.Text
		lastAccess pgtype.Timestamptz
	)
	err := row.Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &roleName, &parentID, &acc.Balance, &lastAccess, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, storeErr("scan account", err)
	}
	role, err := ParseRole(roleName)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: account %s has unknown role %q", acc.ID, roleName)
	}
	acc.Role = role
	if parentID.Valid {
		acc.ParentID = &parentID.String
	}
	if lastAccess.Valid {
		t := lastAccess.Time
		acc.LastAccess = &t
	}
	return &acc, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("hierarchy: %s: %w: %v", op, shared.ErrStoreUnavailable, err)
}

var _ Repository = (*PGRepository)(nil)
