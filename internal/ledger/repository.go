package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentnet/agentnet/internal/platform/db"
	"github.com/agentnet/agentnet/internal/shared"
)

// ListFilter restricts transaction listings. AccountIDs scopes results
// to records where either side is in the set.
type ListFilter struct {
	AccountIDs []string
	FromDate   *time.Time
	ToDate     *time.Time
	Kind       Kind
	Offset     int
	Limit      int
}

// Repository defines persistence operations for the ledger.
type Repository interface {
	// Transfer atomically debits from, credits to, and appends the
	// transaction record. Either all three happen or none.
	Transfer(ctx context.Context, tx *Transaction) error
	// List returns matching transactions newest first plus the total
	// match count.
	List(ctx context.Context, filter ListFilter) ([]Transaction, int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Transfer moves tx.Amount from tx.FromID to tx.ToID inside one
// database transaction. The debit is a conditional update so the
// balance check and the write are a single atomic step; a stale balance
// read can never be committed.
func (r *PGRepository) Transfer(ctx context.Context, txn *Transaction) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE accounts SET balance = balance - $2, updated_at = now()
			WHERE id = $1 AND balance >= $2`,
			txn.FromID, txn.Amount,
		)
		if err != nil {
			return storeErr("debit", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, txn.FromID).Scan(&exists); err != nil {
				return storeErr("debit check", err)
			}
			if !exists {
				return shared.ErrNotFound
			}
			return shared.ErrInsufficientFunds
		}

		tag, err = tx.Exec(ctx, `
			UPDATE accounts SET balance = balance + $2, updated_at = now()
			WHERE id = $1`,
			txn.ToID, txn.Amount,
		)
		if err != nil {
			return storeErr("credit", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO transactions (id, from_id, to_id, amount, kind, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			RETURNING created_at`,
			txn.ID, txn.FromID, txn.ToID, txn.Amount, string(txn.Kind), txn.Note,
		).Scan(&txn.CreatedAt)
		if err != nil {
			return storeErr("append record", err)
		}
		return nil
	})
}

// List returns transactions matching the filter, strictly newest first
// with insertion order breaking timestamp ties.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	where, args := buildWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count", err)
	}

	query := `SELECT id, from_id, to_id, amount, kind, note, created_at FROM transactions` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeErr("list", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			txn  Transaction
			kind string
			note pgtype.Text
		)
		if err := rows.Scan(&txn.ID, &txn.FromID, &txn.ToID, &txn.Amount, &kind, &note, &txn.CreatedAt); err != nil {
			return nil, 0, storeErr("scan", err)
		}
		txn.Kind = Kind(kind)
		txn.Note = note.String
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("list", err)
	}
	return out, total, nil
}

func buildWhere(filter ListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if len(filter.AccountIDs) > 0 {
		add(`(from_id = ANY($%[1]d) OR to_id = ANY($%[1]d))`, filter.AccountIDs)
	}
	if filter.FromDate != nil {
		add(`created_at >= $%d`, *filter.FromDate)
	}
	if filter.ToDate != nil {
		add(`created_at <= $%d`, *filter.ToDate)
	}
	if filter.Kind != "" {
		add(`kind = $%d`, string(filter.Kind))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func storeErr(op string, err error) error {
	if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrInsufficientFunds) {
		return err
	}
	return fmt.Errorf("ledger: %s: %w: %v", op, shared.ErrStoreUnavailable, err)
}

var _ Repository = (*PGRepository)(nil)
