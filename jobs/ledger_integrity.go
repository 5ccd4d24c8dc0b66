package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/agentnet/agentnet/internal/jobs"
)

// LedgerIntegrityJob verifies that every stored balance equals the net
// of the account's transaction history. The ledger is append-only and
// transfers are atomic, so any drift means operator interference or a
// storage fault.
type LedgerIntegrityJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity scan handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{pool: pool, logger: logger, metrics: metrics}
}

type balanceDrift struct {
	AccountID string
	Role      string
	Stored    int64
	Expected  int64
}

// Handle executes the integrity scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track(TaskLedgerIntegrity)

	j.logger.Info("starting ledger integrity scan")

	drifts, err := j.scan(ctx)
	if err != nil {
		j.logger.Error("integrity scan failed", slog.Any("error", err))
		return tracker.End(err)
	}

	for _, d := range drifts {
		j.metrics.AddDrift(d.Role, 1)
		j.logger.Warn("balance drift detected",
			slog.String("account", d.AccountID),
			slog.Int64("stored", d.Stored),
			slog.Int64("expected", d.Expected),
		)
	}
	j.logger.Info("ledger integrity scan finished", slog.Int("drifts", len(drifts)))

	if payload.FailOnDrift && len(drifts) > 0 {
		return tracker.End(fmt.Errorf("ledger integrity: %d account(s) drifted", len(drifts)))
	}
	return tracker.End(nil)
}

// scan compares stored balances against seed_balance plus the net of
// credits and debits. seed_balance records the balance an account was
// created with (the root admin's treasury; zero for everyone else).
func (j *LedgerIntegrityJob) scan(ctx context.Context) ([]balanceDrift, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT a.id, a.role, a.balance,
		       a.seed_balance
		       + COALESCE((SELECT sum(amount) FROM transactions WHERE to_id = a.id), 0)
		       - COALESCE((SELECT sum(amount) FROM transactions WHERE from_id = a.id), 0) AS expected
		FROM accounts a`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []balanceDrift
	for rows.Next() {
		var d balanceDrift
		if err := rows.Scan(&d.AccountID, &d.Role, &d.Stored, &d.Expected); err != nil {
			return nil, err
		}
		if d.Stored != d.Expected {
			drifts = append(drifts, d)
		}
	}
	return drifts, rows.Err()
}
