package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentnet/agentnet/internal/hierarchy"
	jobmetrics "github.com/agentnet/agentnet/internal/jobs"
)

// SubnetWarmupJob precomputes subtree balance rollups so dashboard
// reads hit a warm cache. Players carry no subtree and the admin
// rollup spans the whole population, so both are skipped by default.
type SubnetWarmupJob struct {
	pool    *pgxpool.Pool
	subnet  hierarchy.SubnetBalancer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSubnetWarmupJob initialises the warmup handler.
func NewSubnetWarmupJob(pool *pgxpool.Pool, subnet hierarchy.SubnetBalancer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SubnetWarmupJob {
	return &SubnetWarmupJob{pool: pool, subnet: subnet, logger: logger, metrics: metrics}
}

// Handle executes the warmup.
func (j *SubnetWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.pool == nil || j.subnet == nil {
		return errors.New("subnet warmup: handler not configured")
	}
	var payload SubnetWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track(TaskSubnetWarmup)
	roles := payload.Roles
	if len(roles) == 0 {
		roles = []string{"manager", "citymanager", "superagent", "agent"}
	}

	rows, err := j.pool.Query(ctx, `SELECT id FROM accounts WHERE role = ANY($1)`, roles)
	if err != nil {
		return tracker.End(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return tracker.End(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return tracker.End(err)
	}

	warmed := 0
	for _, id := range ids {
		if _, err := j.subnet.SubnetBalance(ctx, id); err != nil {
			j.logger.Warn("subnet warmup skipped account", slog.String("account", id), slog.Any("error", err))
			continue
		}
		warmed++
	}
	j.logger.Info("subnet warmup finished", slog.Int("warmed", warmed), slog.Int("total", len(ids)))
	return tracker.End(nil)
}
