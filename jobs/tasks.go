// Package jobs contains background tasks run by the asynq worker.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity recomputes balances from the transaction log
	// and reports drift.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskSubnetWarmup precomputes subtree balance rollups into the cache.
	TaskSubnetWarmup = "subnet:warmup"
)

// LedgerIntegrityPayload configures the integrity scan.
type LedgerIntegrityPayload struct {
	// FailOnDrift makes the task return an error when drift is found,
	// so it shows up as a failed job instead of just a log line.
	FailOnDrift bool `json:"failOnDrift"`
}

// NewLedgerIntegrityTask constructs an asynq task for the integrity scan.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// SubnetWarmupPayload configures the rollup warmup.
type SubnetWarmupPayload struct {
	// Roles limits the warmup to accounts holding these roles. Empty
	// means every role that carries a subtree.
	Roles []string `json:"roles,omitempty"`
}

// NewSubnetWarmupTask constructs an asynq task for the rollup warmup.
func NewSubnetWarmupTask(payload SubnetWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSubnetWarmup, data), nil
}
