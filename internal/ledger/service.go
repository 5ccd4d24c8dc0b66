package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/agentnet/agentnet/internal/hierarchy"
	"github.com/agentnet/agentnet/internal/shared"
)

// Service is the ledger engine. Every mutation is gated by the
// authorization engine and an available-funds check.
//
// Funding policy: transfers are actor-funded. A deposit moves the
// amount from the actor's balance to the target and a withdrawal moves
// it back, so the sum over all balances is invariant; the root admin is
// seeded with the treasury.
type Service struct {
	logger   *slog.Logger
	accounts hierarchy.Repository
	authz    *hierarchy.Authorizer
	repo     Repository
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, accounts hierarchy.Repository, authz *hierarchy.Authorizer, repo Repository) *Service {
	return &Service{logger: logger, accounts: accounts, authz: authz, repo: repo}
}

// Deposit moves amount from the actor to the target account.
func (s *Service) Deposit(ctx context.Context, actor *hierarchy.Account, targetID string, amount int64, note string) (*Transaction, error) {
	return s.transfer(ctx, actor, targetID, amount, note, KindDeposit)
}

// Withdraw moves amount from the target account back to the actor.
// Fails with InsufficientFunds when the target cannot cover it.
func (s *Service) Withdraw(ctx context.Context, actor *hierarchy.Account, targetID string, amount int64, note string) (*Transaction, error) {
	return s.transfer(ctx, actor, targetID, amount, note, KindWithdrawal)
}

func (s *Service) transfer(ctx context.Context, actor *hierarchy.Account, targetID string, amount int64, note string, kind Kind) (*Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", shared.ErrInvalidAmount)
	}

	target, err := s.accounts.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}

	action := hierarchy.ActionDeposit
	if kind == KindWithdrawal {
		action = hierarchy.ActionWithdraw
	}
	if err := s.authz.Authorize(ctx, actor, target, action); err != nil {
		return nil, err
	}

	txn := &Transaction{
		ID:     uuid.New().String(),
		Amount: amount,
		Kind:   kind,
		Note:   note,
	}
	switch kind {
	case KindDeposit:
		txn.FromID, txn.ToID = actor.ID, target.ID
	case KindWithdrawal:
		txn.FromID, txn.ToID = target.ID, actor.ID
	}

	if err := s.repo.Transfer(ctx, txn); err != nil {
		return nil, err
	}

	s.logger.Info("transfer committed",
		slog.String("kind", string(kind)),
		slog.String("from", txn.FromID),
		slog.String("to", txn.ToID),
		slog.Int64("amount", amount),
	)
	return txn, nil
}
