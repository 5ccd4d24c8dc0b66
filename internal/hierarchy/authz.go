package hierarchy

import (
	"context"
	"fmt"

	"github.com/agentnet/agentnet/internal/shared"
)

// Authorizer decides whether an actor may perform an action against a
// target account, combining the capability matrix with ancestry checks.
//
// Mutation (deposit, withdraw, resetPassword) is confined one level
// down: the target must be a direct child of the actor. Visibility is
// transitive: an ancestor may observe its entire subtree. The root
// admin bypasses both checks.
type Authorizer struct {
	repo Repository
}

// NewAuthorizer constructs an Authorizer over the account store.
func NewAuthorizer(repo Repository) *Authorizer {
	return &Authorizer{repo: repo}
}

// Authorize returns nil when the action is allowed, otherwise one of the
// shared denial sentinels wrapped with context.
func (a *Authorizer) Authorize(ctx context.Context, actor, target *Account, action Action) error {
	if actor.IsRoot() {
		return nil
	}

	if !CanTarget(actor.Role, action, target.Role) {
		return fmt.Errorf("%s may not %s %s: %w", actor.Role, action, target.Role, shared.ErrRoleNotPermitted)
	}

	if action.Mutating() {
		if target.ParentID == nil || *target.ParentID != actor.ID {
			return fmt.Errorf("%s on %s: %w", action, target.ID, shared.ErrNotDirectChild)
		}
		return nil
	}

	ok, err := IsAncestorOf(ctx, a.repo, actor.ID, target.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s on %s: %w", action, target.ID, shared.ErrNotInSubtree)
	}
	return nil
}
