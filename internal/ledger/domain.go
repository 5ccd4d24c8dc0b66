// Package ledger performs balance transfers between accounts and keeps
// the append-only transaction record.
package ledger

import "time"

// Kind enumerates transaction kinds.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// Valid reports whether the kind is a known transaction kind.
func (k Kind) Valid() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Transaction is an immutable ledger record. FromID is the debited
// account and ToID the credited one; for deposits the actor funds the
// target, for withdrawals the target funds the actor.
type Transaction struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from"`
	ToID      string    `json:"to"`
	Amount    int64     `json:"amount"`
	Kind      Kind      `json:"kind"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
