package bank

import (
	"context"
	"fmt"
	"math"
	"sync"

	"merch_ledger/internal/sales"
)

// Local is an in-memory balance service. Transfers are atomic: on failure
// neither balance changes.
type Local struct {
	mu       sync.Mutex
	balances map[sales.Identity]uint64
}

// NewLocal creates a Local seeded with the given balances.
func NewLocal(seed map[sales.Identity]uint64) *Local {
	balances := make(map[sales.Identity]uint64, len(seed))
	for id, amount := range seed {
		balances[id] = amount
	}
	return &Local{balances: balances}
}

// Deposit credits amount to id.
func (b *Local) Deposit(id sales.Identity, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[id] > math.MaxUint64-amount {
		return fmt.Errorf("deposit to %q overflows balance", id)
	}
	b.balances[id] += amount
	return nil
}

func (b *Local) BalanceOf(_ context.Context, id sales.Identity) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[id], nil
}

func (b *Local) Transfer(_ context.Context, amount uint64, from, to sales.Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balances[from] < amount {
		return fmt.Errorf("%q holds %d, needs %d: %w", from, b.balances[from], amount, sales.ErrInsufficientFunds)
	}
	if from == to {
		return nil
	}
	if b.balances[to] > math.MaxUint64-amount {
		return fmt.Errorf("transfer to %q overflows balance", to)
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}
