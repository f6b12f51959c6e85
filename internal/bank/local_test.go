package bank

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merch_ledger/internal/sales"
)

func TestLocal_Transfer(t *testing.T) {
	ctx := context.Background()
	b := NewLocal(map[sales.Identity]uint64{"alice": 100})

	require.NoError(t, b.Transfer(ctx, 40, "alice", "bob"))
	alice, _ := b.BalanceOf(ctx, "alice")
	bob, _ := b.BalanceOf(ctx, "bob")
	assert.Equal(t, uint64(60), alice)
	assert.Equal(t, uint64(40), bob)

	err := b.Transfer(ctx, 61, "alice", "bob")
	require.ErrorIs(t, err, sales.ErrInsufficientFunds)
	alice, _ = b.BalanceOf(ctx, "alice")
	bob, _ = b.BalanceOf(ctx, "bob")
	assert.Equal(t, uint64(60), alice)
	assert.Equal(t, uint64(40), bob)

	require.NoError(t, b.Transfer(ctx, 60, "alice", "alice"))
	alice, _ = b.BalanceOf(ctx, "alice")
	assert.Equal(t, uint64(60), alice)

	unknown, err := b.BalanceOf(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, unknown)
}

func TestLocal_Overflow(t *testing.T) {
	ctx := context.Background()
	b := NewLocal(map[sales.Identity]uint64{"alice": 10, "bob": math.MaxUint64})

	require.Error(t, b.Transfer(ctx, 1, "alice", "bob"))
	require.Error(t, b.Deposit("bob", 1))
	alice, _ := b.BalanceOf(ctx, "alice")
	assert.Equal(t, uint64(10), alice)

	require.NoError(t, b.Deposit("alice", 5))
	alice, _ = b.BalanceOf(ctx, "alice")
	assert.Equal(t, uint64(15), alice)
}

func TestLocal_SeedIsCopied(t *testing.T) {
	seed := map[sales.Identity]uint64{"alice": 10}
	b := NewLocal(seed)
	seed["alice"] = 1000

	alice, _ := b.BalanceOf(context.Background(), "alice")
	assert.Equal(t, uint64(10), alice)
}

func TestLocal_ConcurrentTransfersConserveFunds(t *testing.T) {
	ctx := context.Background()
	b := NewLocal(map[sales.Identity]uint64{"alice": 500, "bob": 500})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = b.Transfer(ctx, 7, "alice", "bob")
		}()
		go func() {
			defer wg.Done()
			_ = b.Transfer(ctx, 3, "bob", "alice")
		}()
	}
	wg.Wait()

	alice, _ := b.BalanceOf(ctx, "alice")
	bob, _ := b.BalanceOf(ctx, "bob")
	assert.Equal(t, uint64(1000), alice+bob)
}
