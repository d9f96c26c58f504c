package bank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
)

const token capability.Asset = "BIO"

func TestTransferMovesBalances(t *testing.T) {
	b := NewMemory()
	require.NoError(t, b.Mint(token, "alice", 100))

	err := b.Transfer(context.Background(), capability.Transfer{
		Asset: token, From: "alice", To: "bob", Authority: "alice", Amount: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(60), b.Balance(token, "alice"))
	assert.Equal(t, uint64(40), b.Balance(token, "bob"))
}

func TestTransferBatchIsAtomic(t *testing.T) {
	b := NewMemory()
	require.NoError(t, b.Mint(token, "alice", 100))

	err := b.Transfer(context.Background(),
		capability.Transfer{Asset: token, From: "alice", To: "bob", Authority: "alice", Amount: 60},
		capability.Transfer{Asset: token, From: "alice", To: "carol", Authority: "alice", Amount: 60},
	)
	assert.ErrorIs(t, err, fault.ErrTransferFailed)
	assert.Equal(t, uint64(100), b.Balance(token, "alice"))
	assert.Zero(t, b.Balance(token, "bob"))
}

func TestTransferRequiresAuthority(t *testing.T) {
	b := NewMemory()
	require.NoError(t, b.Mint(token, "vault", 10))

	leg := capability.Transfer{Asset: token, From: "vault", To: "bob", Authority: "program", Amount: 5}
	assert.ErrorIs(t, b.Transfer(context.Background(), leg), fault.ErrTransferFailed)

	b.Delegate("vault", "program")
	require.NoError(t, b.Transfer(context.Background(), leg))
	assert.Equal(t, uint64(5), b.Balance(token, "bob"))
}

func TestTransferChainedLegsSeePendingBalances(t *testing.T) {
	b := NewMemory()
	require.NoError(t, b.Mint(token, "alice", 10))

	err := b.Transfer(context.Background(),
		capability.Transfer{Asset: token, From: "alice", To: "bob", Authority: "alice", Amount: 10},
		capability.Transfer{Asset: token, From: "bob", To: "carol", Authority: "bob", Amount: 10},
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), b.Balance(token, "carol"))
	assert.Zero(t, b.Balance(token, "bob"))
}
