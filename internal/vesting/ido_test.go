package vesting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/internal/bank"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
)

const usdc capability.Asset = "USDC"

type saleFixture struct {
	sale  *Sale
	bank  *bank.Memory
	clock *capability.ManualClock
}

func newSale(t *testing.T) *saleFixture {
	t.Helper()
	cfg := testConfig("ido")
	b := bank.NewMemory()
	b.Delegate(cfg.Treasury, cfg.Account)
	require.NoError(t, b.Mint(token, cfg.Treasury, 2_100_000))
	for _, u := range []capability.Address{"alice", "bob"} {
		require.NoError(t, b.Mint(usdc, u, 1_000_000))
	}
	clock := capability.NewManualClock(0)

	sched, err := NewScheduler(cfg, b, clock, capability.SignerMatch{}, nil)
	require.NoError(t, err)
	sale, err := NewSale(SaleConfig{
		Name:         "ido",
		Authority:    "admin",
		Treasury:     "ido-payments",
		PaymentAsset: usdc,
	}, sched, b, clock, capability.SignerMatch{}, nil)
	require.NoError(t, err)

	err = sale.Init(context.Background(), "admin", SaleParams{
		Start:         100,
		End:           200,
		PricePerShare: 50,
		TotalShares:   1_000,
		TokenAmount:   2_100_000,
		PeriodLength:  Month,
		PeriodCount:   12,
	})
	require.NoError(t, err)
	return &saleFixture{sale: sale, bank: b, clock: clock}
}

func TestParticipateAndClaim(t *testing.T) {
	f := newSale(t)
	ctx := context.Background()

	_, err := f.sale.Participate(ctx, "alice", "alice", 10)
	assert.ErrorIs(t, err, fault.ErrSaleNotActive)

	f.clock.Set(150)
	p, err := f.sale.Participate(ctx, "alice", "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), p.PaymentAmount)
	assert.Equal(t, uint64(21_000), p.TokenAmount)
	assert.Equal(t, uint64(999_500), f.bank.Balance(usdc, "alice"))
	assert.Equal(t, uint64(500), f.bank.Balance(usdc, "ido-payments"))

	_, err = f.sale.Participate(ctx, "alice", "alice", 1)
	assert.ErrorIs(t, err, fault.ErrAlreadyJoined)

	view := f.sale.View()
	assert.Equal(t, uint64(10), view.SoldShares)
	assert.Equal(t, uint64(500), view.TotalRaised)
	assert.Equal(t, uint64(2_100), view.TokenAmountPerShare)

	_, err = f.sale.Claim(ctx, "alice", "alice")
	assert.ErrorIs(t, err, fault.ErrNoMoreReleases)

	f.clock.Set(100 + 2*Month)
	amount, err := f.sale.Claim(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(3_500), amount)
	assert.Equal(t, uint64(3_500), f.bank.Balance(token, "alice"))
}

func TestParticipateLimits(t *testing.T) {
	f := newSale(t)
	ctx := context.Background()
	f.clock.Set(120)

	_, err := f.sale.Participate(ctx, "bob", "bob", 1_001)
	assert.ErrorIs(t, err, fault.ErrInsufficientShares)

	_, err = f.sale.Participate(ctx, "bob", "bob", 0)
	assert.ErrorIs(t, err, fault.ErrInvalidAmount)

	_, err = f.sale.Participate(ctx, "alice", "bob", 5)
	assert.ErrorIs(t, err, fault.ErrUnauthorized)

	_, err = f.sale.Participate(ctx, "carol", "carol", 5)
	assert.ErrorIs(t, err, fault.ErrTransferFailed)
	assert.Zero(t, f.sale.View().SoldShares)
	assert.False(t, f.sale.Scheduler().has("carol"))

	_, err = f.sale.Participate(ctx, "bob", "bob", 1_000)
	require.NoError(t, err)
	_, err = f.sale.Participate(ctx, "alice", "alice", 1)
	assert.ErrorIs(t, err, fault.ErrInsufficientShares)

	f.clock.Set(201)
	_, err = f.sale.Participate(ctx, "alice", "alice", 1)
	assert.ErrorIs(t, err, fault.ErrSaleNotActive)
}

func TestSaleInitValidation(t *testing.T) {
	f := newSale(t)
	ctx := context.Background()

	err := f.sale.Init(ctx, "admin", SaleParams{TotalShares: 1, TokenAmount: 1, PeriodLength: 1, PeriodCount: 1})
	assert.ErrorIs(t, err, fault.ErrAlreadyInitialized)

	sale, err := NewSale(SaleConfig{Name: "x", Authority: "admin", Treasury: "t"}, f.sale.Scheduler(), f.bank, f.clock, capability.SignerMatch{}, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		signer capability.Address
		params SaleParams
		want   error
	}{
		{"not authority", "bob", SaleParams{TotalShares: 1, TokenAmount: 1, PeriodLength: 1, PeriodCount: 1}, fault.ErrUnauthorized},
		{"no shares", "admin", SaleParams{TokenAmount: 1, PeriodLength: 1, PeriodCount: 1}, fault.ErrInvalidParams},
		{"inverted window", "admin", SaleParams{Start: 5, End: 1, TotalShares: 1, TokenAmount: 1, PeriodLength: 1, PeriodCount: 1}, fault.ErrInvalidParams},
		{"dust per share", "admin", SaleParams{TotalShares: 10, TokenAmount: 9, PeriodLength: 1, PeriodCount: 1}, fault.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, sale.Init(ctx, tt.signer, tt.params), tt.want)
		})
	}

	_, err = sale.Participate(ctx, "alice", "alice", 1)
	assert.ErrorIs(t, err, fault.ErrNotInitialized)
}

func TestSaleSnapshotRoundTrip(t *testing.T) {
	f := newSale(t)
	ctx := context.Background()
	f.clock.Set(150)
	_, err := f.sale.Participate(ctx, "alice", "alice", 3)
	require.NoError(t, err)

	snap := f.sale.Snapshot()
	require.Len(t, snap.Participants, 1)

	g := newSale(t)
	require.NoError(t, g.sale.Restore(snap))
	assert.Equal(t, f.sale.View(), g.sale.View())
	p, ok := g.sale.Participation("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(6_300), p.TokenAmount)
}

func TestParticipateHookSeesCommittedPurchases(t *testing.T) {
	f := newSale(t)
	ctx := context.Background()

	var seen []Participation
	f.sale.OnParticipate(func(_ context.Context, program string, p Participation) {
		assert.Equal(t, "ido", program)
		seen = append(seen, p)
	})

	_, err := f.sale.Participate(ctx, "alice", "alice", 10)
	require.Error(t, err)

	f.clock.Set(150)
	_, err = f.sale.Participate(ctx, "bob", "bob", 4)
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, capability.Address("bob"), seen[0].User)
	assert.Equal(t, uint64(4), seen[0].Shares)
}
