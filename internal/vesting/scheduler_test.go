package vesting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/internal/bank"
	"github.com/bioneo/stakeledger/internal/capability"
	"github.com/bioneo/stakeledger/internal/fault"
)

const token capability.Asset = "BIO"

func testConfig(name string) Config {
	return Config{
		Name:      name,
		Authority: "admin",
		Account:   capability.Address(name),
		Treasury:  capability.Address(name + "-treasury"),
		Asset:     token,
	}
}

func newScheduler(t *testing.T, cfg Config, funds uint64) (*Scheduler, *bank.Memory, *capability.ManualClock) {
	t.Helper()
	b := bank.NewMemory()
	b.Delegate(cfg.Treasury, cfg.Account)
	require.NoError(t, b.Mint(cfg.Asset, cfg.Treasury, funds))
	clock := capability.NewManualClock(0)

	s, err := NewScheduler(cfg, b, clock, capability.SignerMatch{}, nil)
	require.NoError(t, err)
	return s, b, clock
}

func TestReleaseFollowsSchedule(t *testing.T) {
	s, b, clock := newScheduler(t, testConfig("team"), 10_000_000)
	ctx := context.Background()

	alloc := Allocation{Beneficiary: "alice", Total: 1_000_000, Start: 100, PeriodLength: Month, PeriodCount: 36}
	require.NoError(t, s.InitVesting(ctx, "admin", alloc))

	clock.Set(100 + Month - 1)
	_, err := s.Release(ctx, "alice", "alice")
	assert.ErrorIs(t, err, fault.ErrNoMoreReleases)
	assert.Equal(t, fault.KindStateViolation, fault.KindOf(err))

	clock.Set(100 + 3*Month)
	amount, err := s.Release(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(83_331), amount)

	_, err = s.Release(ctx, "alice", "alice")
	assert.ErrorIs(t, err, fault.ErrNoMoreReleases)

	var total uint64 = amount
	for m := uint64(4); m <= 40; m += 5 {
		clock.Set(100 + m*Month)
		got, err := s.Release(ctx, "alice", "alice")
		require.NoError(t, err)
		total += got
		assert.LessOrEqual(t, total, alloc.Total)
	}

	assert.Equal(t, uint64(27_777*36), total)
	assert.Equal(t, total, b.Balance(token, "alice"))

	view, err := s.View(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(36), view.ElapsedPeriods)
	assert.Zero(t, view.Claimable)
	assert.Equal(t, total, view.Claimed)
	assert.Equal(t, uint64(28), alloc.Dust(PerPeriodFloor))
}

func TestReleaseProRataReachesTotal(t *testing.T) {
	cfg := testConfig("team")
	cfg.Rounding = ProRata
	s, b, clock := newScheduler(t, cfg, 10_000_000)
	ctx := context.Background()

	require.NoError(t, s.InitVesting(ctx, "admin", Allocation{Beneficiary: "alice", Total: 1_000_000, PeriodLength: Month, PeriodCount: 36}))

	clock.Set(3 * Month)
	amount, err := s.Release(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(83_333), amount)

	clock.Set(36 * Month)
	_, err = s.Release(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), b.Balance(token, "alice"))
}

func TestReleaseAuthorization(t *testing.T) {
	s, _, clock := newScheduler(t, testConfig("team"), 1_000)
	ctx := context.Background()
	require.NoError(t, s.InitVesting(ctx, "admin", Allocation{Beneficiary: "alice", Total: 100, PeriodLength: 1, PeriodCount: 1}))
	clock.Set(10)

	_, err := s.Release(ctx, "mallory", "alice")
	assert.ErrorIs(t, err, fault.ErrUnauthorized)

	_, err = s.Release(ctx, "mallory", "mallory")
	assert.ErrorIs(t, err, fault.ErrUnauthorized)

	view, err := s.View(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, view.Claimed)
}

func TestInitVestingValidation(t *testing.T) {
	s, _, _ := newScheduler(t, testConfig("team"), 0)
	ctx := context.Background()
	ok := Allocation{Beneficiary: "alice", Total: 100, PeriodLength: 1, PeriodCount: 1}

	tests := []struct {
		name   string
		signer capability.Address
		allocs []Allocation
		want   error
	}{
		{"not authority", "alice", []Allocation{ok}, fault.ErrUnauthorized},
		{"empty", "admin", nil, fault.ErrInvalidParams},
		{"zero total", "admin", []Allocation{{Beneficiary: "bob", PeriodLength: 1, PeriodCount: 1}}, fault.ErrInvalidAmount},
		{"no periods", "admin", []Allocation{{Beneficiary: "bob", Total: 1}}, fault.ErrInvalidParams},
		{"duplicate", "admin", []Allocation{ok, ok}, fault.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.InitVesting(ctx, tt.signer, tt.allocs...), tt.want)
		})
	}
	assert.Empty(t, s.Allocations())

	require.NoError(t, s.InitVesting(ctx, "admin", ok))
	assert.ErrorIs(t, s.InitVesting(ctx, "admin", ok), fault.ErrAlreadyInitialized)
}

type failingTransferer struct {
	mock.Mock
}

func (f *failingTransferer) Transfer(ctx context.Context, legs ...capability.Transfer) error {
	return f.Called(legs).Error(0)
}

func TestReleaseFailsClosed(t *testing.T) {
	tr := &failingTransferer{}
	tr.On("Transfer", mock.Anything).Return(errors.New("treasury frozen"))
	clock := capability.NewManualClock(0)
	s, err := NewScheduler(testConfig("team"), tr, clock, capability.SignerMatch{}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.InitVesting(ctx, "admin", Allocation{Beneficiary: "alice", Total: 120, PeriodLength: 10, PeriodCount: 12}))
	clock.Set(50)

	_, err = s.Release(ctx, "alice", "alice")
	assert.ErrorIs(t, err, fault.ErrTransferFailed)

	view, err := s.View(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, view.Claimed)
	assert.Equal(t, uint64(50), view.Claimable)
}

func TestWhitelistRelease(t *testing.T) {
	s, b, clock := newScheduler(t, testConfig("whitelist"), 1_200_000)
	ctx := context.Background()

	allocs, err := WhitelistAllocations(1_200_000, 0, []capability.Address{"w1", "w2", "w3"})
	require.NoError(t, err)
	require.NoError(t, s.InitVesting(ctx, "admin", allocs...))

	assert.Equal(t, uint64(600_000), allocs[0].Total)
	assert.Equal(t, uint64(360_000), allocs[1].Total)
	assert.Equal(t, uint64(240_000), allocs[2].Total)

	clock.Set(Month)
	for i, who := range []capability.Address{"w1", "w2", "w3"} {
		amount, err := s.Release(ctx, who, who)
		require.NoError(t, err)
		assert.Equal(t, allocs[i].Total/12, amount)
	}

	_, err = s.Release(ctx, "outsider", "outsider")
	assert.ErrorIs(t, err, fault.ErrUnauthorized)

	clock.Set(100 * Month)
	_, err = s.Release(ctx, "w1", "w1")
	require.NoError(t, err)
	assert.Equal(t, uint64(600_000), b.Balance(token, "w1"))

	_, err = WhitelistAllocations(1, 0, []capability.Address{"w1"})
	assert.ErrorIs(t, err, fault.ErrInvalidParams)
}

func TestSchedulerRestore(t *testing.T) {
	s, _, _ := newScheduler(t, testConfig("team"), 0)
	allocs := []Allocation{
		{Beneficiary: "bob", Total: 10, Claimed: 5, PeriodLength: 1, PeriodCount: 2},
		{Beneficiary: "alice", Total: 10, PeriodLength: 1, PeriodCount: 2},
	}
	require.NoError(t, s.Restore(allocs))
	got := s.Allocations()
	require.Len(t, got, 2)
	assert.Equal(t, capability.Address("alice"), got[0].Beneficiary)

	bad := []Allocation{{Beneficiary: "carol", Total: 1, Claimed: 2, PeriodLength: 1, PeriodCount: 1}}
	assert.Error(t, s.Restore(bad))
	assert.Len(t, s.Allocations(), 2)
}
