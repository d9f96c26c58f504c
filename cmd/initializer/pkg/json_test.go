package pkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioneo/stakeledger/internal/staking"
	"github.com/bioneo/stakeledger/internal/tokenomics"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	cfg := DefaultGenesis(tokenomics.Default(), 1_700_000_000)
	cfg.Whitelist.Beneficiaries = []string{"w1", "w2", "w3"}
	require.NoError(t, cfg.Validate())

	require.NoError(t, WriteConfig(path, cfg))
	got, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	lp, ok := got.Program(staking.VariantLP)
	require.True(t, ok)
	require.Len(t, lp.Pools, 3)
	assert.Equal(t, uint64(4_200_000_000_000_000/3/EmissionPeriod), lp.Pools[0].RewardRate)
	assert.Equal(t, staking.DefaultDurations[2], lp.Pools[2].Params().Duration)
}

func TestReadConfigMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadConfig(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	cfg, err := ReadConfig(empty)
	require.NoError(t, err)
	assert.Empty(t, cfg.Staking)
}

func TestGenesisValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  GenesisConfig
	}{
		{"unknown variant", GenesisConfig{Staking: []ProgramGenesis{{Variant: "erc20"}}}},
		{"duplicate variant", GenesisConfig{Staking: []ProgramGenesis{{Variant: "lp"}, {Variant: "lp"}}}},
		{"tier out of range", GenesisConfig{Staking: []ProgramGenesis{{Variant: "nft", Pools: []PoolGenesis{{Tier: 3}}}}}},
		{"whitelist size", GenesisConfig{Whitelist: WhitelistGenesis{Beneficiaries: []string{"a"}}}},
		{"rounding", GenesisConfig{Rounding: "ceil"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
	assert.NoError(t, DefaultGenesis(tokenomics.Default(), 0).Validate())
}
