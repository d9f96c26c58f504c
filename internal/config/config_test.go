package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	initpkg "github.com/bioneo/stakeledger/cmd/initializer/pkg"
	"github.com/bioneo/stakeledger/internal/staking"
	"github.com/bioneo/stakeledger/internal/tokenomics"
	"github.com/bioneo/stakeledger/internal/vesting"
)

var now = time.Unix(1_700_000_000, 0)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(viper.New(), now)
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, AuthHeader, cfg.Auth.Mode)
	assert.Equal(t, "memory", cfg.Cache.KVBackend)
	assert.Equal(t, 10, cfg.Capacity(staking.VariantLP))
	assert.Equal(t, 20, cfg.Capacity(staking.VariantNFT))
	assert.Equal(t, uint64(1000), cfg.Staking.ReferralBps)
	assert.Equal(t, 10*time.Second, cfg.Jobs.StatsInterval)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Security.CORSAllowedOrigins)

	policy, err := cfg.UnstakePolicy()
	require.NoError(t, err)
	assert.Equal(t, staking.SettleOnUnstake, policy)

	assert.Equal(t, initpkg.DefaultGenesis(tokenomics.Default(), uint64(now.Unix())), cfg.Genesis)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEDGER_NFT_CAPACITY", "5")
	t.Setenv("LEDGER_UNSTAKE_POLICY", "claim_first")
	t.Setenv("LEDGER_VESTING_ROUNDING", "pro_rata")
	t.Setenv("LEDGER_STATS_INTERVAL", "1m")

	cfg, err := load(viper.New(), now)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Capacity(staking.VariantNFT))
	policy, err := cfg.UnstakePolicy()
	require.NoError(t, err)
	assert.Equal(t, staking.RequireClaimFirst, policy)
	rounding, err := cfg.Rounding()
	require.NoError(t, err)
	assert.Equal(t, vesting.ProRata, rounding)
	assert.Equal(t, time.Minute, cfg.Jobs.StatsInterval)
}

func TestLoadGenesisFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	genesis := initpkg.DefaultGenesis(tokenomics.Default(), 42)
	genesis.Whitelist.Beneficiaries = []string{"a", "b", "c"}
	path := filepath.Join(dir, "genesis.json")
	require.NoError(t, initpkg.WriteConfig(path, genesis))
	t.Setenv("LEDGER_GENESIS_PATH", path)

	cfg, err := load(viper.New(), now)
	require.NoError(t, err)
	assert.Equal(t, genesis, cfg.Genesis)

	t.Setenv("LEDGER_GENESIS_PATH", filepath.Join(dir, "missing.json"))
	_, err = load(viper.New(), now)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"env", map[string]string{"LEDGER_ENV": "staging"}},
		{"auth mode", map[string]string{"LEDGER_AUTH_MODE": "none"}},
		{"prod needs signatures", map[string]string{"LEDGER_ENV": "prod"}},
		{"kv backend", map[string]string{"LEDGER_KV_BACKEND": "etcd"}},
		{"capacity", map[string]string{"LEDGER_LP_CAPACITY": "0"}},
		{"referral", map[string]string{"LEDGER_REFERRAL_BPS": "10001"}},
		{"policy", map[string]string{"LEDGER_UNSTAKE_POLICY": "burn"}},
		{"rounding", map[string]string{"LEDGER_VESTING_ROUNDING": "ceil"}},
		{"interval", map[string]string{"LEDGER_STATS_INTERVAL": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New(), now)
			assert.Error(t, err)
		})
	}
}
