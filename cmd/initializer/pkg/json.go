package pkg

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bioneo/stakeledger/internal/staking"
	"github.com/bioneo/stakeledger/internal/vesting"
)

// PoolGenesis initializes one tier of a staking program.
type PoolGenesis struct {
	Tier       int    `json:"tier"`
	RewardRate uint64 `json:"reward_rate"`
	Duration   uint64 `json:"duration"`
	MinStake   uint64 `json:"min_stake,omitempty"`
	MaxStake   uint64 `json:"max_stake,omitempty"`
}

func (p PoolGenesis) Params() staking.TierParams {
	return staking.TierParams{
		RewardRate: p.RewardRate,
		Duration:   p.Duration,
		MinStake:   p.MinStake,
		MaxStake:   p.MaxStake,
	}
}

type ProgramGenesis struct {
	Variant string        `json:"variant"`
	Pools   []PoolGenesis `json:"pools"`
}

type WhitelistGenesis struct {
	Start         uint64   `json:"start"`
	Beneficiaries []string `json:"beneficiaries"`
}

// GenesisConfig is the initial state the api server builds its programs from.
type GenesisConfig struct {
	Staking   []ProgramGenesis   `json:"staking"`
	IDO       vesting.SaleParams `json:"ido"`
	Whitelist WhitelistGenesis   `json:"whitelist"`
	Rounding  string             `json:"rounding,omitempty"`
}

// Program returns the genesis of variant, if present.
func (g GenesisConfig) Program(v staking.Variant) (ProgramGenesis, bool) {
	for _, p := range g.Staking {
		if p.Variant == v.String() {
			return p, true
		}
	}
	return ProgramGenesis{}, false
}

func (g GenesisConfig) Validate() error {
	seen := make(map[string]struct{}, len(g.Staking))
	for _, p := range g.Staking {
		if _, err := staking.ParseVariant(p.Variant); err != nil {
			return err
		}
		if _, dup := seen[p.Variant]; dup {
			return fmt.Errorf("variant %s listed twice", p.Variant)
		}
		seen[p.Variant] = struct{}{}
		for _, pool := range p.Pools {
			if pool.Tier < 0 || pool.Tier >= len(staking.DefaultDurations) {
				return fmt.Errorf("%s pool tier %d out of range", p.Variant, pool.Tier)
			}
		}
	}
	if n := len(g.Whitelist.Beneficiaries); n != 0 && n != len(vesting.WhitelistShares) {
		return fmt.Errorf("whitelist needs %d beneficiaries, got %d", len(vesting.WhitelistShares), n)
	}
	if g.Rounding != "" {
		if _, err := vesting.ParseRounding(g.Rounding); err != nil {
			return err
		}
	}
	return nil
}

// ReadConfig reads JSON at path into GenesisConfig.
// Returns os.ErrNotExist if the file doesn't exist.
// Returns nil with zero-value GenesisConfig if the file is empty.
func ReadConfig(path string) (GenesisConfig, error) {
	var cfg GenesisConfig

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
		return cfg, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return cfg, fmt.Errorf("stat: %w", err)
	}
	if st.Size() == 0 {
		// Empty file -> zero cfg, no error.
		return cfg, nil
	}

	dec := json.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decode: %w", err)
	}
	return cfg, nil
}

// WriteConfig marshals cfg as pretty JSON and writes it to path atomically,
// preserving existing file permissions (defaults to 0644 if file doesn't exist).
func WriteConfig(path string, cfg GenesisConfig) error {
	mode := fs.FileMode(0o644)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode()
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat: %w", err)
	}

	// Marshal pretty with trailing newline.
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(path, data, mode); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, content []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		cleanup()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}

	// Atomic replace (POSIX). Fallback remove+rename if needed.
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpName, path); err2 != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("rename: %w (after remove: %v)", err, err2)
		}
	}

	// Best-effort fsync the directory for durability on crashes.
	_ = fsyncDir(dir)
	return nil
}

func fsyncDir(dir string) error {
	df, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer df.Close()
	return df.Sync()
}
