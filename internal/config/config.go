package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	initpkg "github.com/bioneo/stakeledger/cmd/initializer/pkg"
	"github.com/bioneo/stakeledger/internal/staking"
	"github.com/bioneo/stakeledger/internal/tokenomics"
	"github.com/bioneo/stakeledger/internal/vesting"
)

const (
	AuthHeader    = "header"
	AuthSignature = "signature"
)

type Config struct {
	Env       string `mapstructure:"LEDGER_ENV"`
	HTTPAddr  string `mapstructure:"LEDGER_HTTP_ADDR"`
	PublicURL string `mapstructure:"LEDGER_PUBLIC_ORIGIN"`
	LogLevel  string `mapstructure:"LEDGER_LOG_LEVEL"`

	Database DBConfig       `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Auth     AuthConfig     `mapstructure:",squash"`
	Staking  StakingConfig  `mapstructure:",squash"`
	Vesting  VestingConfig  `mapstructure:",squash"`
	Jobs     JobsConfig     `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`

	GenesisPath string `mapstructure:"LEDGER_GENESIS_PATH"`
	// Loaded from the genesis file, or derived from the token plan
	Genesis initpkg.GenesisConfig `mapstructure:"-"`
}

type DBConfig struct {
	// PostgresDSN is optional; an empty DSN keeps the journal in memory.
	PostgresDSN string `mapstructure:"LEDGER_POSTGRES_DSN"`
}

type CacheConfig struct {
	// KVBackend is "redis" or "memory".
	KVBackend string `mapstructure:"LEDGER_KV_BACKEND"`
	RedisAddr string `mapstructure:"LEDGER_REDIS_ADDR"`
}

type AuthConfig struct {
	Mode  string `mapstructure:"LEDGER_AUTH_MODE"`
	Admin string `mapstructure:"LEDGER_ADMIN"`
}

type StakingConfig struct {
	LPCapacity  int    `mapstructure:"LEDGER_LP_CAPACITY"`
	NFTCapacity int    `mapstructure:"LEDGER_NFT_CAPACITY"`
	Policy      string `mapstructure:"LEDGER_UNSTAKE_POLICY"`
	ReferralBps uint64 `mapstructure:"LEDGER_REFERRAL_BPS"`
	RewardAsset string `mapstructure:"LEDGER_REWARD_ASSET"`
	LPAsset     string `mapstructure:"LEDGER_LP_ASSET"`
}

type VestingConfig struct {
	Rounding     string `mapstructure:"LEDGER_VESTING_ROUNDING"`
	PaymentAsset string `mapstructure:"LEDGER_IDO_PAYMENT_ASSET"`
}

type JobsConfig struct {
	StatsInterval time.Duration `mapstructure:"LEDGER_STATS_INTERVAL"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"LEDGER_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"LEDGER_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
		filepath.Join("..", "..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // env vars already set take precedence
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LEDGER_ENV", "dev")
	v.SetDefault("LEDGER_HTTP_ADDR", ":8080")
	v.SetDefault("LEDGER_PUBLIC_ORIGIN", "http://localhost:3000")
	v.SetDefault("LEDGER_LOG_LEVEL", "")
	v.SetDefault("LEDGER_POSTGRES_DSN", "")
	v.SetDefault("LEDGER_KV_BACKEND", "memory")
	v.SetDefault("LEDGER_REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("LEDGER_AUTH_MODE", AuthHeader)
	v.SetDefault("LEDGER_ADMIN", "admin")
	v.SetDefault("LEDGER_LP_CAPACITY", staking.VariantLP.DefaultCapacity())
	v.SetDefault("LEDGER_NFT_CAPACITY", staking.VariantNFT.DefaultCapacity())
	v.SetDefault("LEDGER_UNSTAKE_POLICY", "settle")
	v.SetDefault("LEDGER_REFERRAL_BPS", 1000)
	v.SetDefault("LEDGER_REWARD_ASSET", "BIO")
	v.SetDefault("LEDGER_LP_ASSET", "BIO-LP")
	v.SetDefault("LEDGER_VESTING_ROUNDING", "")
	v.SetDefault("LEDGER_IDO_PAYMENT_ASSET", "USDC")
	v.SetDefault("LEDGER_STATS_INTERVAL", "10s")
	v.SetDefault("LEDGER_RATE_LIMIT_RPM", 120)
	v.SetDefault("LEDGER_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("LEDGER_GENESIS_PATH", "")
}

func Load() (*Config, error) {
	loadDotEnvFiles()
	return load(viper.New(), time.Now())
}

func load(v *viper.Viper, now time.Time) (*Config, error) {
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// Handle array parsing for comma-separated values
	if origins := v.GetString("LEDGER_CORS_ALLOWED_ORIGINS"); origins != "" {
		v.Set("LEDGER_CORS_ALLOWED_ORIGINS", strings.Split(origins, ","))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.loadGenesis(now); err != nil {
		return nil, fmt.Errorf("failed to load genesis: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// loadGenesis reads LEDGER_GENESIS_PATH, then the default locations. When no
// file exists the genesis is derived from the default token plan.
func (c *Config) loadGenesis(now time.Time) error {
	paths := []string{
		"./cmd/initializer/genesis.json",
		"../cmd/initializer/genesis.json",
		"../../cmd/initializer/genesis.json",
	}
	if c.GenesisPath != "" {
		genesis, err := initpkg.ReadConfig(c.GenesisPath)
		if err != nil {
			return fmt.Errorf("error reading genesis at %s: %w", c.GenesisPath, err)
		}
		c.Genesis = genesis
		return nil
	}

	for _, path := range paths {
		genesis, err := initpkg.ReadConfig(path)
		if err == nil {
			c.GenesisPath = path
			c.Genesis = genesis
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error reading genesis at %s: %w", path, err)
		}
	}

	c.Genesis = initpkg.DefaultGenesis(tokenomics.Default(), uint64(now.Unix()))
	return nil
}

func (c *Config) validate() error {
	switch c.Env {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("invalid LEDGER_ENV %q (must be dev, test, or prod)", c.Env)
	}
	switch c.Auth.Mode {
	case AuthHeader, AuthSignature:
	default:
		return fmt.Errorf("invalid LEDGER_AUTH_MODE %q (must be header or signature)", c.Auth.Mode)
	}
	if c.IsProd() && c.Auth.Mode != AuthSignature {
		return fmt.Errorf("LEDGER_AUTH_MODE must be signature in prod")
	}
	if c.Auth.Admin == "" {
		return fmt.Errorf("LEDGER_ADMIN is required")
	}
	switch c.Cache.KVBackend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("LEDGER_REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid LEDGER_KV_BACKEND %q (must be memory or redis)", c.Cache.KVBackend)
	}
	if c.Staking.LPCapacity <= 0 || c.Staking.NFTCapacity <= 0 {
		return fmt.Errorf("ledger capacities must be positive")
	}
	if c.Staking.ReferralBps > 10_000 {
		return fmt.Errorf("LEDGER_REFERRAL_BPS %d exceeds 10000", c.Staking.ReferralBps)
	}
	if _, err := c.UnstakePolicy(); err != nil {
		return err
	}
	if _, err := c.Rounding(); err != nil {
		return err
	}
	if c.Jobs.StatsInterval <= 0 {
		return fmt.Errorf("LEDGER_STATS_INTERVAL must be positive")
	}
	return c.Genesis.Validate()
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

func (c *Config) UnstakePolicy() (staking.UnstakePolicy, error) {
	return staking.ParseUnstakePolicy(c.Staking.Policy)
}

// Rounding prefers LEDGER_VESTING_ROUNDING over the genesis value.
func (c *Config) Rounding() (vesting.Rounding, error) {
	if c.Vesting.Rounding != "" {
		return vesting.ParseRounding(c.Vesting.Rounding)
	}
	return vesting.ParseRounding(c.Genesis.Rounding)
}

// Capacity returns the ledger capacity of variant.
func (c *Config) Capacity(v staking.Variant) int {
	if v == staking.VariantNFT {
		return c.Staking.NFTCapacity
	}
	return c.Staking.LPCapacity
}
