// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/artiart/lazymint/mechanisms/evm"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is the service configuration.
type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`
	JWTSecret   string `env:"JWT_SECRET"`

	ChainID       uint64 `env:"CHAIN_ID" envDefault:"31337"`
	OwnerAddress  string `env:"OWNER_ADDRESS"`
	SignerAddress string `env:"SIGNER_ADDRESS"`
	LedgerAddress string `env:"LEDGER_ADDRESS"`
	ZoneAddress   string `env:"ZONE_ADDRESS"`

	// DatabasePath selects the SQLite store; empty keeps state in memory.
	DatabasePath string `env:"DATABASE_PATH"`
	// LedgerDatabases are further deployed SQLite ledgers the zone can be
	// pointed at. Each registers under its own ledger address.
	LedgerDatabases []string `env:"LEDGER_DATABASES" envSeparator:","`

	// RedisURL shares idempotency state across replicas; empty keeps it in memory.
	RedisURL       string        `env:"REDIS_URL"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"10m"`
}

// Load reads .env when present, then parses the process environment.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environment map[string]string) (Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value formats. Addresses may be empty.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("ENVIRONMENT must be one of development, production, test: %q", c.Environment))
	}
	if c.ChainID == 0 {
		errs = append(errs, errors.New("CHAIN_ID must be positive"))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, fmt.Errorf("IDEMPOTENCY_TTL must be positive: %s", c.IdempotencyTTL))
	}

	for name, value := range map[string]string{
		"OWNER_ADDRESS":  c.OwnerAddress,
		"SIGNER_ADDRESS": c.SignerAddress,
		"LEDGER_ADDRESS": c.LedgerAddress,
		"ZONE_ADDRESS":   c.ZoneAddress,
	} {
		if value == "" {
			continue
		}
		if _, err := evm.ParseAddress(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ChainIDBig returns the chain id as a big.Int.
func (c Config) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.ChainID)
}

// Owner returns OWNER_ADDRESS, or the zero address when unset.
func (c Config) Owner() common.Address { return optionalAddress(c.OwnerAddress) }

// Signer returns SIGNER_ADDRESS, or the zero address when unset.
func (c Config) Signer() common.Address { return optionalAddress(c.SignerAddress) }

// Ledger returns LEDGER_ADDRESS and whether it was set.
func (c Config) Ledger() (common.Address, bool) {
	return optionalAddress(c.LedgerAddress), c.LedgerAddress != ""
}

// Zone returns ZONE_ADDRESS and whether it was set.
func (c Config) Zone() (common.Address, bool) {
	return optionalAddress(c.ZoneAddress), c.ZoneAddress != ""
}

func optionalAddress(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

// NewLogger builds the service logger: JSON in production, console otherwise.
// LOG_LEVEL overrides the default level.
func (c Config) NewLogger() (*zap.Logger, error) {
	var zc zap.Config
	if c.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	if c.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(c.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zc.Level = level
	}
	return zc.Build(zap.Fields(zap.String("environment", c.Environment)))
}
