package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StorageMemory = "memory"
	StorageBolt   = "bolt"
)

// Config controls the ledger server.
type Config struct {
	Addr           string            `env:"LEDGER_ADDR"             envDefault:":8081"`
	OwnerIdentity  string            `env:"LEDGER_OWNER_IDENTITY,required,notEmpty"`
	CustodyID      string            `env:"LEDGER_CUSTODY_IDENTITY" envDefault:"custody"`
	Storage        string            `env:"LEDGER_STORAGE"          envDefault:"memory"`
	BoltPath       string            `env:"LEDGER_BOLT_PATH"        envDefault:"ledger.db"`
	BankURL        string            `env:"LEDGER_BANK_URL"`
	BankTimeout    time.Duration     `env:"LEDGER_BANK_TIMEOUT"     envDefault:"5s"`
	BankSeed       map[string]uint64 `env:"LEDGER_BANK_SEED"`
	LogDevelopment bool              `env:"LEDGER_LOG_DEV"`
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.Storage {
	case StorageMemory, StorageBolt:
	default:
		return Config{}, fmt.Errorf("unknown storage %q, want %q or %q", cfg.Storage, StorageMemory, StorageBolt)
	}
	if cfg.OwnerIdentity == cfg.CustodyID {
		return Config{}, fmt.Errorf("owner and custody identity must differ")
	}
	return cfg, nil
}
