package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEDGER_OWNER_IDENTITY", "artist")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Addr)
	assert.Equal(t, "artist", cfg.OwnerIdentity)
	assert.Equal(t, "custody", cfg.CustodyID)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "ledger.db", cfg.BoltPath)
	assert.Empty(t, cfg.BankURL)
	assert.Equal(t, 5*time.Second, cfg.BankTimeout)
	assert.False(t, cfg.LogDevelopment)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_OWNER_IDENTITY", "artist")
	t.Setenv("LEDGER_ADDR", ":9000")
	t.Setenv("LEDGER_STORAGE", "bolt")
	t.Setenv("LEDGER_BOLT_PATH", "/tmp/x.db")
	t.Setenv("LEDGER_BANK_URL", "http://bank.local")
	t.Setenv("LEDGER_BANK_TIMEOUT", "250ms")
	t.Setenv("LEDGER_BANK_SEED", "alice:100,bob:50")
	t.Setenv("LEDGER_LOG_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, StorageBolt, cfg.Storage)
	assert.Equal(t, "/tmp/x.db", cfg.BoltPath)
	assert.Equal(t, "http://bank.local", cfg.BankURL)
	assert.Equal(t, 250*time.Millisecond, cfg.BankTimeout)
	assert.Equal(t, map[string]uint64{"alice": 100, "bob": 50}, cfg.BankSeed)
	assert.True(t, cfg.LogDevelopment)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing owner", func(t *testing.T) {
		t.Setenv("LEDGER_OWNER_IDENTITY", "")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("unknown storage", func(t *testing.T) {
		t.Setenv("LEDGER_OWNER_IDENTITY", "artist")
		t.Setenv("LEDGER_STORAGE", "postgres")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown storage")
	})
	t.Run("owner is custody", func(t *testing.T) {
		t.Setenv("LEDGER_OWNER_IDENTITY", "custody")
		_, err := Load()
		assert.ErrorContains(t, err, "must differ")
	})
}
