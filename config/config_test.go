package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8099", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Ledger.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Redis.BalanceTTL)
	assert.Equal(t, "100", cfg.Interest.MinBalance)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FUNDHUB_SERVER_PORT", "9000")
	t.Setenv("FUNDHUB_DATABASE_DRIVER", "sqlite")
	t.Setenv("FUNDHUB_LEDGER_MAX_RETRIES", "9")
	t.Setenv("FUNDHUB_CANCELLATION_SWEEP_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 9, cfg.Ledger.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Cancellation.SweepInterval)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
