package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickem/internal/money"
)

const organizer = "0x00000000000000000000000000000000000000AA"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ORGANIZER_ADDRESS", organizer)

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", string(cfg.Organizer))
	assert.True(t, cfg.Params.MinEntryFee.Equal(money.MustParse("0.01")))
	assert.Equal(t, time.Hour, cfg.Params.MinDuration)
	assert.Equal(t, 90*24*time.Hour, cfg.Params.MaxDuration)
	assert.Equal(t, time.Minute, cfg.LockWatchInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ORGANIZER_ADDRESS", organizer)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_PATH", ":memory:")
	t.Setenv("MIN_ENTRY_FEE", "0.5")
	t.Setenv("MIN_DURATION", "30m")
	t.Setenv("TREASURY_URL", "http://treasury.local")
	t.Setenv("TREASURY_TOKEN", "secret")
	t.Setenv("LOCK_WATCH_INTERVAL", "10s")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.True(t, cfg.Params.MinEntryFee.Equal(money.MustParse("0.5")))
	assert.Equal(t, 30*time.Minute, cfg.Params.MinDuration)
	assert.Equal(t, "http://treasury.local", cfg.TreasuryURL)
	assert.Equal(t, 10*time.Second, cfg.LockWatchInterval)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing organizer", env: map[string]string{}},
		{name: "bad organizer", env: map[string]string{"ORGANIZER_ADDRESS": "alice"}},
		{name: "bad fee", env: map[string]string{"ORGANIZER_ADDRESS": organizer, "MIN_ENTRY_FEE": "lots"}},
		{name: "inverted window", env: map[string]string{"ORGANIZER_ADDRESS": organizer, "MIN_DURATION": "3h", "MAX_DURATION": "2h"}},
		{name: "unknown backend", env: map[string]string{"ORGANIZER_ADDRESS": organizer, "STORE_BACKEND": "postgres"}},
		{name: "treasury without token", env: map[string]string{"ORGANIZER_ADDRESS": organizer, "TREASURY_URL": "http://x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(NewViper(), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pickem.yaml")
	require.NoError(t, os.WriteFile(path, []byte("organizer_address: \""+organizer+"\"\nport: \"7000\"\n"), 0o600))

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PICKEM_TEST_VALUE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PICKEM_TEST_VALUE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("PICKEM_TEST_VALUE"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
