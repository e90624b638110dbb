// Package config loads process settings from the environment, an optional
// .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pickem/internal/ledger"
	"pickem/internal/money"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds everything pickemd needs at startup.
type Config struct {
	Port              string
	DatabasePath      string
	StoreBackend      string
	Organizer         ledger.Address
	AuthSecret        string
	AttestationKey    string
	LedgerID          string
	Params            ledger.Params
	TelegramBotToken  string
	ChannelID         string
	TreasuryURL       string
	TreasuryToken     string
	LockWatchInterval time.Duration
}

// NewViper returns a viper instance with defaults set and environment
// variables bound. Commands bind their flags into it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("port", "8080")
	v.SetDefault("database_path", "/app/data/pickem.db")
	v.SetDefault("store_backend", BackendSQLite)
	v.SetDefault("ledger_id", "pickem")
	v.SetDefault("min_entry_fee", "0.01")
	v.SetDefault("min_duration", "1h")
	v.SetDefault("max_duration", "2160h")
	v.SetDefault("lock_watch_interval", "1m")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// keys without defaults are only seen by AutomaticEnv once bound
	for _, key := range []string{
		"organizer_address", "auth_secret", "attestation_key",
		"telegram_bot_token", "channel_id", "treasury_url", "treasury_token",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

// LoadDotEnv reads .env files into the process environment. A missing file
// is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads an optional config file and resolves the final Config.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:              v.GetString("port"),
		DatabasePath:      v.GetString("database_path"),
		StoreBackend:      strings.ToLower(v.GetString("store_backend")),
		AuthSecret:        v.GetString("auth_secret"),
		AttestationKey:    v.GetString("attestation_key"),
		LedgerID:          v.GetString("ledger_id"),
		TelegramBotToken:  v.GetString("telegram_bot_token"),
		ChannelID:         v.GetString("channel_id"),
		TreasuryURL:       v.GetString("treasury_url"),
		TreasuryToken:     v.GetString("treasury_token"),
		LockWatchInterval: v.GetDuration("lock_watch_interval"),
	}

	if cfg.DatabasePath == "" || cfg.DatabasePath == ":memory:" {
		cfg.StoreBackend = BackendMemory
	}
	if cfg.StoreBackend != BackendSQLite && cfg.StoreBackend != BackendMemory {
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	organizer, err := ledger.ParseAddress(v.GetString("organizer_address"))
	if err != nil {
		return nil, fmt.Errorf("ORGANIZER_ADDRESS: %w", err)
	}
	cfg.Organizer = organizer

	fee, err := money.Parse(v.GetString("min_entry_fee"))
	if err != nil {
		return nil, fmt.Errorf("MIN_ENTRY_FEE: %w", err)
	}
	cfg.Params = ledger.Params{
		MinEntryFee: fee,
		MinDuration: v.GetDuration("min_duration"),
		MaxDuration: v.GetDuration("max_duration"),
	}
	if cfg.Params.MinDuration <= 0 || cfg.Params.MaxDuration < cfg.Params.MinDuration {
		return nil, fmt.Errorf("invalid duration window %s..%s", cfg.Params.MinDuration, cfg.Params.MaxDuration)
	}
	if cfg.LockWatchInterval <= 0 {
		return nil, fmt.Errorf("LOCK_WATCH_INTERVAL must be positive")
	}
	if cfg.TreasuryURL != "" && cfg.TreasuryToken == "" {
		return nil, fmt.Errorf("TREASURY_TOKEN is required when TREASURY_URL is set")
	}

	return cfg, nil
}
