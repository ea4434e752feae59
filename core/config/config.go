package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override,
// e.g. HEALTHLEDGER_SERVER_LISTEN_ADDR.
const EnvPrefix = "HEALTHLEDGER"

type NodeCfg struct {
	Name    string `mapstructure:"name"`
	ChainID string `mapstructure:"chain_id"`
}

type ServerCfg struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type LedgerCfg struct {
	Difficulty       int           `mapstructure:"difficulty"`
	AutoMineInterval time.Duration `mapstructure:"auto_mine_interval"`
	GenesisTime      string        `mapstructure:"genesis_time"`
}

type EmergencyCfg struct {
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

type WarningCfg struct {
	RulesFile string `mapstructure:"rules_file"`
}

type StorageCfg struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type CryptoCfg struct {
	// DEK is a base64 encoded 32 byte data encryption key.
	DEK        string `mapstructure:"dek"`
	Passphrase string `mapstructure:"passphrase"`
	Salt       string `mapstructure:"salt"`
	KeyDir     string `mapstructure:"key_dir"`
	SignTxs    bool   `mapstructure:"sign_transactions"`
}

type AuthCfg struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingCfg struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type Config struct {
	Node      NodeCfg      `mapstructure:"node"`
	Server    ServerCfg    `mapstructure:"server"`
	Ledger    LedgerCfg    `mapstructure:"ledger"`
	Emergency EmergencyCfg `mapstructure:"emergency"`
	Warning   WarningCfg   `mapstructure:"warning"`
	Storage   StorageCfg   `mapstructure:"storage"`
	Crypto    CryptoCfg    `mapstructure:"crypto"`
	Auth      AuthCfg      `mapstructure:"auth"`
	Logging   LoggingCfg   `mapstructure:"logging"`
}

var cfg *Config

// SetDefaults registers default values on v. Every key gets one, even an
// empty one, so that environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("node.name", "healthledger-node")
	v.SetDefault("node.chain_id", "healthledger-dev")
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("ledger.difficulty", 0)
	v.SetDefault("ledger.auto_mine_interval", "0s")
	v.SetDefault("ledger.genesis_time", "2024-04-30T00:00:00Z")
	v.SetDefault("emergency.max_duration", "0s")
	v.SetDefault("warning.rules_file", "")
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.path", "./healthledger_db")
	v.SetDefault("crypto.dek", "")
	v.SetDefault("crypto.passphrase", "")
	v.SetDefault("crypto.key_dir", ".")
	v.SetDefault("crypto.salt", "healthledger")
	v.SetDefault("crypto.sign_transactions", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "healthledger")
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// BindEnv wires HEALTHLEDGER_* environment overrides into v. Values from
// a .env file in the working directory are loaded first; a missing file
// is not an error.
func BindEnv(v *viper.Viper) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env (%v)\n", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load populates the global config from a viper instance.
func Load(v *viper.Viper) error {
	SetDefaults(v)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = &c
	return nil
}

// Validate rejects settings the node cannot run with.
func (c *Config) Validate() error {
	if c.Ledger.Difficulty < 0 || c.Ledger.Difficulty > 8 {
		return fmt.Errorf("ledger.difficulty must be between 0 and 8, got %d", c.Ledger.Difficulty)
	}
	if c.Emergency.MaxDuration < 0 {
		return fmt.Errorf("emergency.max_duration must not be negative")
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage is enabled")
	}
	if c.Ledger.GenesisTime != "" {
		if _, err := time.Parse(time.RFC3339, c.Ledger.GenesisTime); err != nil {
			return fmt.Errorf("ledger.genesis_time must be RFC3339: %w", err)
		}
	}
	return nil
}

// GenesisTime returns the parsed genesis timestamp.
func (c *Config) GenesisTime() time.Time {
	t, err := time.Parse(time.RFC3339, c.Ledger.GenesisTime)
	if err != nil {
		return time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	}
	return t.UTC()
}

// Get returns the loaded config, or one holding defaults when Load has
// not been called.
func Get() *Config {
	if cfg == nil {
		v := viper.New()
		if err := Load(v); err != nil {
			cfg = &Config{}
		}
	}
	return cfg
}
