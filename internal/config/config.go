// Package config loads process settings from an optional YAML file with
// VAULTLEDGER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/oracle"
)

// EnvPrefix prefixes every environment override: http.port is read from
// VAULTLEDGER_HTTP_PORT.
const EnvPrefix = "VAULTLEDGER"

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig selects the source-of-truth store. An empty URL keeps
// state in memory.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig enables the read-through cache and the redis-backed spot
// and price tables.
type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// KafkaConfig configures the event consumer. No brokers disables it.
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	GroupID  string   `mapstructure:"group_id"`
	MinBytes int      `mapstructure:"min_bytes"`
	MaxBytes int      `mapstructure:"max_bytes"`
}

type IngestConfig struct {
	HaltOnConflict bool          `mapstructure:"halt_on_conflict"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type LedgerConfig struct {
	// FeeReferenceToken names the currency fee totals are valued in.
	FeeReferenceToken string `mapstructure:"fee_reference_token"`
}

// OracleConfig holds static prices, used when redis is not configured.
// Prices map token address to the reference value of one whole token.
type OracleConfig struct {
	Prices   map[string]string `mapstructure:"prices"`
	Decimals uint32            `mapstructure:"decimals"`
}

// Load reads the file at path, if any, and applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.cache_ttl", 30*time.Second)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "vault-events")
	v.SetDefault("kafka.group_id", "vault-ledger")
	v.SetDefault("kafka.min_bytes", 1)
	v.SetDefault("kafka.max_bytes", 10<<20)
	v.SetDefault("ingest.halt_on_conflict", true)
	v.SetDefault("ingest.retry_backoff", 2*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("ledger.fee_reference_token", "usdc")
	v.SetDefault("oracle.prices", map[string]string{})
	v.SetDefault("oracle.decimals", 18)
}

// Validate checks ranges and that the log level and static prices parse.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port %d", ErrInvalid, c.HTTP.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("%w: kafka.topic is required with brokers", ErrInvalid)
	}
	if c.Redis.CacheTTL < 0 {
		return fmt.Errorf("%w: redis.cache_ttl %s", ErrInvalid, c.Redis.CacheTTL)
	}
	if c.Oracle.Decimals > amount.MaxDecimals {
		return fmt.Errorf("%w: oracle.decimals %d", ErrInvalid, c.Oracle.Decimals)
	}
	if _, err := c.StaticQuotes(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses log.level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return lvl, nil
}

// StaticQuotes converts oracle.prices into oracle quotes.
func (c *Config) StaticQuotes() (map[ident.Address]oracle.Quote, error) {
	out := make(map[ident.Address]oracle.Quote, len(c.Oracle.Prices))
	for token, price := range c.Oracle.Prices {
		addr, err := ident.ParseAddress(token)
		if err != nil {
			return nil, fmt.Errorf("%w: oracle.prices: %w", ErrInvalid, err)
		}
		p, err := amount.Parse(price)
		if err != nil {
			return nil, fmt.Errorf("%w: oracle.prices[%s]: %w", ErrInvalid, token, err)
		}
		out[addr] = oracle.Quote{Price: p, Decimals: c.Oracle.Decimals}
	}
	return out, nil
}

// CacheEnabled reports whether the redis read-through cache fronts the
// postgres store.
func (c *Config) CacheEnabled() bool {
	return c.Database.URL != "" && c.Redis.URL != ""
}
