package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server ServerConfig
	Cache  CacheConfig
	Nonce  NonceConfig
	Chain  ChainConfig
	Verify VerifyConfig
}

type ServerConfig struct {
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type CacheConfig struct {
	MaxSize       int           `envconfig:"CACHE_MAX_SIZE" default:"1000"`
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"1h"`
	SweepInterval time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"10m"`
}

type NonceConfig struct {
	TTL                time.Duration `envconfig:"NONCE_TTL" default:"5m"`
	MaxSize            int           `envconfig:"NONCE_MAX_SIZE" default:"10000"`
	TimestampTolerance time.Duration `envconfig:"NONCE_TIMESTAMP_TOLERANCE" default:"5m"`
	StrictOrder        bool          `envconfig:"NONCE_STRICT_ORDER" default:"false"`
}

type ChainConfig struct {
	RPCURL           string        `envconfig:"CHAIN_RPC_URL" default:""`
	VerifierContract string        `envconfig:"VERIFIER_CONTRACT" default:""`
	CallTimeout      time.Duration `envconfig:"CHAIN_CALL_TIMEOUT" default:"15s"`
}

// Enabled reports whether the on-chain pathway is configured.
func (c ChainConfig) Enabled() bool {
	return c.RPCURL != ""
}

type VerifyConfig struct {
	ThresholdAmount uint64 `envconfig:"VERIFY_THRESHOLD_AMOUNT" default:"1000"`
	MaximumAmount   uint64 `envconfig:"VERIFY_MAXIMUM_AMOUNT" default:"0"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
