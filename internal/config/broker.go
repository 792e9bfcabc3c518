package config

import (
	"errors"
	"time"
)

type BrokerConfig struct {
	// DBPath is the path to the BoltDB file holding the committed ledger.
	// Default: "./data/broker-engine.db"
	DBPath string

	// PersistenceEnabled controls whether committed calls are written to disk.
	// Default: true
	PersistenceEnabled bool

	// GenesisPath points at the YAML file that bootstraps an empty ledger
	// and lists the pools to register on every start.
	GenesisPath string

	// BrokerAddress is used when no genesis file is configured.
	BrokerAddress string

	// RateLimit and RateBurst bound requests per client IP per second.
	RateLimit int
	RateBurst int

	// SignatureMaxAge is how far X-Timestamp may drift from the server clock.
	SignatureMaxAge time.Duration

	// NonceCapacity bounds how many signed-request nonces are remembered.
	NonceCapacity int
}

func (c *BrokerConfig) Key() string {
	return BROKER_CONFIG_KEY
}

func (c *BrokerConfig) Load() error {
	c.DBPath = GetEnvOrDefault("BROKER_DB_PATH", "./data/broker-engine.db")
	c.PersistenceEnabled = GetEnvOrDefaultBool("BROKER_PERSISTENCE_ENABLED", true)
	c.GenesisPath = GetEnvOrDefault("BROKER_GENESIS_PATH", "")
	c.BrokerAddress = GetEnvOrDefault("BROKER_ADDRESS", "")
	c.RateLimit = GetEnvOrDefaultInt("BROKER_RATE_LIMIT", 10)
	c.RateBurst = GetEnvOrDefaultInt("BROKER_RATE_BURST", 20)
	c.SignatureMaxAge = time.Duration(GetEnvOrDefaultInt("BROKER_SIGNATURE_MAX_AGE_SEC", 60)) * time.Second
	c.NonceCapacity = GetEnvOrDefaultInt("BROKER_NONCE_CAPACITY", 65536)
	return c.Validate()
}

func (c *BrokerConfig) Validate() error {
	if c.PersistenceEnabled && c.DBPath == "" {
		return errors.New("broker config: db path required when persistence is enabled")
	}
	if c.GenesisPath == "" && c.BrokerAddress == "" {
		return errors.New("broker config: either a genesis path or a broker address is required")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return errors.New("broker config: rate limit and burst must be positive")
	}
	if c.NonceCapacity < 0 {
		return errors.New("broker config: nonce capacity must not be negative")
	}
	if c.SignatureMaxAge <= 0 {
		return errors.New("broker config: signature max age must be positive")
	}
	return nil
}
