package walletflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/walletflow/keys"
	"github.com/rs/zerolog"
)

// Config is the engine configuration. Build copies it; later changes to the
// caller's value have no effect.
type Config struct {
	Restore RestoreConfig
	Store   StoreConfig
	Cache   CacheConfig
	Audit   AuditConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

/*
====================================
RESTORE CONFIG
====================================
*/

// RestoreConfig fills restore-wallet provider fields left at their zero value.
type RestoreConfig struct {
	// BlockDuration is how long the phone-OTP path stays locked after the
	// gateway reports a block.
	BlockDuration time.Duration
	// Network selects the cluster for keys derived on the keychain path.
	Network keys.Network
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls snapshot persistence.
type StoreConfig struct {
	RedisPrefix string
	// BucketURL is opened with gocloud blob.OpenBucket when no Redis client or
	// bucket is passed to the Builder.
	BucketURL  string
	BlobPrefix string
	// FlowTTL bounds how long an abandoned flow can be resumed.
	FlowTTL time.Duration
	// FinishedTTL is the retention of a flow's terminal snapshot.
	FinishedTTL time.Duration
}

/*
====================================
CACHE / AUDIT / METRICS / LOGGING
====================================
*/

// CacheConfig sizes the in-process cache of live flow machines.
type CacheConfig struct {
	Size int
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// LoggingConfig sets the minimum level applied to the Builder's logger.
type LoggingConfig struct {
	Level string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Restore: RestoreConfig{
			BlockDuration: 10 * time.Minute,
			Network:       keys.MainnetBeta,
		},
		Store: StoreConfig{
			RedisPrefix: "wfs",
			BlobPrefix:  "walletflow/",
			FlowTTL:     24 * time.Hour,
			FinishedTTL: time.Hour,
		},
		Cache: CacheConfig{
			Size: 4096,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration and returns an error wrapping
// ErrInvalidConfig on the first problem found.
func (c *Config) Validate() error {
	// Restore
	if c.Restore.BlockDuration <= 0 {
		return invalid("Restore BlockDuration must be > 0")
	}
	switch c.Restore.Network {
	case keys.MainnetBeta, keys.Testnet, keys.Devnet:
	default:
		return invalid("Restore Network %q is not supported", c.Restore.Network)
	}

	// Store
	if c.Store.FlowTTL <= 0 {
		return invalid("Store FlowTTL must be > 0")
	}
	if c.Store.FinishedTTL <= 0 {
		return invalid("Store FinishedTTL must be > 0")
	}
	if c.Store.FinishedTTL > c.Store.FlowTTL {
		return invalid("Store FinishedTTL must be <= FlowTTL")
	}
	if strings.ContainsAny(c.Store.RedisPrefix, " \t\n") {
		return invalid("Store RedisPrefix must not contain whitespace")
	}

	// Cache
	if c.Cache.Size <= 0 {
		return invalid("Cache Size must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalid("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalid("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Logging
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return invalid("Logging Level %q is invalid", c.Logging.Level)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}
