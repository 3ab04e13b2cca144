package walletflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gocloud.dev/blob"

	"github.com/MrEthical07/walletflow/internal/audit"
	"github.com/MrEthical07/walletflow/internal/stores"
	"github.com/MrEthical07/walletflow/onboarding"

	// Store.BucketURL supports file:// and mem:// out of the box; link other
	// gocloud drivers (s3blob, gcsblob, azureblob) in the main package.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Builder assembles an Engine. A Builder can be used for exactly one Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	bucket *blob.Bucket
	log    *zerolog.Logger

	createWallet  *onboarding.CreateWalletProvider
	restoreWallet *onboarding.RestoreWalletProvider

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis persists snapshots in Redis. It takes precedence over a bucket.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithBucket persists snapshots as objects in bucket. The engine does not
// close a bucket it did not open.
func (b *Builder) WithBucket(bucket *blob.Bucket) *Builder {
	b.bucket = bucket
	return b
}

func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.log = &log
	return b
}

func (b *Builder) WithCreateWalletProvider(p onboarding.CreateWalletProvider) *Builder {
	b.createWallet = &p
	return b
}

func (b *Builder) WithRestoreWalletProvider(p onboarding.RestoreWalletProvider) *Builder {
	b.restoreWallet = &p
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. Flow
// providers are optional; an engine without them can still inspect and
// discard persisted flows.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- LOGGER --------
	log := zerolog.Nop()
	if b.log != nil {
		log = *b.log
	}
	level, _ := zerolog.ParseLevel(cfg.Logging.Level)
	log = log.Level(level).With().Str("component", "walletflow").Logger()

	// -------- SNAPSHOT STORE --------
	var (
		store      stores.SnapshotStore
		ownsBucket *stores.BlobSnapshotStore
	)
	switch {
	case b.redis != nil:
		store = stores.NewRedisSnapshotStore(b.redis, cfg.Store.RedisPrefix)
	case b.bucket != nil:
		store = stores.NewBlobSnapshotStoreFromBucket(b.bucket, cfg.Store.BlobPrefix)
	case cfg.Store.BucketURL != "":
		bs, err := stores.NewBlobSnapshotStore(context.Background(), cfg.Store.BucketURL, cfg.Store.BlobPrefix)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
		}
		store, ownsBucket = bs, bs
	default:
		return nil, errors.New("snapshot store required: redis client, bucket or Store.BucketURL")
	}

	// -------- LIVE CACHE --------
	cache, err := lru.New[string, liveFlow](cfg.Cache.Size)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		store:      store,
		ownsBucket: ownsBucket,
		cache:      cache,
		log:        log,
		metrics:    NewMetrics(cfg.Metrics),
		now:        timeNow,
		newID:      newFlowID,
	}
	engine.audit = audit.NewDispatcher(audit.Config(cfg.Audit), b.auditSink,
		audit.WithClock(func() time.Time { return engine.now() }))

	if b.createWallet != nil {
		p := *b.createWallet
		engine.createWallet = &p
	}
	if b.restoreWallet != nil {
		p := *b.restoreWallet
		if p.BlockDuration == 0 {
			p.BlockDuration = cfg.Restore.BlockDuration
		}
		if p.Network == "" {
			p.Network = cfg.Restore.Network
		}
		engine.restoreWallet = &p
	}

	b.built = true

	log.Debug().
		Bool("create_wallet", engine.createWallet != nil).
		Bool("restore_wallet", engine.restoreWallet != nil).
		Bool("audit", engine.audit != nil).
		Msg("engine built")

	return engine, nil
}
