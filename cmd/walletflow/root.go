package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/walletflow"
	"github.com/MrEthical07/walletflow/keys"
	"github.com/MrEthical07/walletflow/onboarding"
)

var (
	flagConfig string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:           "walletflow",
	Short:         "Inspect, discard and simulate persisted wallet onboarding flows",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (yaml, toml or json); WALLETFLOW_CONFIG also works")
	pf.String("redis-addr", "", "redis address holding flow snapshots")
	pf.String("redis-prefix", "wfs", "snapshot key prefix")
	pf.String("bucket-url", "", "gocloud bucket URL holding flow snapshots (file://, mem://)")
	pf.String("log-level", "info", "log level")

	_ = v.BindPFlag("store.redis_addr", pf.Lookup("redis-addr"))
	_ = v.BindPFlag("store.redis_prefix", pf.Lookup("redis-prefix"))
	_ = v.BindPFlag("store.bucket_url", pf.Lookup("bucket-url"))
	_ = v.BindPFlag("logging.level", pf.Lookup("log-level"))

	rootCmd.AddCommand(inspectCmd, deleteCmd, simulateCmd)
}

func initConfig() error {
	defaults := walletflow.DefaultConfig()
	v.SetDefault("store.flow_ttl", defaults.Store.FlowTTL)
	v.SetDefault("store.finished_ttl", defaults.Store.FinishedTTL)
	v.SetDefault("store.blob_prefix", defaults.Store.BlobPrefix)
	v.SetDefault("restore.block_duration", defaults.Restore.BlockDuration)
	v.SetDefault("restore.network", string(defaults.Restore.Network))
	v.SetDefault("cache.size", defaults.Cache.Size)
	v.SetDefault("audit.enabled", false)

	v.SetEnvPrefix("WALLETFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := flagConfig
	if path == "" {
		path = os.Getenv("WALLETFLOW_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func engineConfig() walletflow.Config {
	cfg := walletflow.DefaultConfig()
	cfg.Store.RedisPrefix = v.GetString("store.redis_prefix")
	cfg.Store.BucketURL = v.GetString("store.bucket_url")
	cfg.Store.BlobPrefix = v.GetString("store.blob_prefix")
	cfg.Store.FlowTTL = v.GetDuration("store.flow_ttl")
	cfg.Store.FinishedTTL = v.GetDuration("store.finished_ttl")
	cfg.Restore.BlockDuration = v.GetDuration("restore.block_duration")
	cfg.Restore.Network = keys.Network(v.GetString("restore.network"))
	cfg.Cache.Size = v.GetInt("cache.size")
	cfg.Audit.Enabled = v.GetBool("audit.enabled")
	cfg.Logging.Level = v.GetString("logging.level")
	return cfg
}

func logger() zerolog.Logger {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(v.GetString("logging.level")); err == nil {
		log = log.Level(lvl)
	}
	return log
}

type providers struct {
	create  *onboarding.CreateWalletProvider
	restore *onboarding.RestoreWalletProvider
}

// openEngine builds an engine over the configured store. With allowEphemeral
// and no store configured, an in-process miniredis is started.
func openEngine(p providers, allowEphemeral bool) (*walletflow.Engine, func(), error) {
	log := logger()
	cfg := engineConfig()

	b := walletflow.New().WithConfig(cfg).WithLogger(log)
	if p.create != nil {
		b.WithCreateWalletProvider(*p.create)
	}
	if p.restore != nil {
		b.WithRestoreWalletProvider(*p.restore)
	}
	if cfg.Audit.Enabled {
		b.WithAuditSink(walletflow.NewLogSink(log))
	}

	var closers []func()
	addr := v.GetString("store.redis_addr")
	switch {
	case addr != "":
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		closers = append(closers, func() { _ = client.Close() })
		b.WithRedis(client)
	case cfg.Store.BucketURL != "":
	case allowEphemeral:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		closers = append(closers, func() { _ = client.Close() }, mr.Close)
		b.WithRedis(client)
		log.Info().Str("addr", mr.Addr()).Msg("using in-process miniredis")
	default:
		return nil, nil, fmt.Errorf("no snapshot store: set --redis-addr or --bucket-url")
	}

	engine, err := b.Build()
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, nil, err
	}

	cleanup := func() {
		engine.Close()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return engine, cleanup, nil
}
