// Spins up the ttlcache server, compatible w/ the Redis protocol.

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nobletooth/ttlcache/pkg/cache"
	"github.com/nobletooth/ttlcache/pkg/config"
	"github.com/nobletooth/ttlcache/pkg/port"
	"github.com/nobletooth/ttlcache/pkg/utils"
	"golang.org/x/sync/errgroup"
)

var (
	printVersion  = flag.Bool("print_version", false, "Print the version and exit.")
	defaultTTL    = flag.Duration("default_ttl", time.Hour, "TTL of keys set without an explicit expiry.")
	sweepInterval = flag.Duration("sweep_interval", cache.DefaultSweepInterval, "How often expired keys are reaped.")
	shardCount    = flag.Int("shard_count", 1, "Number of independently locked cache shards.")
	cacheName     = flag.String("cache_name", cache.DefaultName, "Name attached to the cache metrics.")
)

// newCacheLayer builds the cache described by the flags. Every shard owns its own reaper bound to `ctx`.
func newCacheLayer(ctx context.Context) cache.Layer[string, []byte] {
	newShard := func() cache.Layer[string, []byte] {
		return cache.NewTTLCache[string, []byte](ctx, *defaultTTL,
			cache.WithName[string, []byte](*cacheName),
			cache.WithSweepInterval[string, []byte](*sweepInterval))
	}
	if *shardCount <= 1 {
		return newShard()
	}
	return cache.NewSharded(newShard, *shardCount)
}

func main() {
	config.InitFlags()
	utils.InitLogging()

	if *printVersion {
		slog.Info("ttlcache build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := port.NewCacheBackend(newCacheLayer(ctx))
	if err != nil {
		slog.Error("Failed to create cache backend.", "error", err)
		os.Exit(1)
	}
	slog.Info("Cache is ready.", "name", *cacheName, "default_ttl", *defaultTTL, "sweep_interval", *sweepInterval,
		"shard_count", *shardCount)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return port.RunMetricsServer(groupCtx) })
	group.Go(func() error { return port.RunRedisServer(groupCtx, backend) })
	if err := group.Wait(); err != nil {
		slog.Error("ttlcache server stopped.", "error", err, "uptime", utils.Uptime())
		os.Exit(1)
	}
	slog.Info("ttlcache server stopped.", "uptime", utils.Uptime())
}
