package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joelbyler272/naturescripts-sub001/internal/server"
	"github.com/joelbyler272/naturescripts-sub001/pkg/config"
	"github.com/joelbyler272/naturescripts-sub001/pkg/enum"
	"github.com/joelbyler272/naturescripts-sub001/pkg/env"
	"github.com/joelbyler272/naturescripts-sub001/pkg/metrics"
	"github.com/joelbyler272/naturescripts-sub001/pkg/rate_limiter"
	"github.com/joelbyler272/naturescripts-sub001/pkg/usage"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var (
	envFilePath        string
	disableRateLimiter bool
)

func init() {
	flag.StringVar(&envFilePath, "env", "", "Enter the env file path you want to load if any")
	flag.BoolVar(&disableRateLimiter, "disableRateLimiter", false, "Disable the rate limiters")
}

func main() {
	flag.Parse()

	if envFilePath != "" {
		slog.Info("loading env file", "path", envFilePath)
		if err := godotenv.Load(envFilePath); err != nil {
			slog.Error("could not load the env file", "error", err)
			os.Exit(1)
		}
	}

	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type closer func()

func newRedisClient(envObj *env.Specification) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     envObj.RedisAddr,
		Password: envObj.RedisPassword,
		DB:       envObj.RedisDb,
		PoolSize: envObj.RedisPoolSize,
	})
}

func newRateLimiterStorage(envObj *env.Specification, redisClient func() *redis.Client, m *metrics.Metrics) (rate_limiter.Configurer, closer, error) {
	backend, err := enum.ParseBackend(envObj.RateLimitBackend)
	if err != nil {
		return nil, nil, fmt.Errorf("APP_RATE_LIMIT_BACKEND: %w", err)
	}

	switch backend {
	case enum.Memory:
		storage := rate_limiter.NewMemoryStorage(rate_limiter.WithSweepObserver(func(p rate_limiter.Policy, removed int) {
			m.ObserveSweep(p.Key(), removed)
		}))
		return storage, storage.Close, nil
	case enum.Redis:
		return rate_limiter.NewRedis(redisClient()), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("APP_RATE_LIMIT_BACKEND: %s is not supported for rate limiting", backend)
	}
}

func newUsageStore(ctx context.Context, envObj *env.Specification, redisClient func() *redis.Client) (usage.Store, closer, error) {
	backend, err := enum.ParseBackend(envObj.UsageStore)
	if err != nil {
		return nil, nil, fmt.Errorf("APP_USAGE_STORE: %w", err)
	}

	switch backend {
	case enum.Memory:
		slog.Warn("usage counters are kept in memory and will be lost on restart")
		return usage.NewMemoryStore(), func() {}, nil
	case enum.Redis:
		return usage.NewRedisStore(redisClient()), func() {}, nil
	case enum.Postgres:
		store, err := usage.OpenPostgres(ctx, envObj.DatabaseUrl)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("APP_USAGE_STORE: unknown backend %s", backend)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envObj := env.GetEnv()
	slog.Info("env loaded", "version", envObj.Version, "env", envObj.Env)

	cfg, err := config.Load(envObj.ConfigFile)
	if err != nil {
		return err
	}

	if disableRateLimiter {
		slog.Warn("rate limiter is disabled")
	}

	var rc *redis.Client
	redisClient := func() *redis.Client {
		if rc == nil {
			rc = newRedisClient(envObj)
		}
		return rc
	}
	defer func() {
		if rc != nil {
			rc.Close()
		}
	}()

	m := metrics.New()

	storage, closeStorage, err := newRateLimiterStorage(envObj, redisClient, m)
	if err != nil {
		return err
	}
	defer closeStorage()

	rateLimiter, err := rate_limiter.New(storage, cfg.RateLimits)
	if err != nil {
		return err
	}

	store, closeStore, err := newUsageStore(ctx, envObj, redisClient)
	if err != nil {
		return err
	}
	defer closeStore()

	evaluator, err := usage.NewEvaluator(store, cfg.Usage.FreeWeeklyLimit, usage.WithLocation(cfg.Usage.Location))
	if err != nil {
		return err
	}

	srv := server.NewServer(
		rateLimiter,
		evaluator,
		store,
		server.WithDisableRateLimiter(disableRateLimiter),
		server.WithMetrics(m, cfg.Metrics.Enabled, cfg.Metrics.Path),
	)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
