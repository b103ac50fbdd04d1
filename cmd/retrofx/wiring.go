package main

import (
	"log/slog"

	"github.com/aretw0/retrofx"
	"github.com/aretw0/retrofx/internal/config"
	"github.com/aretw0/retrofx/pkg/adapters/gateway"
	"github.com/aretw0/retrofx/pkg/adapters/memory"
	"github.com/aretw0/retrofx/pkg/adapters/redis"
	"github.com/aretw0/retrofx/pkg/observability"
	"github.com/aretw0/retrofx/pkg/persistence/middleware"
	"github.com/aretw0/retrofx/pkg/ports"
	"github.com/aretw0/retrofx/pkg/session"
	"github.com/sony/gobreaker"
)

// newGateway builds the service client. metrics may be nil.
func newGateway(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*gateway.Client, error) {
	opts := []gateway.Option{
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(logger),
		gateway.WithBreaker(uint32(cfg.BreakerFailures), cfg.BreakerCooldown),
	}
	if metrics != nil {
		opts = append(opts, gateway.WithBreakerListener(func(name string, to gobreaker.State) {
			metrics.ObserveBreaker(name, to)
		}))
	}
	return gateway.New(cfg.ServiceURL, opts...)
}

// newEditorFactory builds editors sharing one gateway client.
func newEditorFactory(cfg *config.Config, client *gateway.Client, logger *slog.Logger, metrics *observability.Metrics) session.Factory {
	return func(id string, opts ...retrofx.Option) *retrofx.Editor {
		base := []retrofx.Option{
			retrofx.WithSessionID(id),
			retrofx.WithLogger(logger),
			retrofx.WithParamPolicy(cfg.Policy()),
		}
		if cfg.ViewportWidth > 0 {
			base = append(base, retrofx.WithViewportWidth(cfg.ViewportWidth))
		}
		if metrics != nil {
			base = append(base, retrofx.WithLifecycleHooks(metrics.Hooks()))
		}
		return retrofx.New(client, client, client, append(base, opts...)...)
	}
}

// newStore selects Redis when an address is configured, memory otherwise.
// The returned locker is nil for the memory store. Snapshots are sealed
// when an encryption key is configured.
func newStore(cfg *config.Config, logger *slog.Logger) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	var mws []middleware.Middleware
	if cfg.EncryptionKey != "" {
		enc, err := cfg.Encryption()
		if err != nil {
			return nil, nil, nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}

	if cfg.RedisAddr == "" {
		logger.Info("Using in-memory session store", "encrypted", len(mws) > 0)
		return middleware.Chain(memory.NewStore(), mws...), nil, func() error { return nil }, nil
	}
	logger.Info("Using Redis session store", "addr", cfg.RedisAddr, "encrypted", len(mws) > 0)
	store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithTTL(cfg.SessionTTL))
	locker := redis.NewLocker(store.Client(), redis.DefaultPrefix)
	return middleware.Chain(store, mws...), locker, store.Close, nil
}
