package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/assetforge/internal/application/orchestrator"
	"github.com/aescanero/assetforge/internal/assets"
	"github.com/aescanero/assetforge/internal/config"
	"github.com/aescanero/assetforge/internal/policy"
	memoryevents "github.com/aescanero/assetforge/pkg/adapters/events/memory"
	redisevents "github.com/aescanero/assetforge/pkg/adapters/events/redis"
	promcollector "github.com/aescanero/assetforge/pkg/adapters/metrics/prometheus"
	memorystorage "github.com/aescanero/assetforge/pkg/adapters/storage/memory"
	redisstorage "github.com/aescanero/assetforge/pkg/adapters/storage/redis"
	"github.com/aescanero/assetforge/pkg/domain"
	"github.com/aescanero/assetforge/pkg/ports"
)

// app holds the collaborators of one pipeline run
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	redis    *goredis.Client
	bus      *memoryevents.InMemoryEventBus
	streams  *redisevents.StreamsEventBus
	storage  ports.StateStorage
	registry *prometheus.Registry
	metrics  *promcollector.Collector
	pipeline *orchestrator.Pipeline

	bridgeCancel context.CancelFunc
}

// newApp connects adapters and builds the pipeline with every asset step registered
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		bus:      memoryevents.NewInMemoryEventBus(),
		storage:  memorystorage.NewInMemoryStateStorage(),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = promcollector.NewCollector(a.registry)

	if cfg.Redis.Enabled {
		if err := a.connectRedis(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	a.pipeline = orchestrator.NewPipeline(a.bus, a.storage, a.metrics, logger, orchestrator.Settings{
		Workers:             cfg.Pipeline.Workers,
		RetryDelay:          cfg.Pipeline.RetryDelay,
		HealthCheckInterval: cfg.Pipeline.HealthCheckInterval,
	})

	defs, err := stepDefinitions(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	if err := assets.Register(a.pipeline, defs); err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// connectRedis switches snapshot storage to Redis and forwards every event to Redis Streams
func (a *app) connectRedis(ctx context.Context) error {
	rc := a.cfg.Redis
	a.redis = goredis.NewClient(&goredis.Options{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   rc.MaxRetries,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	})

	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.logger.Info("connected to Redis", zap.String("addr", rc.Addr))

	streams, err := redisevents.NewStreamsEventBus(a.redis, "assetforge", consumerName(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	a.streams = streams
	a.storage = redisstorage.NewStateStorage(a.redis, rc.StateTTL, a.logger)

	bridgeCtx, cancel := context.WithCancel(context.Background())
	a.bridgeCancel = cancel
	for _, topic := range []string{domain.TopicPipelineEvents, domain.TopicStepEvents} {
		topic := topic // per-iteration copy (go directive < 1.22)
		forward := func(ctx context.Context, event domain.Event) error {
			if err := a.streams.Publish(ctx, topic, event); err != nil {
				a.logger.Warn("failed to forward event to Redis",
					zap.String("topic", topic),
					zap.Error(err))
				return err
			}
			return nil
		}
		if err := a.bus.Subscribe(bridgeCtx, topic, forward); err != nil {
			return fmt.Errorf("failed to bridge %s: %w", topic, err)
		}
	}
	return nil
}

// stepDefinitions builds the asset steps and applies the policy file
func stepDefinitions(cfg *config.Config, logger *zap.Logger) ([]domain.StepDefinition, error) {
	opts := []assets.Option{assets.WithReclaim(debug.FreeOSMemory)}
	if cfg.Publish.Enabled {
		publisher, err := assets.NewPublisher(assets.PublishConfig{
			Endpoint:  cfg.Publish.Endpoint,
			AccessKey: cfg.Publish.AccessKey,
			SecretKey: cfg.Publish.SecretKey,
			Bucket:    cfg.Publish.Bucket,
			Prefix:    cfg.Publish.Prefix,
			UseSSL:    cfg.Publish.UseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, assets.WithPublisher(publisher))
	}

	toolkit, err := assets.NewToolkit(assets.Config{
		Bundle:       cfg.Assets.Bundle,
		WorkDir:      cfg.Assets.WorkDir,
		OutputDir:    cfg.Assets.OutputDir,
		OverrideDir:  cfg.Assets.OverrideDir,
		IconSize:     cfg.Assets.IconSize,
		AtlasColumns: cfg.Assets.AtlasColumns,
		MaxRetries:   cfg.Pipeline.DefaultMaxRetries,
	}, logger, opts...)
	if err != nil {
		return nil, err
	}

	defs := toolkit.Definitions()
	if cfg.Pipeline.PolicyFile == "" {
		return defs, nil
	}

	p, err := policy.Load(cfg.Pipeline.PolicyFile)
	if err != nil {
		return nil, err
	}
	if disabled := p.Disabled(); len(disabled) > 0 {
		logger.Info("steps disabled by policy", zap.Strings("steps", disabled))
	}
	return p.Apply(defs)
}

// close releases adapters. The pipeline must have finished.
func (a *app) close() {
	if a.bridgeCancel != nil {
		a.bridgeCancel()
	}
	if err := a.bus.Close(); err != nil {
		a.logger.Error("event bus close error", zap.Error(err))
	}
	if a.streams != nil {
		if err := a.streams.Close(); err != nil {
			a.logger.Error("Redis event bus close error", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("Redis close error", zap.Error(err))
		}
	}
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "assetforge"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
