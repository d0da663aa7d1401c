package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/internal/config"
	"github.com/fastygo/groupbuy/internal/infrastructure/buffer"
	"github.com/fastygo/groupbuy/internal/infrastructure/kafka"
	"github.com/fastygo/groupbuy/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/groupbuy/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/groupbuy/internal/infrastructure/redis"
	"github.com/fastygo/groupbuy/internal/services"
	"github.com/fastygo/groupbuy/internal/services/lifecycle"
	"github.com/fastygo/groupbuy/repository"
	boltRepo "github.com/fastygo/groupbuy/repository/bolt"
	"github.com/fastygo/groupbuy/repository/httpapi"
	"github.com/fastygo/groupbuy/repository/postgres"
	redisRepo "github.com/fastygo/groupbuy/repository/redis"
	"github.com/fastygo/groupbuy/usecase"
	"github.com/fastygo/groupbuy/usecase/campaign"
)

// app holds every component a command may need. Components register their
// teardown with the lifecycle manager as they are built.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	engine    *campaign.Engine
	remote    repository.CampaignStore
	monitor   *monitor.Monitor
	processor *services.OutboxProcessor
	manager   *lifecycle.Manager
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		manager: lifecycle.New(cfg.Context.ShutdownTimeout, logger),
	}
	if err := a.build(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	buckets := []string{cfg.Outbox.Bucket}
	if cfg.Cache.Driver == "bolt" {
		buckets = append(buckets, cfg.Cache.Bucket)
	}
	db, err := buffer.Open(cfg.Cache.Path, buckets...)
	if err != nil {
		return fmt.Errorf("open local store %s: %w", cfg.Cache.Path, err)
	}
	a.manager.RegisterCloser("boltdb", db.Close)

	var (
		cache  repository.CampaignCache
		checks []monitor.Check
	)
	switch cfg.Cache.Driver {
	case "redis":
		client, err := redisInfra.NewClient(ctx, cfg.Redis, a.logger)
		if err != nil {
			return fmt.Errorf("connect redis cache: %w", err)
		}
		a.manager.RegisterCloser("redis", client.Close)
		cache = redisRepo.NewCampaignCache(client, cfg.Redis.Namespace)
		checks = append(checks, monitor.RedisCheck(client, false))
	default:
		cache, err = boltRepo.NewCampaignCache(db, cfg.Cache.Bucket)
		if err != nil {
			return err
		}
	}

	switch cfg.Remote.Driver {
	case "postgres":
		pool, err := pgInfra.NewLazyPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("configure postgres remote: %w", err)
		}
		a.manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, a.logger)
			return nil
		})
		a.remote = postgres.NewCampaignRepository(pool)
		checks = append(checks, monitor.PostgresCheck(pool, true))
	default:
		a.remote, err = httpapi.NewCampaignStore(cfg.Remote.URL, nil, cfg.Remote.Timeout)
		if err != nil {
			return err
		}
		url := cfg.Remote.URL
		checks = append(checks, monitor.Check{
			Name:     "campaign_api",
			Critical: true,
			Timeout:  cfg.Remote.Timeout,
			Probe: func(ctx context.Context) error {
				return httpapi.Ping(ctx, url, nil)
			},
		})
	}
	a.monitor = monitor.New(cfg.Monitor.Interval, a.logger, checks...)
	a.manager.Register("monitor", func(context.Context) error {
		a.monitor.Stop()
		return nil
	})

	opts := []campaign.Option{
		campaign.WithLogger(a.logger),
		campaign.WithRemoteTimeout(cfg.Remote.Timeout),
	}
	var events usecase.EventSink
	if cfg.Kafka.Enabled() {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, a.logger)
		a.manager.RegisterCloser("kafka_publisher", publisher.Close)
		events = publisher
		opts = append(opts, campaign.WithEventSink(publisher))
	}

	var store *buffer.Store
	if cfg.Outbox.Enabled {
		store, err = buffer.NewStore(db, cfg.Outbox.Bucket)
		if err != nil {
			return err
		}
		opts = append(opts, campaign.WithOutbox(services.NewOutboxBridge(store)))
		a.monitor.WithOutboxSize(store.Size)
	}

	a.engine = campaign.New(a.remote, cache, opts...)
	a.manager.Register("engine", a.engine.Flush)

	if store != nil {
		a.processor = services.NewOutboxProcessor(store, a.monitor, a.remote, a.engine, events, a.logger, services.ProcessorConfig{
			Interval:      cfg.Outbox.Interval,
			BatchSize:     cfg.Outbox.BatchSize,
			MaxRetries:    cfg.Outbox.MaxRetries,
			RetentionTime: cfg.Outbox.RetentionTime,
			RemoteTimeout: cfg.Remote.Timeout,
		})
	}
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Context.ShutdownTimeout)
	defer cancel()
	if err := a.manager.Shutdown(ctx); err != nil {
		a.logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
