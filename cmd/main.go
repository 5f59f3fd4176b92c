package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whalewatch/internal/adapters/config"
	"whalewatch/internal/adapters/errors/noop"
	"whalewatch/internal/adapters/errors/sentry"
	"whalewatch/internal/adapters/exchanges/registry"
	"whalewatch/internal/adapters/kafka"
	"whalewatch/internal/adapters/postgres"
	"whalewatch/internal/adapters/redis"
	"whalewatch/internal/aggregator"
	"whalewatch/internal/alerts"
	"whalewatch/internal/api"
	"whalewatch/internal/domain/whaleorder"
	"whalewatch/internal/events"
	"whalewatch/internal/metrics"
	"whalewatch/internal/pricefeed"
	"whalewatch/internal/repository/memory"
	pgrepo "whalewatch/internal/repository/postgres"
	"whalewatch/internal/tracker"
	"whalewatch/internal/workers"
	"whalewatch/internal/ws"
	"whalewatch/pkg/errors"
	"whalewatch/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, pgClient := initStore(ctx, cfg, log)
	if pgClient != nil {
		defer pgClient.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			log.Warnf("Redis unavailable, price cache disabled: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// Event sinks
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		defer producer.Close()
		log.Infow("Kafka event mirror enabled", "brokers", cfg.Kafka.Brokers)
	}

	var notifier events.Notifier
	if cfg.Telegram.Enabled {
		tg, err := alerts.NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			log.Warnf("Telegram alerts disabled: %v", err)
		} else {
			notifier = tg
			log.Info("Telegram alerts enabled")
		}
	}

	hub := ws.NewHub()
	go hub.Run(ctx.Done())

	publisher := events.NewPublisher(hub, producer, notifier)

	// Pipeline
	feed := pricefeed.New(cfg.PriceFeed.FallbackPrice, redisClient, publisher)
	sources := registry.New()

	manager := tracker.NewManager(tracker.ManagerConfig{
		Store:       store,
		Sources:     sources,
		Prices:      feed,
		Breakers:    tracker.NewBreakerRegistry(cfg.Tracker.BreakerThreshold, cfg.Tracker.BreakerCooldown),
		Events:      publisher,
		GracePeriod: cfg.Tracker.GracePeriod,
	})
	if err := manager.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap tracked orders: %v", err)
	}

	agg := aggregator.New(sources, feed, publisher, redisClient, cfg.Aggregator.BucketSize)

	// Workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(pricefeed.NewWorker(feed, cfg.PriceFeed.Interval))
	for _, exchange := range manager.Exchanges() {
		scheduler.RegisterWorker(tracker.NewPollWorker(manager, exchange, cfg.Tracker.PollInterval, cfg.Tracker.PollJitter))
	}
	scheduler.RegisterWorker(tracker.NewFillWorker(manager, cfg.Tracker.FillInterval))
	scheduler.RegisterWorker(tracker.NewReapWorker(manager, cfg.Tracker.ReapInterval, cfg.Tracker.Retention))
	scheduler.RegisterWorker(aggregator.NewWorker(agg, cfg.Aggregator.Interval))

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	// HTTP API
	server := api.NewServer(api.ServerConfig{
		Addr:        cfg.API.Addr,
		ServiceName: cfg.App.Name,
		Version:     version,
	}, store, agg, hub)

	go func() {
		if err := server.Start(); err != nil {
			log.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, scheduler, server, errorTracker, log)
}

// initStore connects to PostgreSQL, falling back to the in-memory store when
// the database is disabled or unreachable.
func initStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (whaleorder.Repository, *postgres.Client) {
	if !cfg.Postgres.Enabled {
		log.Warn("PostgreSQL disabled, using in-memory store")
		return memory.NewWhaleOrderRepository(), nil
	}

	client, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		if !errors.Is(err, errors.ErrUnavailable) {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		log.Warnf("PostgreSQL unavailable, using in-memory store: %v", err)
		return memory.NewWhaleOrderRepository(), nil
	}

	repo := pgrepo.NewWhaleOrderRepository(client.DB())
	if err := repo.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	log.Info("PostgreSQL store initialized")
	return repo, client
}

func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, scheduler *workers.Scheduler, server *api.Server, errorTracker errors.Tracker, log *logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("Received signal %s, shutting down...", sig)
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down...")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP shutdown error: %v", err)
	}
	if err := scheduler.Stop(); err != nil {
		log.Errorf("Worker shutdown error: %v", err)
	}

	_ = errorTracker.Flush(shutdownCtx)
	log.Info("Shutdown complete")
}
