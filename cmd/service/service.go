package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"submission_service/config"
	"submission_service/internal/cache"
	"submission_service/internal/domain"
	"submission_service/internal/handler"
	"submission_service/internal/middleware"
	"submission_service/internal/publisher"
	"submission_service/internal/ratelimit"
	"submission_service/internal/repository"
	"submission_service/internal/service"
	"submission_service/pkg/db"
	"submission_service/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logging.NewZap(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(zapLogger)
	defer logger.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(cfg, logger, reg)
	if err != nil {
		logger.Fatal(ctx, "Failed to build application", zap.Error(err))
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      a.handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info(ctx, "Starting server", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "cannot start http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server forced to shutdown", zap.Error(err))
	}
	logger.Info(ctx, "Server stopped")
}

type app struct {
	handler http.Handler
	closers []func() error
}

// Close releases resources in reverse order of acquisition so the event
// queue drains before the broker connection goes away.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func newApp(cfg *config.Config, logger *logging.Logger, reg *prometheus.Registry) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var (
		repo service.SubmissionRepository
		tx   service.Transactor
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		pg, err := db.NewPostgres(cfg.DB.Postgres())
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		repo = repository.NewSubmissionRepository(pg.DB())
		tx = db.NewTransactor(pg.DB())
	default:
		repo = repository.NewMemorySubmissionRepository()
		tx = db.NopTransactor{}
	}

	var rdb *redis.Client
	if cfg.RateLimit.Backend == config.BackendRedis || cfg.Cache.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
	}

	events := newEventPublisher(cfg, logger, reg, a)

	opts := []service.Option{}
	if cfg.Cache.Enabled {
		opts = append(opts, service.WithCache(cache.NewRedisCache(rdb, cfg.Cache.TTL, logger)))
	}
	svc := service.WithMetrics(
		service.NewSubmissionService(repo, events, tx, logger, opts...),
		service.NewMetrics(reg),
	)

	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Policy())
	default:
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Policy())
	}

	a.handler = handler.NewRouter(handler.RouterConfig{
		Logger:           logger,
		Service:          svc,
		Limiter:          limiter,
		RateLimitMetrics: middleware.NewRateLimitMetrics(reg),
		Metrics:          promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		MaxBodySize:      cfg.HTTP.MaxBodyBytes,
	})
	return a, nil
}

func newEventPublisher(cfg *config.Config, logger *logging.Logger, reg prometheus.Registerer, a *app) publisher.Publisher {
	metrics := publisher.NewMetrics(reg)

	var events publisher.Publisher
	switch cfg.Events.Channel {
	case config.ChannelKafka:
		kp := publisher.NewKafkaPublisher(publisher.KafkaConfig{
			Brokers:          cfg.Kafka.Brokers,
			MaxRetries:       cfg.Kafka.MaxRetries,
			RetryBaseDelay:   cfg.Kafka.RetryBaseDelay,
			BreakerThreshold: cfg.Kafka.BreakerThreshold,
			BreakerReset:     cfg.Kafka.BreakerReset,
		})
		a.closers = append(a.closers, kp.Close)
		events = publisher.Instrument(kp, metrics, domain.RoutingKey)
	default:
		bus := publisher.NewLocalBus()
		bus.SubscribeAll(func(ctx context.Context, event domain.Event) error {
			logger.Debug(ctx, "Submission event",
				zap.String("routing_key", domain.SyncRoutingKey(event.Kind())),
				zap.String("submission_id", event.Meta().SubmissionID.String()),
			)
			return nil
		})
		events = publisher.Instrument(bus, metrics, domain.SyncRoutingKey)
	}

	if cfg.Events.Async {
		async := publisher.NewAsyncPublisher(events, cfg.Events.WorkerPoolSize, cfg.Events.QueueSize, logger)
		a.closers = append(a.closers, func() error {
			async.Close()
			return nil
		})
		events = async
	}
	return events
}
