// Package app wires the shop service together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/tgshop/internal/bridge"
	kafkasink "github.com/utafrali/tgshop/internal/bridge/kafka"
	bridgemock "github.com/utafrali/tgshop/internal/bridge/mock"
	"github.com/utafrali/tgshop/internal/bridge/telegram"
	"github.com/utafrali/tgshop/internal/catalog"
	"github.com/utafrali/tgshop/internal/checkout"
	"github.com/utafrali/tgshop/internal/config"
	"github.com/utafrali/tgshop/internal/event"
	handler "github.com/utafrali/tgshop/internal/handler/http"
	"github.com/utafrali/tgshop/internal/notification"
	"github.com/utafrali/tgshop/internal/payment"
	"github.com/utafrali/tgshop/internal/repository"
	pgrepo "github.com/utafrali/tgshop/internal/repository/postgres"
	redisrepo "github.com/utafrali/tgshop/internal/repository/redis"
	"github.com/utafrali/tgshop/internal/service"
	"github.com/utafrali/tgshop/pkg/database"
	"github.com/utafrali/tgshop/pkg/health"
	"github.com/utafrali/tgshop/pkg/httpclient"
	pkgkafka "github.com/utafrali/tgshop/pkg/kafka"
	"github.com/utafrali/tgshop/pkg/middleware"
	"github.com/utafrali/tgshop/pkg/tracing"
)

const serviceName = "tgshop"

// App wires together all dependencies and runs the shop service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	shutdown, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:        cfg.OTELEnabled,
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.tracerShutdown = shutdown

	a.rdb, err = database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return err
	}

	sessions := redisrepo.NewSessionRepository(a.rdb, cfg.SessionTTLDuration())
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", sessions.Ping)

	cat, err := a.loadCatalog(ctx, healthHandler)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded",
		slog.String("source", cfg.CatalogSource),
		slog.Int("shipping_options", len(cat.ShippingOptions())),
		slog.Int("payment_methods", len(cat.PaymentMethods())),
	)

	if cfg.UsesKafka() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	host, err := a.newHost()
	if err != nil {
		return err
	}

	shop := service.NewShopService(
		sessions,
		cat,
		payment.NewResolver(cat, payment.Options{AutoSelectSingle: cfg.PaymentAutoSelectSingle}),
		checkout.NewOrchestrator(nil),
		notification.NewFormatter(cat, cfg.Location(), nil),
		host,
		logger,
	)

	if cfg.KafkaEnabled {
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		store := pkgkafka.NewRedisIdempotencyStore(a.rdb, event.IdempotencyPrefix, time.Duration(cfg.IdempotencyTTL)*time.Hour)
		a.consumer = event.NewLifecycleConsumer(
			event.ConsumerConfig{Brokers: cfg.KafkaBrokers, GroupID: cfg.KafkaGroupID},
			event.NewLifecycleHandler(shop, logger),
			store,
			a.dlq,
			logger,
		)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.AllowedOrigins
	router := handler.NewRouter(shop, healthHandler, handler.RouterConfig{
		CORS:                   cors,
		CheckoutRateLimitRPS:   cfg.CheckoutRateLimitRPS,
		CheckoutRateLimitBurst: cfg.CheckoutRateLimitBurst,
	}, logger)

	logger.Info("health checks registered", slog.Any("checks", healthHandler.Names()))

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return nil
}

// loadCatalog reads the shipping and payment tables from the configured
// source.
func (a *App) loadCatalog(ctx context.Context, hh *health.Handler) (*catalog.Catalog, error) {
	switch a.cfg.CatalogSource {
	case config.CatalogFile:
		return catalog.LoadFile(a.cfg.CatalogFile)
	case config.CatalogPostgres:
		pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
			URL:      a.cfg.PostgresURL,
			MaxConns: a.cfg.PostgresMaxConns,
			MinConns: a.cfg.PostgresMinConns,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		database.RegisterPoolMetrics(pool, serviceName)
		hh.RegisterNonCritical("postgres", pool.Ping)

		if err := database.RunMigrations(ctx, pool, pgrepo.Migrations(), a.logger); err != nil {
			return nil, err
		}
		tracer := database.NewQueryTracer(time.Duration(a.cfg.PostgresSlowMS)*time.Millisecond, a.logger)
		var src repository.CatalogSource = pgrepo.NewCatalogRepository(pool, tracer)
		return src.Load(ctx)
	default:
		return catalog.Default(), nil
	}
}

// newHost builds the host bridge for the configured sink.
func (a *App) newHost() (bridge.HostBridge, error) {
	switch a.cfg.NotificationSink {
	case config.SinkTelegram:
		hc := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.Config{
				Timeout:         time.Duration(a.cfg.TelegramTimeoutMS) * time.Millisecond,
				MaxConnsPerHost: httpclient.DefaultConfig().MaxConnsPerHost,
			}),
			httpclient.DefaultCircuitBreakerConfig("telegram"),
			a.logger,
		)
		tg := telegram.New(telegram.Config{
			APIURL:         a.cfg.TelegramAPIURL,
			Token:          a.cfg.TelegramToken,
			MerchantChatID: a.cfg.TelegramMerchant,
		}, hc, a.logger)
		return bridge.NewHost(tg, tg, tg), nil
	case config.SinkKafka:
		if a.producer == nil {
			return nil, errors.New("kafka sink requires a kafka producer")
		}
		sink := kafkasink.New(a.producer, a.logger)
		return bridge.NewHost(sink, sink, sink), nil
	default:
		sink := bridgemock.New(a.logger)
		return bridge.NewHost(sink, sink, sink), nil
	}
}

// Run starts the HTTP server and the event consumer and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if a.consumer != nil {
		go func() {
			a.logger.Info("starting lifecycle consumer", slog.String("topic", pkgkafka.TopicOrderLifecycle))
			if err := a.consumer.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("lifecycle consumer: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopConsumer()
	a.Shutdown()
	return runErr
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		}
	}
	a.close()

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
	a.logger.Info("application shutdown complete")
}

type closer struct {
	name string
	fn   func() error
}

// close releases connections, skipping whatever was never opened.
func (a *App) close() {
	var closers []closer
	if a.consumer != nil {
		closers = append(closers, closer{"kafka consumer", a.consumer.Close})
	}
	if a.dlq != nil {
		closers = append(closers, closer{"kafka dlq producer", a.dlq.Close})
	}
	if a.producer != nil {
		closers = append(closers, closer{"kafka producer", a.producer.Close})
	}
	if a.rdb != nil {
		closers = append(closers, closer{"redis", a.rdb.Close})
	}
	for _, c := range closers {
		if err := c.fn(); err != nil {
			a.logger.Error(c.name+" close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
