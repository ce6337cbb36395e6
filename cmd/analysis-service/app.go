package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"textanalysis/internal/broker"
	"textanalysis/internal/config"
	"textanalysis/internal/constants"
	"textanalysis/internal/dispatch"
	"textanalysis/internal/logger"
	"textanalysis/internal/pipeline"
	"textanalysis/internal/processor"
	"textanalysis/internal/publisher"
	"textanalysis/internal/scoring"
	"textanalysis/internal/store"
	"textanalysis/pkg/bootstrap"
	"textanalysis/pkg/health"
	"textanalysis/pkg/logging"
	"textanalysis/pkg/metrics"
	"textanalysis/pkg/middleware"
	"textanalysis/pkg/models"
	"textanalysis/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	mongo          *mongo.Client
	redis          *redis.Client
	repo           store.Repository
	pool           *dispatch.Pool
	service        *pipeline.Service
	tracerProvider *tracing.TracerProvider
	health         *health.CheckerRegistry
	server         *http.Server

	stopOnce sync.Once
	stopErrs []error
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		health:      health.NewCheckerRegistry(),
	}
}

// Initialize builds everything in dependency order: tracing, MongoDB,
// Redis, the worker pool, the broker, then the pipeline and HTTP server.
func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.Register()

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	consumerCfg := a.Config.Broker.Consumer
	a.pool = dispatch.New(dispatch.Options{
		Name:      "pipeline",
		Workers:   consumerCfg.Workers,
		QueueSize: consumerCfg.QueueSize,
		Keyed:     consumerCfg.OrderByKey,
	}, a.Logger)

	var keyFunc broker.KeyFunc
	if consumerCfg.OrderByKey {
		keyFunc = func(msg broker.Message) string {
			return models.PeekID(msg.Body)
		}
	}

	if err := a.InitBroker(ctx, constants.ServiceName, a.pool, keyFunc); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initService(); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	a.initHTTPServer()

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongo = mongoClient

	mongoCfg := a.Config.Database.MongoDB
	repo := store.NewRepository(mongoClient.Database(mongoCfg.Database), mongoCfg.Collection)
	if err := store.EnsureIndexes(ctx, repo.Collection()); err != nil {
		return err
	}
	a.repo = store.NewCircuitBreakerRepository(repo, a.Config.CircuitBreaker)

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = redisClient

	return nil
}

func (a *App) initService() error {
	procCfg := a.Config.Processing

	var scorer scoring.Scorer = scoring.NewSimulatedScorer(procCfg.MinDuration(), procCfg.MaxDuration())
	if procCfg.Cache.Enabled && a.redis != nil {
		scorer = scoring.NewCachedScorer(scorer, a.redis, procCfg.Cache.TTL, a.Logger)
	}

	_, output := broker.Queues(a.Config.Broker)
	pub, err := publisher.New(a.Producer, output, a.Config.Publisher.Filter, a.Logger)
	if err != nil {
		return err
	}

	a.service = pipeline.NewService(
		processor.New(scorer, procCfg.ToxicityThreshold),
		a.repo,
		pub,
		a.Logger,
	)
	return nil
}

func (a *App) initHTTPServer() {
	a.health.Register(health.NewMongoDBChecker(a.mongo))
	if a.redis != nil {
		a.health.RegisterOptional(health.NewRedisChecker(a.redis))
	}
	a.health.Register(health.NewCheckFunc("broker_consumer", a.Consumer.HealthCheck))
	a.health.Register(health.NewCheckFunc("broker_producer", a.Producer.HealthCheck))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	router.GET("/health", gin.WrapH(a.health))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

// Run consumes until ctx is cancelled or the consumer fails, then drains
// in-flight jobs and stops the HTTP server before returning.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	input, _ := broker.Queues(a.Config.Broker)
	g.Go(func() error {
		consumeCtx := logging.WithServiceName(gCtx, constants.ServiceName)
		a.Logger.InfowCtx(consumeCtx, "Starting input consumer",
			"source", input,
			"broker", a.Config.Broker.Type,
			"workers", a.Config.Broker.Consumer.Workers,
			"prefetch", a.Config.Broker.Consumer.Prefetch,
		)
		return a.Consumer.Consume(gCtx, input, a.service.Handle)
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.stopServing()
		return nil
	})

	return g.Wait()
}

// stopServing drains the worker pool, then shuts the HTTP server down. It
// runs once; later calls return the first result.
func (a *App) stopServing() []error {
	a.stopOnce.Do(func() {
		if a.pool != nil {
			drainCtx, cancel := context.WithTimeout(context.Background(), a.Config.Broker.Consumer.DrainTimeout)
			if err := a.pool.Drain(drainCtx); err != nil {
				a.stopErrs = append(a.stopErrs, err)
			}
			cancel()
		}

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				a.stopErrs = append(a.stopErrs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
			cancel()
		}
	})
	return a.stopErrs
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down analysis service")

	stopServing := func(ctx context.Context) []error {
		return a.stopServing()
	}

	releaseResources := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.mongo)...)

		return errs
	}

	return a.Base.Shutdown(ctx, stopServing, releaseResources)
}
