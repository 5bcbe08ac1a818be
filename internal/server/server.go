// Package server wires configuration, storage, messaging and the HTTP
// surface into a runnable service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/config"
	clusterrepo "github.com/Ramsey-B/clover/internal/repositories/cluster"
	entityrepo "github.com/Ramsey-B/clover/internal/repositories/entity"
	candidaterepo "github.com/Ramsey-B/clover/internal/repositories/matchcandidate"
	historyrepo "github.com/Ramsey-B/clover/internal/repositories/mergehistory"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/quality"
	clusterroutes "github.com/Ramsey-B/clover/pkg/routes/cluster"
	entityroutes "github.com/Ramsey-B/clover/pkg/routes/entity"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	candidateroutes "github.com/Ramsey-B/clover/pkg/routes/matchcandidate"
	mergeroutes "github.com/Ramsey-B/clover/pkg/routes/merge"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Server owns the service lifecycle. Run blocks until the context is
// cancelled, then shuts everything down in reverse order.
type Server struct {
	cfg    *config.Config
	logger ectologger.Logger

	db         database.DB
	producer   *kafka.Producer
	echoServer *echo.Echo
	checker    *health.Checker
	traceFlush func(context.Context) error
}

func New(cfg *config.Config, logger ectologger.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) Run(ctx context.Context) error {
	runner := startup.NewRunner(s.logger, s.cfg.StartupMaxAttempts)
	runner.Add(&startup.Func{Name: "tracing", StartFn: s.startTracing, StopFn: s.stopTracing})
	runner.Add(&startup.Func{Name: "database", StartFn: s.startDatabase, StopFn: s.stopDatabase})
	runner.Add(&startup.Func{Name: "migrations", Requires: []string{"database"}, StartFn: s.runMigrations})
	runner.Add(&startup.Func{Name: "kafka-producer", StartFn: s.startProducer, StopFn: s.stopProducer})
	runner.Add(&startup.Func{
		Name:     "http-server",
		Requires: []string{"database", "migrations", "kafka-producer"},
		StartFn:  s.startHTTP,
		StopFn:   s.stopHTTP,
	})

	if err := runner.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return runner.Stop(shutdownCtx)
}

func (s *Server) startTracing(ctx context.Context) error {
	flush, err := tracing.NewProvider(ctx, tracing.ProviderConfig{
		ServiceName:  s.cfg.AppName,
		OTLPEndpoint: s.cfg.TracingOTLPEndpoint,
		OTLPProtocol: s.cfg.TracingOTLPProtocol,
		Insecure:     s.cfg.TracingInsecure,
	})
	if err != nil {
		return err
	}
	s.traceFlush = flush
	return nil
}

func (s *Server) stopTracing(ctx context.Context) error {
	if s.traceFlush == nil {
		return nil
	}
	return s.traceFlush(ctx)
}

func (s *Server) startDatabase(ctx context.Context) error {
	db, err := database.Connect(ctx, database.ConnectionConfig{
		Driver:          s.cfg.DatabaseDriver,
		Host:            s.cfg.DatabaseHost,
		Port:            s.cfg.DatabasePort,
		UserName:        s.cfg.DatabaseUserName,
		Password:        s.cfg.DatabasePassword,
		Name:            s.cfg.DatabaseName,
		SSLMode:         s.cfg.DatabaseSSLMode,
		MaxOpenConns:    s.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    s.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: s.cfg.DatabaseConnMaxLifetime,
	}, s.logger)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Server) stopDatabase(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Server) runMigrations(ctx context.Context) error {
	driver, err := migratepg.WithInstance(s.db.Unsafe().DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	service := database.NewMigrationService(s.logger, &database.MigrationConfig{
		MigrationFolderPath: s.cfg.DatabaseMigrationFolderPath,
		Version:             uint(s.cfg.DatabaseMigrationVersion),
		Force:               s.cfg.DatabaseMigrationForce,
		AutoRollback:        s.cfg.DatabaseMigrationAutoRollback,
	})
	return service.Migrate(s.cfg.DatabaseName, driver)
}

func (s *Server) startProducer(ctx context.Context) error {
	if !s.cfg.KafkaEnabled {
		s.logger.WithContext(ctx).Info("Kafka disabled, lifecycle events will not be published")
		return nil
	}

	s.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      s.cfg.KafkaBrokers,
		Topic:        s.cfg.KafkaOutputTopic,
		BatchSize:    s.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(s.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: s.cfg.KafkaRequiredAcks,
		Compression:  s.cfg.KafkaCompression,
	}, s.logger)
	return nil
}

func (s *Server) stopProducer(ctx context.Context) error {
	if s.producer == nil {
		return nil
	}
	return s.producer.Close()
}

func (s *Server) startHTTP(ctx context.Context) error {
	if err := s.registerDependencies(); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(s.logger)

	e.Server.ReadTimeout = time.Duration(s.cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(s.cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(s.cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(s.cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = s.cfg.MaxHeaderBytes

	e.Use(otelecho.Middleware(s.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(s.logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: s.cfg.AllowOrigins,
		AllowMethods: s.cfg.AllowMethods,
	}))

	s.checker = health.NewChecker(s.db, Version)
	s.checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	entityroutes.Register(api.Group("/entities"))
	mergeroutes.Register(api.Group("/merge"))
	candidateroutes.Register(api.Group("/candidates"))
	clusterroutes.Register(api.Group("/clusters"))

	s.echoServer = e

	go func() {
		if err := e.Start(fmt.Sprintf(":%d", s.cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()

	s.logger.WithContext(ctx).WithField("port", s.cfg.Port).Infof("HTTP server listening on port %d", s.cfg.Port)
	s.checker.SetReady(true)
	return nil
}

func (s *Server) stopHTTP(ctx context.Context) error {
	if s.echoServer == nil {
		return nil
	}
	s.checker.SetReady(false)
	return s.echoServer.Shutdown(ctx)
}

// registerDependencies builds the repositories, engine and emitter and
// registers them on the default DI container for route handlers to resolve.
func (s *Server) registerDependencies() error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	entities := entityrepo.NewRepository(s.db, s.logger)
	histories := historyrepo.NewRepository(s.db, s.logger)
	clusters := clusterrepo.NewRepository(s.db, s.logger)
	candidates := candidaterepo.NewRepository(s.db, s.logger)

	engine := merging.NewEngine(
		s.logger,
		s.db,
		entities,
		histories,
		clusters,
		candidates,
		quality.NewScorer(s.cfg.RecencyHorizonDays),
		s.engineOptions(),
	)

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, s.logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[database.DB](container, s.db); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*entityrepo.Repository](container, entities); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*historyrepo.Repository](container, histories); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*clusterrepo.Repository](container, clusters); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*candidaterepo.Repository](container, candidates); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*merging.Engine](container, engine); err != nil {
		return err
	}

	if s.producer != nil {
		emitter := events.NewEmitter(s.producer, s.logger)
		if err := ectoinject.RegisterInstance[*events.Emitter](container, emitter); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) engineOptions() merging.Options {
	options := merging.DefaultOptions()
	if s.cfg.ConfidenceEpsilon > 0 {
		options.ConfidenceEpsilon = s.cfg.ConfidenceEpsilon
	}
	if s.cfg.ConflictWarningCount > 0 {
		options.ConflictWarningCount = s.cfg.ConflictWarningCount
	}
	if s.cfg.PreviewConfidenceFloor > 0 {
		options.PreviewConfidenceFloor = s.cfg.PreviewConfidenceFloor
	}
	if s.cfg.AutoMergeThreshold > 0 {
		options.AutoMergeThreshold = s.cfg.AutoMergeThreshold
	}
	if s.cfg.ReviewScoreFloor > 0 {
		options.ReviewScoreFloor = s.cfg.ReviewScoreFloor
	}
	if s.cfg.UnmergeWindowDays > 0 {
		options.UnmergeWindowDays = s.cfg.UnmergeWindowDays
	}
	if s.cfg.SuggestionDefaultLimit > 0 {
		options.SuggestionDefaultLimit = s.cfg.SuggestionDefaultLimit
	}
	if s.cfg.SuggestionMaxLimit > 0 {
		options.SuggestionMaxLimit = s.cfg.SuggestionMaxLimit
	}
	return options
}
