package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/config"
	"github.com/mauv0809/finboard/internal/db"
	"github.com/mauv0809/finboard/internal/financial"
	"github.com/mauv0809/finboard/internal/graphql"
	"github.com/mauv0809/finboard/internal/handlers"
	"github.com/mauv0809/finboard/internal/query"
	"github.com/mauv0809/finboard/internal/report"
	"github.com/mauv0809/finboard/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level == "debug" {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger level comes from the config, so this is the one place
		// that cannot use it.
		zap.NewExample().Fatal("loading config", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	deps := handlers.Deps{
		Query:          query.New(logger),
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	}

	// Database is optional: without it the db report source and upload
	// records are unavailable.
	var repo *db.Repository
	if cfg.DatabaseURL != "" {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Warn("could not run migrations", zap.Error(err))
		} else {
			logger.Info("migrations completed")
		}

		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("could not connect to database, continuing without it", zap.Error(err))
		} else {
			defer pool.Close()
			repo = db.NewRepository(pool)
			deps.Uploads = repo
			logger.Info("connected to database")
		}
	}

	store, err := storage.New(ctx, cfg.Storage, logger)
	switch {
	case errors.Is(err, apperr.ErrMissingCredentials):
		logger.Warn("object storage disabled", zap.Error(err))
	case err != nil:
		return err
	default:
		deps.Storage = store
	}

	if cfg.Financial.BaseURL != "" {
		client := financial.NewClient(cfg.Financial.BaseURL, logger, financial.WithTimeout(cfg.Financial.Timeout))
		var qopts []query.Option
		if cfg.Financial.RPS > 0 {
			qopts = append(qopts, query.WithRateLimit(cfg.Financial.RPS, 1))
		}
		deps.Financial = financial.NewService(client, query.New(logger, qopts...), logger)
	} else {
		logger.Warn("FINANCIAL_API_BASE_URL not set, financial data endpoints disabled")
	}

	var gql *graphql.Client
	if cfg.GraphQL.Endpoint != "" {
		gql = graphql.NewClient(cfg.GraphQL.Endpoint, cfg.GraphQL.APIKey, logger, graphql.WithTimeout(cfg.GraphQL.Timeout))
		deps.Forwarder = gql
	}

	source, err := reportSource(cfg.Reports.Source, logger, gql, deps.Storage, repo)
	if err != nil {
		return err
	}
	deps.Reports = report.NewAggregator(source, logger, report.WithCompanyIDs(cfg.Reports.CompanyIDs))
	logger.Info("report source ready", zap.String("source", cfg.Reports.Source))

	if repo != nil {
		if err := setupSnapshots(ctx, cfg, logger, gql, deps.Storage, repo, &deps); err != nil {
			return err
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
			} else {
				logger.Info("request", fields...)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	handlers.New(deps).Register(e)

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		errc <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}

// setupSnapshots wires the snapshot writer. With the db source the snapshots
// come from REPORT_SNAPSHOT_SOURCE; otherwise from the serving source.
func setupSnapshots(ctx context.Context, cfg *config.Config, logger *zap.Logger, gql *graphql.Client, store *storage.Client, repo *db.Repository, deps *handlers.Deps) error {
	from := deps.Reports
	if cfg.Reports.Source == config.SourceDB {
		upstream, err := reportSource(cfg.Reports.SnapshotSource, logger, gql, store, repo)
		if err != nil {
			return err
		}
		from = report.NewAggregator(upstream, logger, report.WithCompanyIDs(cfg.Reports.CompanyIDs))
	}
	deps.SnapshotFrom = from
	deps.Snapshots = repo

	if cfg.Reports.SnapshotOnStart {
		if _, err := from.Snapshot(ctx, repo); err != nil {
			logger.Warn("startup report snapshot failed", zap.Error(err))
		}
	}
	return nil
}

func reportSource(name string, logger *zap.Logger, gql *graphql.Client, store *storage.Client, repo *db.Repository) (report.Source, error) {
	switch name {
	case config.SourceGraphQL:
		if gql == nil {
			return nil, errors.New("graphql report source requires APPSYNC_ENDPOINT")
		}
		return report.NewGraphQLSource(gql), nil
	case config.SourceStorage:
		if store == nil {
			return nil, apperr.New(apperr.KindConfig, "storage report source requires object storage", apperr.ErrMissingCredentials)
		}
		return report.NewStorageSource(store, logger), nil
	case config.SourceDB:
		if repo == nil {
			return nil, errors.New("db report source requires a database connection")
		}
		return repo, nil
	}
	return report.NewMockSource()
}
