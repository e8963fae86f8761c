package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/matcare/matcare/internal/config"
	"github.com/matcare/matcare/internal/document"
	"github.com/matcare/matcare/internal/domain/appointment"
	"github.com/matcare/matcare/internal/domain/clinical"
	"github.com/matcare/matcare/internal/domain/laboratory"
	"github.com/matcare/matcare/internal/domain/medication"
	"github.com/matcare/matcare/internal/domain/person"
	"github.com/matcare/matcare/internal/domain/vitals"
	"github.com/matcare/matcare/internal/export"
	"github.com/matcare/matcare/internal/platform/auth"
	"github.com/matcare/matcare/internal/platform/blobstore"
	"github.com/matcare/matcare/internal/platform/db"
	"github.com/matcare/matcare/internal/platform/metrics"
	"github.com/matcare/matcare/internal/platform/middleware"
	"github.com/matcare/matcare/internal/platform/reporting"
	"github.com/matcare/matcare/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "matcare-server",
		Short: "Maternal-care clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(appointmentCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg != nil && cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level := zerolog.InfoLevel
	if cfg != nil {
		if l, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && l != zerolog.NoLevel {
			level = l
		}
	}
	return logger.Level(level)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})
	return cmd
}

// serverDeps is everything newServer needs from the outside world.
type serverDeps struct {
	cfg     *config.Config
	db      db.Querier
	pinger  db.Pinger
	stats   db.StatsFunc
	store   blobstore.ObjectStore
	loc     *time.Location
	log     zerolog.Logger
	metrics *metrics.Collector
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		l := newLogger(nil)
		l.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid clinic timezone")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var store blobstore.ObjectStore = blobstore.NewPGStore(pool)
	if cfg.StorageBackend == "memory" {
		logger.Warn().Msg("object storage is in memory; uploads are lost on restart")
		store = blobstore.NewMemoryStore()
	}

	m := metrics.New()
	m.RegisterPoolGauges(
		func() float64 { return float64(pool.Stat().TotalConns()) },
		func() float64 { return float64(pool.Stat().IdleConns()) },
		func() float64 { return float64(pool.Stat().AcquiredConns()) },
	)

	e := newServer(serverDeps{
		cfg:     cfg,
		db:      pool,
		pinger:  pool,
		stats:   db.PoolStatsFunc(pool),
		store:   store,
		loc:     loc,
		log:     logger,
		metrics: m,
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newServer(d serverDeps) *echo.Echo {
	cfg, logger := d.cfg, d.log

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(d.metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{echo.HeaderContentDisposition, export.FailedHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "20M"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(d.pinger, d.stats))
	e.GET("/metrics", d.metrics.Handler())

	// Object storage. Signed reads carry their own token.
	signer := blobstore.NewSigner([]byte(cfg.StorageSigningKey), cfg.PublicBaseURL, cfg.SignedURLTTL)
	blobstore.NewHandler(d.store, signer).RegisterRoutes(e.Group("/storage/v1"))

	// Document generation, called by the export composer.
	renderer := document.NewRenderer(d.loc)
	document.NewHandler(renderer, logger, d.metrics).RegisterRoutes(e.Group("/api/export"))

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(30*time.Second, "/api/v1/exports"))

	// Domain services
	tx := db.NewTxRunner(d.db)

	personSvc := person.NewService(
		person.NewPersonRepoPG(d.db),
		person.NewPatientRepoPG(d.db),
		person.NewClinicianRepoPG(d.db),
		tx, d.store, signer,
	)
	person.NewHandler(personSvc).RegisterRoutes(apiV1)

	apptRepo := appointment.NewRepoPG(d.db)
	apptSvc := appointment.NewService(apptRepo, d.loc, d.metrics)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)

	vitalsSvc := vitals.NewService(vitals.NewRepoPG(d.db), apptRepo, logger, d.metrics)
	vitals.NewHandler(vitalsSvc).RegisterRoutes(apiV1)

	medSvc := medication.NewService(
		medication.NewRepoPG(d.db, medication.KindPrescription),
		medication.NewRepoPG(d.db, medication.KindSupplement),
	)
	medication.NewHandler(medSvc).RegisterRoutes(apiV1)

	clinical.NewHandler(clinical.NewService(clinical.NewAllergyRepoPG(d.db))).RegisterRoutes(apiV1)

	labSvc := laboratory.NewService(laboratory.NewRepoPG(d.db), d.store, signer, logger)
	laboratory.NewHandler(labSvc).RegisterRoutes(apiV1)

	docs := export.NewDocumentClient(cfg.DocumentURL, cfg.DocumentTimeout)
	composer := export.NewComposer(docs, d.loc, logger, d.metrics)
	export.NewHandler(export.NewService(export.NewLoader(d.db), composer)).RegisterRoutes(apiV1)

	reporting.NewHandler(d.db, d.loc).RegisterRoutes(apiV1)

	return e
}
