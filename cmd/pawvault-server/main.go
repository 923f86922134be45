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

	"github.com/pawvault/pawvault/internal/config"
	"github.com/pawvault/pawvault/internal/domain/audit"
	"github.com/pawvault/pawvault/internal/domain/records"
	"github.com/pawvault/pawvault/internal/domain/review"
	"github.com/pawvault/pawvault/internal/domain/uploads"
	"github.com/pawvault/pawvault/internal/platform/auth"
	"github.com/pawvault/pawvault/internal/platform/blobstore"
	"github.com/pawvault/pawvault/internal/platform/db"
	"github.com/pawvault/pawvault/internal/platform/docai"
	"github.com/pawvault/pawvault/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pawvault-server",
		Short: "PawVault document import API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Blob store
	blobs, err := blobstore.NewFSStore(cfg.BlobDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open blob store")
	}

	// Document analysis: real service when configured, deterministic stub
	// otherwise (development only).
	var classifier docai.Classifier
	var extractor docai.Extractor
	if cfg.DocAIBaseURL != "" {
		client := docai.NewClient(cfg.DocAIBaseURL, cfg.DocAIAPIKey, cfg.DocAITimeout(), logger)
		classifier, extractor = client, client
	} else {
		stub := docai.NewStub()
		classifier, extractor = stub, stub
		logger.Warn().Msg("DOCAI_BASE_URL not set, using stub document analysis")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Handlers wait on classify/process tasks bounded by the request
	// context, so the request deadline must outlast the task window.
	taskWait := cfg.DocAITimeout() + 10*time.Second

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(taskWait + 5*time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(cfg.AuthSecret))
	}

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.BodyLimit(cfg.MaxPDFBytes + 1<<20))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		pingCtx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Repositories
	uploadRepo := uploads.NewRepoPG(pool)
	candidateRepo := review.NewCandidateRepoPG(pool)
	auditRepo := audit.NewRepoPG(pool)
	recordStore := records.NewService(
		records.NewMedicationRepoPG(pool),
		records.NewVaccinationRepoPG(pool),
		records.NewConditionRepoPG(pool),
		records.NewAllergyRepoPG(pool),
		records.NewVetRepoPG(pool),
		records.NewEmergencyContactRepoPG(pool),
	)

	// Services
	auditSvc := audit.NewService(auditRepo, logger)
	uploadSvc := uploads.NewService(
		uploadRepo,
		blobs,
		candidateRepo,
		classifier,
		extractor,
		uploads.Limits{MaxPDFBytes: cfg.MaxPDFBytes, MaxImageBytes: cfg.MaxImageBytes},
		taskWait,
		logger,
	)
	engine := review.NewEngine(candidateRepo, recordStore, auditSvc, db.NewPoolTransactor(pool), logger)

	// Handlers
	uploads.NewHandler(uploadSvc).RegisterRoutes(apiV1)
	review.NewHandler(engine).RegisterRoutes(apiV1)
	audit.NewHandler(auditSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	// Classify/process tasks run detached from their requests; wait for
	// them so none dies between its writes.
	if err := uploadSvc.Drain(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("background tasks did not finish before shutdown deadline")
	}
	logger.Info().Msg("server stopped")
	return nil
}
