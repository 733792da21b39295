package main

import (
	"context"
	"errors"
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

	"github.com/ehr/patients/internal/config"
	"github.com/ehr/patients/internal/domain/patient"
	"github.com/ehr/patients/internal/platform/middleware"
	"github.com/ehr/patients/internal/platform/openapi"
	"github.com/ehr/patients/internal/platform/sandbox"
	"github.com/ehr/patients/internal/platform/store"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "patient-server",
		Short: "Patient Management System API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(storeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the patient API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the patient document",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create an empty patient document if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b store.Backend) error {
				created, err := store.Init(ctx, b)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty %s document.\n", b.Driver())
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "The %s document already exists, nothing to do.\n", b.Driver())
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify the backend is reachable and the document parses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b store.Backend) error {
				if err := b.Ping(ctx); err != nil {
					return fmt.Errorf("%s backend unreachable: %w", b.Driver(), err)
				}
				c, err := patient.NewDocumentRepo(b).Load(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s document OK: %d patient(s).\n", b.Driver(), c.Len())
				return nil
			})
		},
	})

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Add synthetic patients for demos",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := sandbox.DefaultSeedConfig()
			cfg.PatientCount, _ = cmd.Flags().GetInt("count")
			cfg.Seed, _ = cmd.Flags().GetInt64("seed")
			cfg.IDPrefix, _ = cmd.Flags().GetString("prefix")
			if cfg.PatientCount <= 0 {
				return fmt.Errorf("--count must be positive")
			}

			return withBackend(func(ctx context.Context, b store.Backend) error {
				if _, err := store.Init(ctx, b); err != nil {
					return err
				}
				svc := patient.NewService(patient.NewDocumentRepo(b))
				res, err := sandbox.NewSeeder(cfg).Seed(ctx, svc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d patient(s), skipped %d existing id(s) in %s.\n",
					res.Created, res.Skipped, res.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
	def := sandbox.DefaultSeedConfig()
	seedCmd.Flags().Int("count", def.PatientCount, "Number of patients to generate")
	seedCmd.Flags().Int64("seed", def.Seed, "Random seed, 0 for a time-based seed")
	seedCmd.Flags().String("prefix", def.IDPrefix, "Prefix for generated patient ids")
	cmd.AddCommand(seedCmd)

	return cmd
}

// withBackend loads config, opens the configured backend and closes it
// after fn returns.
func withBackend(fn func(ctx context.Context, b store.Backend) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer b.Close()

	return fn(ctx, b)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Store
	ctx := context.Background()
	backend, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer backend.Close()
	if _, err := backend.Read(ctx); errors.Is(err, store.ErrDocumentNotFound) {
		logger.Warn().Str("driver", backend.Driver()).Msg("patient document does not exist yet, run `patient-server store init`")
	}
	evt := logger.Info().Str("driver", backend.Driver())
	if p, ok := backend.(interface{ Path() string }); ok {
		evt = evt.Str("path", p.Path())
	}
	evt.Msg("store opened")

	e := newServer(cfg, logger, backend)

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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires the HTTP surface around a backend.
func newServer(cfg *config.Config, logger zerolog.Logger, backend store.Backend) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = patient.ErrorHandler(logger)

	metrics := middleware.NewMetrics()

	// Global middleware. Logger renders handler errors itself, so metrics
	// sits outside it and sees the final status.
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"title":       "Patient Management System API",
			"description": "Manage patient records with derived BMI and health verdict",
			"version":     version,
		})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/store", store.HealthHandler(backend))
	e.GET("/metrics", metrics.Handler())

	root := e.Group("")
	openapi.NewGenerator(version, "").RegisterRoutes(root)

	svc := patient.NewService(patient.NewDocumentRepo(backend))
	svc.SetSerializeWrites(cfg.SerializeWrites)
	patient.NewHandler(svc).RegisterRoutes(root)

	return e
}
