package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/familyhealth/healthrecord/internal/config"
	"github.com/familyhealth/healthrecord/internal/domain/clinical"
	"github.com/familyhealth/healthrecord/internal/domain/exchange"
	"github.com/familyhealth/healthrecord/internal/domain/identity"
	"github.com/familyhealth/healthrecord/internal/domain/medication"
	"github.com/familyhealth/healthrecord/internal/domain/terminology"
	"github.com/familyhealth/healthrecord/internal/interop"
	"github.com/familyhealth/healthrecord/internal/platform/auth"
	"github.com/familyhealth/healthrecord/internal/platform/db"
	"github.com/familyhealth/healthrecord/internal/platform/feed"
	"github.com/familyhealth/healthrecord/internal/platform/fhir"
	"github.com/familyhealth/healthrecord/internal/platform/middleware"
	"github.com/familyhealth/healthrecord/internal/platform/validation"
	"github.com/familyhealth/healthrecord/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "healthrecord-server",
		Short:        "Family health record API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg == nil || cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg != nil {
		logger = logger.Level(cfg.Level())
	}
	return logger
}

// loadConfig loads and validates the configuration for a subcommand.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, newLogger(nil), err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, logger, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
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

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
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

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
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

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func exportCmd() *cobra.Command {
	var (
		patient, format, out, since, until string
		noObs, noConds, noMeds             bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a patient's records as a FHIR bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			req, err := buildExportRequest(patient, format, since, until)
			if err != nil {
				return err
			}
			req.IncludeObservations, req.IncludeConditions, req.IncludeMedications = !noObs, !noConds, !noMeds

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd.OutOrStdout(), out, []byte(res.Content)); err != nil {
				return err
			}
			logger.Info().Str("bundle_id", res.BundleID).Int("resource_count", res.ResourceCount).
				Str("record_id", res.RecordID.String()).Msg("bundle exported")
			return nil
		},
	}
	cmd.Flags().StringVar(&patient, "patient", "", "Patient id (required)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or xml")
	cmd.Flags().StringVar(&out, "out", "-", "Output file, - for stdout")
	cmd.Flags().StringVar(&since, "since", "", "Only observations recorded at or after this time")
	cmd.Flags().StringVar(&until, "until", "", "Only observations recorded at or before this time")
	cmd.Flags().BoolVar(&noObs, "no-observations", false, "Leave observations out")
	cmd.Flags().BoolVar(&noConds, "no-conditions", false, "Leave conditions out")
	cmd.Flags().BoolVar(&noMeds, "no-medications", false, "Leave medications out")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func buildExportRequest(patient, format, since, until string) (interop.ExportRequest, error) {
	id, err := uuid.Parse(patient)
	if err != nil {
		return interop.ExportRequest{}, fmt.Errorf("invalid --patient %q", patient)
	}
	req := interop.NewExportRequest(id)
	if req.Format, err = fhir.ParseFormat(format); err != nil {
		return req, err
	}
	for name, bound := range map[string]struct {
		raw string
		dst **time.Time
	}{"since": {since, &req.From}, "until": {until, &req.To}} {
		if bound.raw == "" {
			continue
		}
		t, ok := fhir.ParseDateTime(bound.raw)
		if !ok {
			return req, fmt.Errorf("invalid --%s %q", name, bound.raw)
		}
		*bound.dst = &t
	}
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return req, fmt.Errorf("--since must not be after --until")
	}
	return req, nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func importCmd() *cobra.Command {
	var (
		patient, file, format string
		validate, overwrite   bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a FHIR resource or bundle for a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			id, err := uuid.Parse(patient)
			if err != nil {
				return fmt.Errorf("invalid --patient %q", patient)
			}
			f, err := formatFor(file, format)
			if err != nil {
				return err
			}
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Import(cmd.Context(), interop.ImportRequest{
				PatientID:         id,
				Content:           content,
				Format:            f,
				Validate:          validate,
				OverwriteExisting: overwrite,
			})
			if err != nil {
				return err
			}
			body, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&patient, "patient", "", "Patient id (required)")
	cmd.Flags().StringVar(&file, "file", "", "FHIR document to import (required)")
	cmd.Flags().StringVar(&format, "format", "", "json or xml; guessed from the file extension when empty")
	cmd.Flags().BoolVar(&validate, "validate", false, "Reject resources missing required elements")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Update existing records instead of adding new ones")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// formatFor resolves the import format from the flag, then the extension.
func formatFor(path, flag string) (fhir.Format, error) {
	if flag != "" {
		return fhir.ParseFormat(flag)
	}
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return fhir.FormatXML, nil
	}
	return fhir.FormatJSON, nil
}

func runServer() error {
	// Config
	cfg, logger, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: every request is authenticated as an admin dev-user")
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise")
	}
	defer a.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"X-Exchange-Record", "X-Imported-Resources", "Retry-After"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(a.pool))

	// API groups
	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	identity.NewHandler(a.patients).RegisterRoutes(apiV1)
	clinical.NewHandler(a.clinical).RegisterRoutes(apiV1)
	medication.NewHandler(a.medications).RegisterRoutes(apiV1)
	exchange.NewHandler(a.records).RegisterRoutes(apiV1)
	terminology.NewHandler(a.tables).RegisterRoutes(apiV1, fhirGroup)

	importLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.ImportRateLimitRPS,
		BurstSize:         cfg.ImportRateLimitBurst,
		IdleTTL:           10 * time.Minute,
	})
	interop.NewHandler(a.pipeline).RegisterRoutes(apiV1, fhirGroup, importLimit)
	feed.NewHandler(a.feed, cfg.CORSOrigins).RegisterRoutes(apiV1)

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
