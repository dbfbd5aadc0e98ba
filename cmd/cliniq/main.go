package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cliniq/internal/booking"
	"cliniq/internal/config"
	"cliniq/internal/httpapi"
	"cliniq/internal/insights"
	"cliniq/internal/logging"
	"cliniq/internal/metrics"
	"cliniq/internal/queue"
	"cliniq/internal/report"
	"cliniq/internal/store/postgres"
	"cliniq/internal/telemetry"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cliniq",
		Short:         "Clinic queue and appointment booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
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
	for _, direction := range []postgres.MigrateDirection{postgres.MigrateUp, postgres.MigrateDown} {
		cmd.AddCommand(&cobra.Command{
			Use:   string(direction),
			Short: fmt.Sprintf("Migrate the schema %s", direction),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, logger, err := loadConfig(os.Stderr)
				if err != nil {
					return err
				}
				if err := postgres.Migrate(cfg.DatabaseURL, direction); err != nil {
					return err
				}
				logger.Info().Str("direction", string(direction)).Msg("migrations complete")
				return nil
			},
		})
	}
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all patient records as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			bucket, _ := cmd.Flags().GetString("s3-bucket")
			key, _ := cmd.Flags().GetString("s3-key")
			return runExport(cmd.Context(), out, bucket, key)
		},
	}
	cmd.Flags().String("out", "-", "Output file, - for stdout")
	cmd.Flags().String("s3-bucket", "", "Upload the CSV to this S3 bucket instead of writing it locally")
	cmd.Flags().String("s3-key", "", "Object key for the S3 upload (default patients-<date>.csv)")
	return cmd
}

func loadConfig(logOut io.Writer) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(logOut, cfg.LogLevel, cfg.LogFormat), nil
}

func runServer() error {
	cfg, logger, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, telemetry.Options{ServiceName: cfg.ServiceName, Logger: logger})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("telemetry shutdown")
		}
	}()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st := postgres.NewStore(pool)
	handler := httpapi.NewHandler(httpapi.Services{
		Queue: queue.NewManager(st, queue.Options{
			Jitter:  insights.NewJitter(cfg.ETASeed),
			Metrics: m,
			Logger:  &logger,
		}),
		Booking: booking.NewManager(st, booking.Options{
			Metrics:  m,
			Logger:   &logger,
			Location: cfg.Location(),
		}),
		Insights: insights.NewService(st, insights.Options{Location: cfg.Location()}),
		Reports:  report.NewExporter(st),
	}, httpapi.Options{Gatherer: reg, Logger: &logger})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		PerMinute: cfg.RateLimitPerMinute,
		Burst:     cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(logger, m, limiter.Middleware(handler.Routes())), cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("timezone", cfg.Location().String()).Msg("cliniq listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runExport(ctx context.Context, out, bucket, key string) error {
	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	exporter := report.NewExporter(postgres.NewStore(pool))

	if bucket != "" {
		if key == "" {
			key = fmt.Sprintf("patients-%s.csv", time.Now().In(cfg.Location()).Format("2006-01-02"))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		rows, err := exporter.Upload(ctx, s3.NewFromConfig(awsCfg), bucket, key)
		if err != nil {
			return err
		}
		logger.Info().Str("bucket", bucket).Str("key", key).Int("rows", rows).Msg("export uploaded")
		return nil
	}

	var w io.Writer = os.Stdout
	if out != "" && out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	rows, err := exporter.Export(ctx, w)
	if err != nil {
		return err
	}
	logger.Info().Str("out", out).Int("rows", rows).Msg("export written")
	return nil
}
