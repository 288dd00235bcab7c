package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/isdoc-export/internal/export"
	"github.com/rezonia/isdoc-export/internal/metrics"
	"github.com/rezonia/isdoc-export/internal/schema"
	"github.com/rezonia/isdoc-export/internal/server"
	"github.com/rezonia/isdoc-export/internal/validator"
)

var (
	serverAddr      string
	serverDebug     bool
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	serveSchema     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for exporting and checking ISDOC documents.

The API provides endpoints for:
  - POST /api/v1/export        - Export one transaction
  - POST /api/v1/export/batch  - Export many transactions
  - POST /api/v1/validate      - Validate a document (?schema=true for XSD)
  - POST /api/v1/info          - Summarize a document
  - GET  /metrics              - Prometheus metrics
  - GET  /health               - Health check

Examples:
  # Start server on the configured address
  isdoc-export serve

  # Start on a custom port with XSD validation available
  isdoc-export serve --address :9090 --schema

  # Start in debug mode
  isdoc-export serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (default: server.address)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 0, "HTTP read timeout (default: server.read_timeout)")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 0, "HTTP write timeout (default: server.write_timeout)")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "Time allowed for in-flight requests on shutdown")
	serveCmd.Flags().BoolVar(&serveSchema, "schema", false, "Enable XSD validation on /api/v1/validate")
}

func runServe(cmd *cobra.Command, args []string) error {
	config := &server.Config{
		Address:      firstNonEmpty(serverAddr, cfg.Server.Address),
		ReadTimeout:  firstPositive(readTimeout, cfg.Server.ReadTimeout),
		WriteTimeout: firstPositive(writeTimeout, cfg.Server.WriteTimeout),
		Debug:        serverDebug || cfg.Server.Debug,
	}

	m := metrics.New()
	opts := []server.Option{
		server.WithMetrics(m),
		server.WithLogger(log),
		server.WithExporter(export.New(
			export.WithConcurrency(cfg.Export.Concurrency),
			export.WithMetrics(m),
			export.WithLogger(log),
		)),
	}
	if serveSchema || cfg.Validation.Schema {
		cache := schema.NewCache(
			schema.NewHTTPFetcher(cfg.Validation.SchemaURL, cfg.Validation.Timeout),
			schema.WithLogger(log),
		)
		opts = append(opts, server.WithSchemaValidator(validator.NewSchema(cache, validator.WithSchemaLogger(log))))
	}

	srv := server.NewServer(config, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	fmt.Printf("Starting server on %s\n", config.Address)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		fmt.Println("\nShutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
