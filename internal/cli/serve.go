package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veritas/internal/metrics"
	"github.com/ppiankov/veritas/internal/pipeline"
	"github.com/ppiankov/veritas/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the verification API over HTTP",
	Long: `Serve exposes the engine over HTTP:
  POST /v1/verify                  verify text
  POST /v1/verify/enhanced         verify with uncertainty, review and panel features
  POST /v1/enforce                 block, modify or allow a response
  GET  /v1/sessions[/{id}]         review sessions
  POST /v1/sessions/{id}/feedback  complete a review session
  GET  /v1/records[/{id}]          recorded runs (when the sink is enabled)
  GET  /metrics                    Prometheus metrics

Example:
  veritas serve --addr :8080
  VERITAS_SINK_ENABLED=true veritas serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
	serveCmd.Flags().StringSliceVar(&sources, "sources", nil, "evidence sources (wikipedia, llm)")
	serveCmd.Flags().BoolVar(&noRecord, "no-record", false, "do not record runs in the sink")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyVerifyFlags(cfg)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger := newLogger()
	recorder := metrics.NewRecorder()
	engine, err := pipeline.NewFromConfig(cfg, logger, pipeline.WithObserver(recorder))
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	records, err := openSink(cfg)
	if err != nil {
		return err
	}
	if records != nil {
		defer func() { _ = records.Close() }()
	}

	srv := server.New(cfg.Server, engine, records, recorder, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	fmt.Fprintf(os.Stderr, "✓ Veritas listening on %s\n", cfg.Server.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-stop:
		fmt.Fprintf(os.Stderr, "Shutting down...\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
