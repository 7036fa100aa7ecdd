package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	httpadapter "github.com/kirillkom/annual-report-rag/internal/adapters/http"
	mcpadapter "github.com/kirillkom/annual-report-rag/internal/adapters/mcp"
	"github.com/kirillkom/annual-report-rag/internal/bootstrap"
	"github.com/kirillkom/annual-report-rag/internal/config"
	"github.com/kirillkom/annual-report-rag/internal/observability/logging"
)

// Runtime is what the commands need from the wired application.
type Runtime interface {
	Setup(ctx context.Context) error
	Ingest(ctx context.Context) (int, error)
	BuildIndex(ctx context.Context) (int, error)
	RunInference(ctx context.Context) (bootstrap.InferenceReport, error)
	Serve(ctx context.Context, port string) error
	ServeMCP(ctx context.Context, in io.Reader, out io.Writer) error
	Close()
}

type runtimeOptions struct {
	// logToStderr keeps stdout free for protocol traffic.
	logToStderr bool
	// skipMetricsServer is set for serve, which exposes /metrics itself.
	skipMetricsServer bool
}

// openRuntime is replaced in tests.
var openRuntime = openAppRuntime

func openAppRuntime(ctx context.Context, opts runtimeOptions) (Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	var out io.Writer = os.Stdout
	if opts.logToStderr {
		out = os.Stderr
	}
	logger := logging.New(out, bootstrap.ServiceName, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if cfg.MetricsPort != "" && !opts.skipMetricsServer {
		app.Metrics.Serve(ctx, ":"+cfg.MetricsPort, logger)
	}
	return &appRuntime{app: app}, nil
}

type appRuntime struct {
	app *bootstrap.App
}

func (r *appRuntime) Setup(ctx context.Context) error {
	return r.app.Setup(ctx)
}

func (r *appRuntime) Ingest(ctx context.Context) (int, error) {
	return r.app.IngestUC.IngestDirectory(ctx, r.app.Config.PDFDir)
}

func (r *appRuntime) BuildIndex(ctx context.Context) (int, error) {
	return r.app.IndexUC.Build(ctx)
}

func (r *appRuntime) RunInference(ctx context.Context) (bootstrap.InferenceReport, error) {
	return r.app.RunInference(ctx)
}

func (r *appRuntime) Serve(ctx context.Context, port string) error {
	inf, err := r.app.LoadInference(ctx)
	if err != nil {
		return err
	}
	if port == "" {
		port = r.app.Config.APIPort
	}

	router := httpadapter.NewRouter(r.app.Config, inf.Pipeline, r.app.Metrics, r.app.Logger).Handler()
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Duration(r.app.Config.APIRequestTimeoutSec+30) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.app.Logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

func (r *appRuntime) ServeMCP(ctx context.Context, in io.Reader, out io.Writer) error {
	inf, err := r.app.LoadInference(ctx)
	if err != nil {
		return err
	}
	return mcpadapter.NewServer(inf.Pipeline, inf.Catalog.Names(), version, r.app.Logger).Run(ctx, in, out)
}

func (r *appRuntime) Close() {
	r.app.Close()
}
