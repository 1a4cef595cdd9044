package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-lessonforge/infrastructure/ledger"
	"github.com/ahrav/go-lessonforge/infrastructure/middleware"
	"github.com/ahrav/go-lessonforge/infrastructure/store"
	"github.com/ahrav/go-lessonforge/internal/application"
	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/platform/logger"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

// pipeline holds everything a command needs to start a scheduler.
type pipeline struct {
	cfg     *application.Config
	flags   *runFlags
	log     *logger.Logger
	metrics ports.MetricsCollector
	server  *http.Server
	ledger  *ledger.FileLedger
}

// setup loads configuration, applies flag overrides and prepares the
// database. It does not open the failure ledger; commands decide how.
func setup(ctx context.Context, flags *runFlags) (*pipeline, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	log, err := logger.New(flags.logMode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	loader, err := application.NewConfigLoader()
	if err != nil {
		return nil, err
	}
	cfg, err := loader.LoadFromFile(flags.configPath)
	if err != nil {
		return nil, err
	}
	flags.apply(cfg)
	if err := loader.Validate(cfg); err != nil {
		return nil, err
	}
	if err := cfg.ResolveSecrets(os.Getenv); err != nil {
		return nil, err
	}

	// Migrate once up front so worker handles can skip it.
	if dir := filepath.Dir(cfg.Storage.Database); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := store.Open(cfg.Storage.Database, log)
	if err != nil {
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, err
	}

	p := &pipeline{cfg: cfg, flags: flags, log: log}
	if flags.metricsAddr != "" {
		p.metrics = middleware.NewPrometheusMetrics(prometheus.DefaultRegisterer)
		p.server = serveMetrics(ctx, flags.metricsAddr, log)
	}
	return p, nil
}

func serveMetrics(ctx context.Context, addr string, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	log.Info("serving metrics", "addr", addr, "path", "/metrics")
	return srv
}

// openLedger opens the configured failures file for appending.
func (p *pipeline) openLedger() error {
	l, err := ledger.Open(p.cfg.Storage.FailuresFile)
	if err != nil {
		return err
	}
	p.ledger = l
	return nil
}

// run builds a scheduler, hands it to do and prints the summary. An
// interrupted run still prints what it finished.
func (p *pipeline) run(
	ctx context.Context,
	opts application.Options,
	do func(context.Context, *application.Scheduler) (domain.Stats, error),
) error {
	if p.ledger == nil {
		if err := p.openLedger(); err != nil {
			return err
		}
	}

	models, err := application.NewModelProvider(p.cfg, p.metrics)
	if err != nil {
		return err
	}

	deps := application.Dependencies{
		Models:  models,
		Stores:  store.NewFactory(p.cfg.Storage.Database, p.log),
		Ledger:  p.ledger,
		Metrics: p.metrics,
		Logger:  p.log,
	}
	if p.flags.debug {
		deps.Inspector = application.NewInspector(os.Stderr, os.Stdin)
	}

	s, err := application.NewScheduler(p.cfg, opts, deps)
	if err != nil {
		return err
	}

	stats, err := do(ctx, s)
	printSummary(os.Stdout, stats, p.ledger.Path(), opts.DryRun)
	if errors.Is(err, context.Canceled) {
		return errors.New("interrupted; rerun with --incremental to resume")
	}
	return err
}

func (p *pipeline) close() {
	if p.ledger != nil {
		if err := p.ledger.Close(); err != nil {
			p.log.Warn("failed to close failure ledger", "error", err)
		}
	}
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.server.Shutdown(ctx)
	}
	p.log.Sync()
}

func printSummary(w io.Writer, s domain.Stats, failuresFile string, dryRun bool) {
	fmt.Fprintln(w, "Run summary")
	fmt.Fprintf(w, "  combinations:        %d\n", s.Combinations)
	fmt.Fprintf(w, "  lessons requested:   %d\n", s.LessonsRequested)
	fmt.Fprintf(w, "  lessons completed:   %d\n", s.LessonsCompleted)
	fmt.Fprintf(w, "  attempts:            %d\n", s.Attempts)
	fmt.Fprintf(w, "  generated:           %d\n", s.Generated)
	fmt.Fprintf(w, "  validated:           %d\n", s.Validated)
	fmt.Fprintf(w, "  similarity rejected: %d\n", s.SimilarityRejected)
	if dryRun {
		fmt.Fprintln(w, "  inserted:            0 (dry run)")
	} else {
		fmt.Fprintf(w, "  inserted:            %d\n", s.Inserted)
	}
	fmt.Fprintf(w, "  failed:              %d\n", s.Failed)
	if s.LedgerErrors > 0 {
		fmt.Fprintf(w, "  ledger write errors: %d (those failures are only in the log)\n", s.LedgerErrors)
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, "Failures were appended to %s; retry them with `lessonforge retry-failures`.\n", failuresFile)
	}
}
