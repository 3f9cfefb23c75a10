package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/doc-intake-mcp/internal/config"
	"github.com/ironsheep/doc-intake-mcp/internal/httpapi"
	"github.com/ironsheep/doc-intake-mcp/internal/logging"
	"github.com/ironsheep/doc-intake-mcp/internal/metrics"
	"github.com/ironsheep/doc-intake-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	mode := "mcp"
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("doc-intake-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		case "mcp", "serve":
			mode = os.Args[1]
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
			usage()
			os.Exit(2)
		}
	}

	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	cfg := config.Load()
	// Logs go to stderr; stdout carries the MCP protocol.
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, mode, cfg, logger); err != nil {
		logger.Error("exited with error", "mode", mode, "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("doc-intake-mcp - document intake pipeline for ID card, driver's license and log card photos")
	fmt.Println()
	fmt.Println("Usage: doc-intake-mcp [mcp|serve] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  mcp              Serve MCP over stdin/stdout (default)")
	fmt.Println("  serve            Serve the HTTP API and /metrics")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Configuration is read from the environment and an optional .env file.")
	fmt.Println("See LOG_LEVEL, STORE_BACKEND, OCR_TEXT_ENGINE, OCR_ANNOTATED_ENGINE,")
	fmt.Println("EXPORT_TARGET and IMAGE_STORE for the main switches.")
}

func run(ctx context.Context, mode string, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	d, err := build(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer d.close()

	logger.Info("doc-intake-mcp starting",
		"mode", mode,
		"version", Version,
		"commit", GitCommit,
		"store", cfg.Store.Backend,
		"images", cfg.Images.Store,
		"export", cfg.Export.Target,
		"annotated_ocr", cfg.OCR.AnnotatedEngine)

	if mode == "serve" {
		return serveHTTP(ctx, cfg, logger, d, reg)
	}

	srv, err := server.New(d.service, server.WithLogger(logger), server.WithVersion(Version))
	if err != nil {
		return err
	}
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, logger *slog.Logger, d *deps, reg *prometheus.Registry) error {
	h := httpapi.New(d.service,
		httpapi.WithLogger(logger),
		httpapi.WithGatherer(reg),
		httpapi.WithHealthCheck(d.health),
		httpapi.WithRequestTimeout(cfg.Preprocess.Timeout+cfg.OCR.Timeout+cfg.Export.Timeout))

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("http shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
