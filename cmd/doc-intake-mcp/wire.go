package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ironsheep/doc-intake-mcp/internal/aggregate"
	"github.com/ironsheep/doc-intake-mcp/internal/config"
	"github.com/ironsheep/doc-intake-mcp/internal/correlate"
	"github.com/ironsheep/doc-intake-mcp/internal/export"
	"github.com/ironsheep/doc-intake-mcp/internal/imagestore"
	"github.com/ironsheep/doc-intake-mcp/internal/imaging"
	"github.com/ironsheep/doc-intake-mcp/internal/intake"
	"github.com/ironsheep/doc-intake-mcp/internal/metrics"
	"github.com/ironsheep/doc-intake-mcp/internal/ocr"
	"github.com/ironsheep/doc-intake-mcp/internal/store"
)

// deps is the assembled pipeline plus the resources it must release.
type deps struct {
	service *intake.Service
	health  func(context.Context) error
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*deps, error) {
	d := &deps{health: func(context.Context) error { return nil }}

	gateway, err := buildGateway(ctx, cfg, logger, d)
	if err != nil {
		d.close()
		return nil, err
	}

	images, err := buildImageStore(ctx, cfg)
	if err != nil {
		d.close()
		return nil, err
	}

	opts := imaging.DefaultOptions()
	opts.MaxDimension = cfg.Preprocess.MaxDimension
	opts.Denoise = imaging.DenoiseMode(cfg.Preprocess.Denoise)
	enhancer := imaging.NewEnhancer(opts)

	text, annotated := buildEngines(cfg)
	logger.Info("ocr engines", "text", text.Name(), "annotated", annotated.Name())
	recognizer := ocr.NewBounded(text, annotated, cfg.OCR.Timeout, cfg.OCR.MinConfidence)

	correlator := correlate.New(gateway, correlate.WithLogger(logger))
	aggregator := aggregate.New(gateway, buildExporter(cfg, logger),
		aggregate.WithLogger(logger),
		aggregate.WithMetrics(m))

	d.service = intake.NewService(enhancer, recognizer, correlator, aggregator,
		intake.WithLogger(logger),
		intake.WithMetrics(m),
		intake.WithPreprocessTimeout(cfg.Preprocess.Timeout),
		intake.WithImageStore(images))
	return d, nil
}

// buildEngines picks the backend for each OCR capability. Both may share
// one Tesseract or one Remote.
func buildEngines(cfg *config.Config) (text, annotated ocr.Engine) {
	var tess, remote ocr.Engine
	pick := func(name string) ocr.Engine {
		if name == "remote" {
			if remote == nil {
				remote = ocr.NewRemote(cfg.OCR.RemoteURL,
					ocr.WithHTTPClient(&http.Client{Timeout: cfg.OCR.Timeout}))
			}
			return remote
		}
		if tess == nil {
			tess = ocr.NewTesseract(cfg.OCR.Language, cfg.OCR.TessdataPrefix)
		}
		return tess
	}
	return pick(cfg.OCR.TextEngine), pick(cfg.OCR.AnnotatedEngine)
}

func buildGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger, d *deps) (store.Gateway, error) {
	switch cfg.Store.Backend {
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Store.DialTimeout)
		defer cancel()
		r, err := store.DialRedis(dialCtx, cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		d.health = r.Health
		d.closers = append(d.closers, func() { _ = r.Close() })
		return r, nil
	case "postgres":
		p, err := store.DialPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.DialTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.closers = append(d.closers, p.Close)
		if err := p.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		d.health = p.Health
		return p, nil
	}
	return store.NewMemory(), nil
}

func buildImageStore(ctx context.Context, cfg *config.Config) (imagestore.Store, error) {
	if cfg.Images.Store == "s3" {
		s, err := imagestore.DialS3(ctx, cfg.Images.S3Bucket, cfg.Images.S3Prefix)
		if err != nil {
			return nil, fmt.Errorf("s3 image store: %w", err)
		}
		return s, nil
	}
	return imagestore.NewFS(cfg.Images.Dir), nil
}

func buildExporter(cfg *config.Config, logger *slog.Logger) aggregate.Exporter {
	switch cfg.Export.Target {
	case "board":
		return export.NewBoardClient(cfg.Export.BoardURL, cfg.Export.BoardToken, cfg.Export.BoardID,
			export.WithBoardHTTPClient(&http.Client{Timeout: cfg.Export.Timeout}),
			export.WithBoardLogger(logger))
	case "xlsx":
		return export.NewWorkbookExporter(cfg.Export.XLSXPath, logger)
	}
	return export.Nop{Logger: logger}
}
