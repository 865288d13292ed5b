package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyeonwoo/redactkit"
	"github.com/hyeonwoo/redactkit/fonts"
	"github.com/hyeonwoo/redactkit/observability"
	"github.com/hyeonwoo/redactkit/ocr/tesseract"
	"github.com/hyeonwoo/redactkit/redact"
	"github.com/hyeonwoo/redactkit/service"
	"github.com/hyeonwoo/redactkit/store"
)

// Daemon watches an inbox for PDFs, masks them, and drops the results in the
// outbox. Every document and its masked copy are recorded in the stores.
type Daemon struct {
	cfg    Config
	logger observability.Logger
	meta   *store.SQLiteStore
	docs   *service.Documents
}

func NewDaemon(cfg Config, logger observability.Logger) (*Daemon, error) {
	logger = observability.OrNop(logger)
	opts, err := maskOptions(cfg.Mask, logger)
	if err != nil {
		return nil, err
	}
	meta, err := store.OpenSQLite(cfg.Store.Database)
	if err != nil {
		return nil, err
	}
	blobs, err := store.NewFSBlobStore(cfg.Store.Blobs, []byte(cfg.Store.Secret))
	if err != nil {
		meta.Close()
		return nil, err
	}
	docs, err := service.NewDocuments(service.Config{
		Meta:     meta,
		Blobs:    blobs,
		Logger:   logger,
		Redactor: redactor(opts),
	})
	if err != nil {
		meta.Close()
		return nil, err
	}
	for _, dir := range []string{cfg.Watch.Inbox, cfg.Watch.Outbox} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			meta.Close()
			return nil, err
		}
	}
	return &Daemon{cfg: cfg, logger: logger, meta: meta, docs: docs}, nil
}

func (d *Daemon) Close() error {
	return d.meta.Close()
}

// redactor adapts the masking pipeline to the document service: nil regions
// run detection, explicit regions are masked as given.
func redactor(opts redactkit.Options) service.RedactorFunc {
	return func(ctx context.Context, document []byte, regions []redact.Region) (redact.RedactionResult, error) {
		if len(regions) == 0 {
			return redactkit.Mask(ctx, document, opts)
		}
		ropts := redact.Options{
			Placeholder:     opts.Placeholder,
			PlaceholderFont: opts.PlaceholderFont,
			Scale:           opts.RasterScale,
			Logger:          opts.Logger,
		}
		if opts.Mode == redactkit.ModeFlatten {
			return redact.FlattenAndRedact(ctx, document, regions, ropts)
		}
		return redact.CoverRegions(ctx, document, regions, ropts)
	}
}

func maskOptions(cfg MaskConfig, logger observability.Logger) (redactkit.Options, error) {
	opts := redactkit.Options{
		Mode:        redactkit.Mode(cfg.Mode),
		Placeholder: cfg.Placeholder,
		RasterScale: cfg.RasterScale,
		Logger:      logger,
	}
	if cfg.Font != "" {
		data, err := os.ReadFile(cfg.Font)
		if err != nil {
			return redactkit.Options{}, err
		}
		name := strings.TrimSuffix(filepath.Base(cfg.Font), filepath.Ext(cfg.Font))
		font, err := fonts.LoadTrueType(name, data)
		if err != nil {
			return redactkit.Options{}, fmt.Errorf("font %s: %w", cfg.Font, err)
		}
		opts.PlaceholderFont = font
	}
	for _, path := range cfg.RuleFiles {
		src, err := os.ReadFile(path)
		if err != nil {
			return redactkit.Options{}, fmt.Errorf("rule %s: %w", path, err)
		}
		opts.Rules = append(opts.Rules, string(src))
	}
	if cfg.OCR {
		opts.OCR = tesseract.New()
		opts.OCRLanguages = cfg.Languages
	}
	return opts, nil
}

// ProcessFile masks one inbox file: the original and the masked copy go into
// the stores, the masked bytes also land in the outbox, and the inbox file is
// removed.
func (d *Daemon) ProcessFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	doc, err := d.docs.Upload(ctx, "inbox", name, data)
	if err != nil {
		return err
	}
	masked, err := d.docs.MaskDocument(ctx, doc.ID, nil)
	if err != nil {
		return err
	}
	out, err := d.docs.Download(ctx, masked.ID)
	if err != nil {
		return err
	}
	outPath := filepath.Join(d.cfg.Watch.Outbox, masked.Name)
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		d.logger.Warn("inbox cleanup failed",
			observability.String("file", path),
			observability.Error("err", err))
	}
	d.logger.Info("document masked",
		observability.String("in", name),
		observability.String("out", outPath),
		observability.String("id", masked.ID))
	return nil
}

// DrainInbox masks every PDF already sitting in the inbox. A failing file is
// logged and left in place so it does not block the rest.
func (d *Daemon) DrainInbox(ctx context.Context) error {
	entries, err := os.ReadDir(d.cfg.Watch.Inbox)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isPDF(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(d.cfg.Watch.Inbox, entry.Name())
		if err := d.ProcessFile(ctx, path); err != nil {
			d.logger.Error("masking failed",
				observability.String("file", path),
				observability.Error("err", err))
		}
	}
	return nil
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
