// Command redact masks salary information in one PDF.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hyeonwoo/redactkit"
	"github.com/hyeonwoo/redactkit/fonts"
	"github.com/hyeonwoo/redactkit/observability"
	"github.com/hyeonwoo/redactkit/observability/charmlog"
	"github.com/hyeonwoo/redactkit/ocr/tesseract"
	"github.com/hyeonwoo/redactkit/report"
)

type options struct {
	pdfPath     string
	outPath     string
	mode        string
	placeholder bool
	fontPath    string
	scale       float64
	rulePaths   []string
	langs       []string
	useOCR      bool
	reportPath  string
	verbose     bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "redact: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "redact: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: redact [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	out := flag.String("out", "", "Output path (default masked_<input> beside the input)")
	mode := flag.String("mode", "overlay", "Masking mode: overlay or flatten")
	placeholder := flag.Bool("placeholder", false, "Draw *** in each cover box (overlay mode, needs -font)")
	fontPath := flag.String("font", "", "TrueType font file for the placeholder text")
	scale := flag.Float64("scale", 0, "Raster scale for flatten mode (0 = default)")
	rules := flag.String("rules", "", "Comma-separated JavaScript rule files run after the built-in heuristics")
	langs := flag.String("langs", "", "Comma-separated OCR language hints (e.g. kor,eng)")
	useOCR := flag.Bool("ocr", false, "Run Tesseract on pages without text objects")
	reportPath := flag.String("report", "", "Write a PDF redaction report to this path")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	if *mode != "overlay" && *mode != "flatten" {
		return options{}, fmt.Errorf("unknown mode %q", *mode)
	}
	opts.pdfPath = flag.Arg(0)
	opts.outPath = *out
	if opts.outPath == "" {
		dir, name := filepath.Split(opts.pdfPath)
		opts.outPath = filepath.Join(dir, "masked_"+name)
	}
	opts.mode = *mode
	opts.placeholder = *placeholder
	opts.fontPath = *fontPath
	opts.scale = *scale
	opts.rulePaths = splitList(*rules)
	opts.langs = splitList(*langs)
	opts.useOCR = *useOCR
	opts.reportPath = *reportPath
	opts.verbose = *verbose
	return opts, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func run(opts options) error {
	cl := log.New(os.Stderr)
	if opts.verbose {
		cl.SetLevel(log.DebugLevel)
	}
	logger := charmlog.New(cl)

	document, err := os.ReadFile(opts.pdfPath)
	if err != nil {
		return err
	}
	mopts, err := maskOptions(opts, logger)
	if err != nil {
		return err
	}
	ctx := context.Background()

	matches, err := redactkit.Detect(ctx, document, mopts)
	if err != nil {
		return err
	}
	res, err := redactkit.Mask(ctx, document, mopts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.outPath, res.Output, 0o644); err != nil {
		return err
	}

	if res.WasMasked {
		fmt.Printf("masked %d region(s) -> %s\n", res.MaskedCount, opts.outPath)
	} else {
		fmt.Printf("no salary regions found; wrote unmodified copy -> %s\n", opts.outPath)
	}

	if opts.reportPath != "" {
		s := report.FromMatches(filepath.Base(opts.pdfPath), opts.mode, time.Now(), matches)
		var font *fonts.TrueTypeFont
		if opts.fontPath != "" {
			if font, err = loadFont(opts.fontPath); err != nil {
				return err
			}
		}
		pdf, err := report.NewRenderer(report.Config{Font: font, Logger: logger}).RenderSummary(s)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		if err := os.WriteFile(opts.reportPath, pdf, 0o644); err != nil {
			return err
		}
		fmt.Printf("report -> %s\n", opts.reportPath)
	}
	return nil
}

func maskOptions(opts options, logger observability.Logger) (redactkit.Options, error) {
	mopts := redactkit.Options{
		Mode:        redactkit.Mode(opts.mode),
		Placeholder: opts.placeholder,
		RasterScale: opts.scale,
		Logger:      logger,
	}
	if opts.fontPath != "" {
		font, err := loadFont(opts.fontPath)
		if err != nil {
			return redactkit.Options{}, err
		}
		mopts.PlaceholderFont = font
	}
	for _, path := range opts.rulePaths {
		src, err := os.ReadFile(path)
		if err != nil {
			return redactkit.Options{}, fmt.Errorf("rule %s: %w", path, err)
		}
		mopts.Rules = append(mopts.Rules, string(src))
	}
	if opts.useOCR {
		mopts.OCR = tesseract.New()
		mopts.OCRLanguages = opts.langs
	}
	return mopts, nil
}

func loadFont(path string) (*fonts.TrueTypeFont, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	font, err := fonts.LoadTrueType(name, data)
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", path, err)
	}
	return font, nil
}
