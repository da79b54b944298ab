package pdftext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

// Config for the local text-layer extractor.
type Config struct {
	Pdftotext      string // default "pdftotext"
	MinUsefulChars int    // default 200
	TempDir        string // default os.TempDir()
}

type backend struct {
	method constants.ExtractionMethod
	run    func(ctx context.Context, path string) (string, error)
}

// Extractor tries the local backends in priority order and keeps the first
// result with enough characters. Attempts are sequential.
type Extractor struct {
	cfg      Config
	runner   Runner
	logger   *slog.Logger
	backends []backend
}

func NewExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.MinUsefulChars <= 0 {
		cfg.MinUsefulChars = 200
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{cfg: cfg, runner: runner, logger: logger}
	e.backends = []backend{
		{method: constants.MethodLayout, run: e.layoutText},
		{method: constants.MethodTable, run: e.tableText},
		{method: constants.MethodFast, run: e.rawText},
	}
	return e
}

// Extract returns the first backend output of at least MinUsefulChars
// cleaned characters. Not finding one is reported through Success=false,
// not as an error; errors are reserved for I/O and cancellation.
func (e *Extractor) Extract(ctx context.Context, data []byte) (entity.ExtractedText, error) {
	if len(data) == 0 {
		return entity.ExtractedText{}, nil
	}

	path, cleanup, err := writeTemp(e.cfg.TempDir, data)
	if err != nil {
		return entity.ExtractedText{}, err
	}
	defer cleanup(e.logger)

	for _, b := range e.backends {
		if err := ctx.Err(); err != nil {
			return entity.ExtractedText{}, err
		}
		start := time.Now()
		raw, err := b.run(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return entity.ExtractedText{}, err
			}
			e.logger.Warn("pdftext.backend.failed", "method", b.method, "error", err)
			continue
		}
		text := Clean(raw)
		n := CharCount(text)
		if n >= e.cfg.MinUsefulChars {
			e.logger.Info("pdftext.backend.ok", "method", b.method, "chars", n,
				"elapsed_ms", time.Since(start).Milliseconds())
			return entity.ExtractedText{Text: text, Method: b.method, Success: true}, nil
		}
		e.logger.Info("pdftext.backend.insufficient", "method", b.method, "chars", n, "min", e.cfg.MinUsefulChars)
	}
	return entity.ExtractedText{}, nil
}

func (e *Extractor) layoutText(ctx context.Context, path string) (string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", commandError(ctx, err, errb)
	}
	return string(out), nil
}

func (e *Extractor) tableText(ctx context.Context, path string) (string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-bbox-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", commandError(ctx, err, errb)
	}
	return RowsFromBBox(out)
}

func (e *Extractor) rawText(ctx context.Context, path string) (string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-raw", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", commandError(ctx, err, errb)
	}
	return string(out), nil
}

func commandError(ctx context.Context, err error, stderr []byte) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s", err, truncate(string(stderr), 512))
}

func writeTemp(dir string, data []byte) (string, func(*slog.Logger), error) {
	f, err := os.CreateTemp(dir, "pi-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create temp pdf: %w", err)
	}
	name := f.Name()
	cleanup := func(logger *slog.Logger) {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove temp file", "path", name, "error", err)
		}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup(slog.Default())
		return "", nil, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup(slog.Default())
		return "", nil, fmt.Errorf("close temp pdf: %w", err)
	}
	return name, cleanup, nil
}
