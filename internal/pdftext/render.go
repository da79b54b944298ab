package pdftext

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/procurement-intake/internal/entity"
)

// PageSelection picks which pages the recovery pass looks at.
type PageSelection int

const (
	AllPages PageSelection = iota
	FirstAndLastPage
)

func (p PageSelection) String() string {
	if p == FirstAndLastPage {
		return "first_and_last"
	}
	return "all"
}

// RenderConfig for the page rasterizer.
type RenderConfig struct {
	Pdfinfo  string // default "pdfinfo"
	Pdftoppm string // default "pdftoppm"
	DPI      int    // default 150
	MaxPages int    // cap for AllPages, 0 renders every page
	TempDir  string
}

// Renderer rasterizes selected PDF pages into PNG images.
type Renderer struct {
	cfg    RenderConfig
	runner Runner
	logger *slog.Logger
}

func NewRenderer(cfg RenderConfig, runner Runner, logger *slog.Logger) *Renderer {
	if cfg.Pdfinfo == "" {
		cfg.Pdfinfo = "pdfinfo"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{cfg: cfg, runner: runner, logger: logger}
}

// Render returns PNG images for the selected pages in page order. A
// document without pages yields no images and no error.
func (r *Renderer) Render(ctx context.Context, data []byte, sel PageSelection) ([]entity.PageImage, error) {
	start := time.Now()
	if len(data) == 0 {
		return nil, nil
	}

	path, cleanup, err := writeTemp(r.cfg.TempDir, data)
	if err != nil {
		return nil, err
	}
	defer cleanup(r.logger)

	count, err := r.pageCount(ctx, path)
	if err != nil {
		return nil, err
	}
	pages := SelectPages(count, sel, r.cfg.MaxPages)
	if sel == AllPages && len(pages) < count {
		r.logger.Warn("render.pages.truncated", "page_count", count, "rendered", len(pages), "max_pages", r.cfg.MaxPages)
	}
	if len(pages) == 0 {
		return nil, nil
	}

	tmpDir, err := os.MkdirTemp(r.cfg.TempDir, "pi-pp-*")
	if err != nil {
		return nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	images := make([]entity.PageImage, 0, len(pages))
	for _, p := range pages {
		prefix := filepath.Join(tmpDir, fmt.Sprintf("page-%d", p))
		n := strconv.Itoa(p)
		// pdftoppm -r <dpi> -png -f N -l N -singlefile <in.pdf> <prefix>
		_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, r.logger,
			"-r", strconv.Itoa(r.cfg.DPI), "-png", "-f", n, "-l", n, "-singlefile", path, prefix)
		if err != nil {
			return images, commandError(ctx, err, errb)
		}
		b, err := os.ReadFile(prefix + ".png")
		if err != nil {
			return images, fmt.Errorf("read rendered page %d: %w", p, err)
		}
		images = append(images, entity.PageImage{Page: p, MediaType: "image/png", Data: b})
	}

	r.logger.Info("pdftext.render.ok",
		"selection", sel.String(),
		"page_count", count,
		"rendered", len(images),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return images, nil
}

func (r *Renderer) pageCount(ctx context.Context, path string) (int, error) {
	out, errb, err := r.runner.Run(ctx, r.cfg.Pdfinfo, r.logger, path)
	if err != nil {
		return 0, commandError(ctx, err, errb)
	}
	return ParsePageCount(out)
}

// ParsePageCount reads the "Pages:" line of pdfinfo output.
func ParsePageCount(info []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(info))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("parse page count %q: %w", line, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo output has no Pages line")
}

// SelectPages returns 1-based page numbers for sel. FirstAndLastPage on a
// one-page document returns that page once; AllPages is capped at max when
// max is positive.
func SelectPages(count int, sel PageSelection, max int) []int {
	if count <= 0 {
		return nil
	}
	if sel == FirstAndLastPage {
		if count == 1 {
			return []int{1}
		}
		return []int{1, count}
	}
	if max > 0 && count > max {
		count = max
	}
	out := make([]int, count)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
