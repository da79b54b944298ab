package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/procurement-intake/constants"
	"github.com/joseph-ayodele/procurement-intake/internal/async"
	"github.com/joseph-ayodele/procurement-intake/internal/common"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/export"
)

var (
	extractDir     string
	extractOut     string
	extractWorkers int
	extractTimeout time.Duration
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf...]",
	Short: "Extract procurement records from PDFs into an XLSX workbook",
	Long: `Runs every PDF given as an argument or found under --dir through the
extraction pipeline and writes one row per file to the output workbook.
Files that fail are kept in the workbook with their error status.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractDir, "dir", "", "directory to scan recursively for PDFs")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "procurement.xlsx", "output workbook path")
	extractCmd.Flags().IntVarP(&extractWorkers, "workers", "w", 4, "concurrent extractions")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 3*time.Minute, "per-document deadline")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	files, err := collectPDFs(extractDir, args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no PDF files to process")
	}

	ctx := cmd.Context()
	app, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	var (
		mu   sync.Mutex
		rows []export.Row
	)
	collect := func(row export.Row) {
		mu.Lock()
		rows = append(rows, row)
		mu.Unlock()
	}

	queue := async.NewExtractionQueue(app.Extraction, func(r async.Result) {
		collect(export.Row{Source: r.Job.ID, Result: r.Extraction, Err: r.Err})
	}, logger,
		async.WithWorkers(extractWorkers),
		async.WithQueueSize(len(files)),
		async.WithProcessTimeout(extractTimeout),
	)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			collect(export.Row{Source: path, Err: err})
			continue
		}
		job := async.Job{
			ID: path,
			Document: entity.RawDocument{
				Data:          data,
				Filename:      filepath.Base(path),
				ContentType:   "application/pdf",
				CorrelationID: common.EnsureCorrelationID(""),
			},
		}
		if err := queue.Enqueue(ctx, job); err != nil {
			queue.Shutdown(context.Background())
			return err
		}
	}
	queue.Shutdown(context.Background())

	slices.SortFunc(rows, func(a, b export.Row) int { return strings.Compare(a.Source, b.Source) })

	book, err := export.NewService(logger).RecordsXLSX(rows)
	if err != nil {
		return err
	}
	if err := os.WriteFile(extractOut, book, 0o644); err != nil {
		return err
	}

	failed := 0
	for _, r := range rows {
		if r.Err != nil {
			failed++
			cmd.Printf("FAIL %s: %v\n", r.Source, r.Err)
		}
	}
	cmd.Printf("processed %d file(s): %d extracted, %d failed\n", len(rows), len(rows)-failed, failed)
	cmd.Printf("wrote %s\n", extractOut)
	return nil
}

// collectPDFs returns explicit paths followed by PDFs found under dir, deduplicated.
func collectPDFs(dir string, paths []string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range paths {
		add(filepath.Clean(p))
	}
	if dir == "" {
		return out, nil
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(path))]; ok {
			add(path)
		}
		return nil
	})
	return out, err
}
