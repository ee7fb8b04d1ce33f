// Package ocr turns scanned PDFs into text: pages are rasterised with
// pdftoppm, cleaned up, and sent to a recognition engine in parallel.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"intellidoc-backend/internal/shared/telemetry"
)

// Options bounds the work a single document may cause.
type Options struct {
	MaxPages int
	DPI      int
	Timeout  time.Duration
	Workers  int
	MaxJobs  int
}

// Pipeline implements extract.OCR.
type Pipeline struct {
	rasterizer Rasterizer
	engine     Engine
	opts       Options
	sem        *semaphore.Weighted
	tempDir    string
}

// NewPipeline builds a pipeline. MaxJobs caps the documents processed at once
// across the whole process; Workers caps pages in flight per document.
func NewPipeline(r Rasterizer, e Engine, opts Options) *Pipeline {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.DPI <= 0 {
		opts.DPI = 200
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = 2
	}
	return &Pipeline{
		rasterizer: r,
		engine:     e,
		opts:       opts,
		sem:        semaphore.NewWeighted(int64(opts.MaxJobs)),
	}
}

// RecognizePDF rasterises up to MaxPages pages and returns their text joined
// by blank lines, in page order.
func (p *Pipeline) RecognizePDF(ctx context.Context, pdf []byte) (string, error) {
	if p == nil || p.rasterizer == nil || p.engine == nil {
		return "", errors.New("ocr pipeline not configured")
	}
	if len(pdf) == 0 {
		return "", errors.New("empty pdf")
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("ocr queue: %w", err)
	}
	defer p.sem.Release(1)

	start := time.Now()
	dir, err := os.MkdirTemp(p.tempDir, "intellidoc_ocr_*")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(src, pdf, 0o600); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}

	pages, err := p.rasterizer.Rasterize(ctx, src, dir, p.opts.MaxPages, p.opts.DPI)
	if err != nil {
		return "", fmt.Errorf("rasterize: %w", err)
	}
	if len(pages) > p.opts.MaxPages {
		pages = pages[:p.opts.MaxPages]
	}

	texts := make([]string, len(pages))
	pageErrs := make([]error, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, path := range pages {
		g.Go(func() error {
			img, err := preparePage(path)
			if err != nil {
				pageErrs[i] = err
				return nil
			}
			text, err := p.engine.Recognize(gctx, img)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				pageErrs[i] = err
				return nil
			}
			texts[i] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var failed int
	var firstErr error
	for i, perr := range pageErrs {
		if perr == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = perr
		}
		telemetry.Warn("ocr.page_failed", map[string]any{"page": i + 1, "error": perr.Error()})
	}
	if len(pages) > 0 && failed == len(pages) {
		return "", fmt.Errorf("all %d pages failed: %w", failed, firstErr)
	}

	var parts []string
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	telemetry.Info("ocr.complete", map[string]any{
		"pages":       len(pages),
		"failed":      failed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return strings.Join(parts, "\n\n"), nil
}
