package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Rasterizer renders the first maxPages pages of a PDF into PNG files inside
// outDir and returns their paths in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outDir string, maxPages, dpi int) ([]string, error)
}

// Poppler shells out to pdftoppm from poppler-utils.
type Poppler struct {
	Path string
}

var pageFile = regexp.MustCompile(`^page-(\d+)\.png$`)

func (p Poppler) binary() string {
	if strings.TrimSpace(p.Path) != "" {
		return p.Path
	}
	return "pdftoppm"
}

// Ready reports whether the pdftoppm binary can be found.
func (p Poppler) Ready() error {
	if _, err := exec.LookPath(p.binary()); err != nil {
		return fmt.Errorf("missing required binary %q in PATH: %w", p.binary(), err)
	}
	return nil
}

func (p Poppler) Rasterize(ctx context.Context, pdfPath, outDir string, maxPages, dpi int) ([]string, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = 200
	}
	args := []string{"-r", strconv.Itoa(dpi), "-png"}
	if maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(maxPages))
	}
	args = append(args, pdfPath, filepath.Join(outDir, "page"))

	out, err := exec.CommandContext(ctx, p.binary(), args...).CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("pdftoppm failed: %w; out=%s", err, strings.TrimSpace(string(out)))
	}

	pages, err := pagesInOrder(outDir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no images produced by pdftoppm; out=%s", strings.TrimSpace(string(out)))
	}
	return pages, nil
}

// pagesInOrder lists page-N.png files sorted by N. pdftoppm zero-pads N to
// the width of the page count, so lexical order is not reliable across runs.
func pagesInOrder(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pageFile.FindStringSubmatch(strings.ToLower(e.Name()))
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		pages = append(pages, page{n: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}
