// Package rasterize turns PDF documents into per-page JPEG images.
//
// Structural checks (validation, page count) go through pdfcpu in-process.
// Pixel rendering is delegated to poppler's pdftoppm, invoked once per page,
// so a render failure on one page leaves every other page retryable.
package rasterize

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/submission"
)

// DefaultDensity is the render resolution in DPI when Config.Density is unset.
const DefaultDensity = 200

// Config controls how documents are opened and rendered.
type Config struct {
	// Density is the render resolution in DPI.
	Density int
	// PdftoppmPath overrides the pdftoppm binary lookup.
	PdftoppmPath string
	// PdfinfoPath overrides the pdfinfo binary lookup.
	PdfinfoPath string
	// WorkDir is the parent directory for per-document temp state.
	// Empty means the system temp directory.
	WorkDir string
	// Logger receives debug output. Nil means no logging.
	Logger observability.Logger
}

// Rasterizer opens PDF payloads for page-by-page rendering.
type Rasterizer struct {
	cfg Config
}

// New returns a Rasterizer with defaults applied.
func New(cfg Config) *Rasterizer {
	if cfg.Density <= 0 {
		cfg.Density = DefaultDensity
	}
	if cfg.PdftoppmPath == "" {
		cfg.PdftoppmPath = "pdftoppm"
	}
	if cfg.PdfinfoPath == "" {
		cfg.PdfinfoPath = "pdfinfo"
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &Rasterizer{cfg: cfg}
}

// Available reports whether the render binary can be found. Validation and
// page counting work without it; rendering does not.
func (r *Rasterizer) Available() bool {
	_, err := exec.LookPath(r.cfg.PdftoppmPath)
	return err == nil
}

// pdfcpu resolves a config directory on first use, which fails in read-only
// deployments. Disable it once for the whole process.
var configDirOnce sync.Once

func relaxedConfig() *model.Configuration {
	configDirOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open validates the payload, determines its page count and prepares a
// Document for rendering. Corrupt or encrypted payloads yield
// submission.ErrUnreadableDocument, zero-page ones submission.ErrEmptyDocument.
// The caller owns the Document and must Close it.
func (r *Rasterizer) Open(ctx context.Context, pdf []byte) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(r.cfg.WorkDir, "ocr-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	path := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(path, pdf, 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	if err := api.ValidateFile(path, relaxedConfig()); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %v", submission.ErrUnreadableDocument, err)
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		pages, err = r.countPagesPdfinfo(ctx, path)
	}
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: page count: %v", submission.ErrUnreadableDocument, err)
	}
	if pages == 0 {
		os.RemoveAll(dir)
		return nil, submission.ErrEmptyDocument
	}

	r.cfg.Logger.Debug("document opened",
		observability.Int("pages", pages),
		observability.Int("bytes", len(pdf)))

	return &Document{
		dir:      dir,
		path:     path,
		pages:    pages,
		density:  r.cfg.Density,
		pdftoppm: r.cfg.PdftoppmPath,
		log:      r.cfg.Logger,
	}, nil
}

// countPagesPdfinfo parses the "Pages:" line of pdfinfo output. Used when
// pdfcpu can open a file that it cannot count, which happens with some
// malformed but poppler-renderable documents.
func (r *Rasterizer) countPagesPdfinfo(ctx context.Context, path string) (int, error) {
	out, err := exec.CommandContext(ctx, r.cfg.PdfinfoPath, path).Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if n, convErr := strconv.Atoi(fields[1]); convErr == nil {
				return n, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("no page count in pdfinfo output")
}

// Document is an opened PDF ready for page rendering. Pages render
// independently; concurrent RenderPage calls for distinct pages are safe.
type Document struct {
	dir      string
	path     string
	pages    int
	density  int
	pdftoppm string
	log      observability.Logger
}

// PageCount reports the number of pages in the document.
func (d *Document) PageCount() int { return d.pages }

// RenderPage renders the zero-based page index to JPEG bytes. A failure here
// affects only this page; callers may retry or continue with siblings.
func (d *Document) RenderPage(ctx context.Context, index int) ([]byte, error) {
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", index, d.pages)
	}
	page := index + 1
	prefix := filepath.Join(d.dir, fmt.Sprintf("render-%d", page))

	args := []string{
		"-jpeg",
		"-r", strconv.Itoa(d.density),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		d.path,
		prefix,
	}
	cmd := exec.CommandContext(ctx, d.pdftoppm, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, strings.TrimSpace(stderr.String()))
	}

	out, err := findRenderedImage(prefix, page)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w", page, err)
	}
	os.Remove(out)

	d.log.Debug("page rendered",
		observability.Int("page", page),
		observability.Int("bytes", len(data)))
	return data, nil
}

// Close removes the document's temp state. The Document is unusable after.
func (d *Document) Close() error {
	return os.RemoveAll(d.dir)
}

// findRenderedImage locates pdftoppm's output file. The tool pads the page
// number in the filename to the width of the document's last page, so probe
// the plausible paddings before falling back to a glob.
func findRenderedImage(prefix string, page int) (string, error) {
	for width := 1; width <= 6; width++ {
		candidate := fmt.Sprintf("%s-%0*d.jpg", prefix, width, page)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	matches, err := filepath.Glob(prefix + "-*.jpg")
	if err != nil {
		return "", err
	}
	for _, match := range matches {
		if pageNumberFromName(match) == page {
			return match, nil
		}
	}
	return "", fmt.Errorf("rendered image not found for page %d", page)
}

func pageNumberFromName(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".jpg")
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
