// Package recognize implements end-to-end single-file recognition: page
// discovery, preprocessing and the per-page engine fallback chain, followed
// by text and confidence aggregation across pages.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wudi/ocrkit/engine"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/submission"
)

// PageSource is an opened multi-page document. The rasterize package provides
// the production implementation; tests substitute fakes.
type PageSource interface {
	PageCount() int
	RenderPage(ctx context.Context, index int) ([]byte, error)
	Close() error
}

// DocumentOpener opens a PDF payload for page rendering.
type DocumentOpener func(ctx context.Context, pdf []byte) (PageSource, error)

// Preprocessor normalizes a raw page image for OCR.
type Preprocessor interface {
	Process(raw []byte) ([]byte, error)
}

// Config wires a Coordinator's collaborators.
type Config struct {
	// Registry resolves preferred engine identifiers to implementations.
	Registry *engine.Registry
	// OpenDocument opens PDF payloads. Nil disables PDF support; PDF
	// submissions then fail as unreadable.
	OpenDocument DocumentOpener
	// Preprocess runs before every engine attempt. Nil passes raw page
	// images through.
	Preprocess Preprocessor
	// DPI is forwarded to engines as the effective render resolution.
	DPI int
	// Progress, when set, is invoked after each processed page with the
	// number of completed pages and the total.
	Progress func(completed, total int)

	Logger  observability.Logger
	Metrics observability.Metrics
}

// Coordinator orchestrates recognition for one file at a time. It is
// stateless between calls and safe for concurrent use.
type Coordinator struct {
	cfg Config
}

// New returns a Coordinator with defaults applied.
func New(cfg Config) *Coordinator {
	if cfg.Registry == nil {
		cfg.Registry = engine.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NopMetrics{}
	}
	return &Coordinator{cfg: cfg}
}

// Recognize runs the full pipeline for one file. Failures are embedded in the
// returned result rather than returned as an error: a job that cannot produce
// text is still a terminal outcome the caller can cache, inspect and report.
func (c *Coordinator) Recognize(ctx context.Context, file submission.File, opts submission.Options) submission.RecognitionResult {
	start := time.Now()
	opts = opts.Normalized()

	content, err := file.Bytes()
	if err != nil {
		return c.failure(fmt.Errorf("read submission: %w", err), start, 0)
	}

	engines, err := c.cfg.Registry.Resolve(opts.PreferredEngines)
	if err != nil {
		return c.failure(err, start, int64(len(content)))
	}

	kind := file.Kind
	if kind == "" {
		kind = submission.DetectKind(content)
	}

	var result submission.RecognitionResult
	if kind == submission.KindPDF {
		result = c.recognizePDF(ctx, content, opts, engines)
	} else {
		result = c.recognizeSinglePage(ctx, content, opts, engines)
	}

	result.Duration = time.Since(start)
	result.SourceBytes = int64(len(content))
	return result
}

func (c *Coordinator) failure(err error, start time.Time, sourceBytes int64) submission.RecognitionResult {
	res := submission.FailureResult(err)
	res.Duration = time.Since(start)
	res.SourceBytes = sourceBytes
	return res
}

func (c *Coordinator) recognizePDF(ctx context.Context, content []byte, opts submission.Options, engines []engine.Engine) submission.RecognitionResult {
	if c.cfg.OpenDocument == nil {
		return submission.FailureResult(fmt.Errorf("%w: no document opener configured", submission.ErrUnreadableDocument))
	}
	source, err := c.cfg.OpenDocument(ctx, content)
	if err != nil {
		return submission.FailureResult(err)
	}
	defer source.Close()

	total := source.PageCount()
	if total == 0 {
		return submission.FailureResult(submission.ErrEmptyDocument)
	}
	pages := total
	if opts.MaxPages > 0 && pages > opts.MaxPages {
		c.cfg.Logger.Debug("page cap applied",
			observability.Int("total", total),
			observability.Int("cap", opts.MaxPages))
		pages = opts.MaxPages
	}

	results := make([]submission.PageResult, 0, pages)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return submission.FailureResult(err)
		}
		raw, err := source.RenderPage(ctx, i)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return submission.FailureResult(ctxErr)
			}
			c.cfg.Logger.Warn("page render failed",
				observability.Int("page", i),
				observability.Error("error", err))
			results = append(results, submission.PageResult{
				Index:  i,
				Failed: true,
				Error:  err.Error(),
			})
		} else {
			results = append(results, c.recognizePage(ctx, raw, i, opts, engines))
		}
		if c.cfg.Progress != nil {
			c.cfg.Progress(i+1, pages)
		}
	}

	// A dead job context means truncated output; report the timeout or
	// cancellation instead of a partial aggregate that callers would cache.
	if err := ctx.Err(); err != nil {
		return submission.FailureResult(err)
	}

	res := c.aggregate(results)
	res.PagesProcessed = pages
	return res
}

func (c *Coordinator) recognizeSinglePage(ctx context.Context, content []byte, opts submission.Options, engines []engine.Engine) submission.RecognitionResult {
	if err := ctx.Err(); err != nil {
		return submission.FailureResult(err)
	}
	page := c.recognizePage(ctx, content, 0, opts, engines)
	if page.Failed {
		// Attempts aborted by the job deadline are timeouts, not engine
		// failures.
		if err := ctx.Err(); err != nil {
			return submission.FailureResult(err)
		}
	}
	if c.cfg.Progress != nil {
		c.cfg.Progress(1, 1)
	}
	res := c.aggregate([]submission.PageResult{page})
	res.PagesProcessed = 1
	return res
}

// recognizePage preprocesses one page image and walks the engine chain in
// priority order. An attempt fails on error, canceled context or empty text;
// the next engine then gets its turn. All attempts failing marks the page
// failed without aborting the job.
func (c *Coordinator) recognizePage(ctx context.Context, raw []byte, index int, opts submission.Options, engines []engine.Engine) submission.PageResult {
	start := time.Now()
	defer func() {
		c.cfg.Metrics.Observe(observability.MetricPageDuration, time.Since(start).Seconds())
	}()

	img := raw
	if c.cfg.Preprocess != nil {
		processed, err := c.cfg.Preprocess.Process(raw)
		if err != nil {
			c.cfg.Logger.Warn("page preprocess failed",
				observability.Int("page", index),
				observability.Error("error", err))
			return submission.PageResult{
				Index:    index,
				Failed:   true,
				Error:    fmt.Sprintf("preprocess: %v", err),
				Duration: time.Since(start),
			}
		}
		img = processed
	}

	var attempts []string
	for _, eng := range engines {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, err.Error())
			break
		}
		c.cfg.Metrics.Count(observability.MetricEngineAttempts, 1,
			observability.String("engine", eng.Name()))

		in := engine.NewInput(img, index,
			engine.WithLanguage(opts.Language),
			engine.WithDPI(c.cfg.DPI))
		res, err := eng.Recognize(ctx, in)
		if err == nil && strings.TrimSpace(res.Text) != "" {
			c.cfg.Logger.Debug("page recognized",
				observability.Int("page", index),
				observability.String("engine", eng.Name()),
				observability.Float64("confidence", res.Confidence))
			return submission.PageResult{
				Index:      index,
				Text:       res.Text,
				Confidence: clamp01(res.Confidence),
				Engine:     eng.Name(),
				Duration:   time.Since(start),
			}
		}
		if err == nil {
			err = errors.New("empty result")
		}
		attempt := &engine.AttemptError{Engine: eng.Name(), Err: err}
		attempts = append(attempts, attempt.Error())
		c.cfg.Metrics.Count(observability.MetricEngineFailures, 1,
			observability.String("engine", eng.Name()))
		c.cfg.Logger.Warn("engine attempt failed",
			observability.Int("page", index),
			observability.String("engine", eng.Name()),
			observability.Error("error", err))
	}

	return submission.PageResult{
		Index:    index,
		Failed:   true,
		Error:    strings.Join(attempts, "; "),
		Duration: time.Since(start),
	}
}

// aggregate folds per-page outcomes into the job-level result. Confidence is
// the mean over all processed pages with failed pages counted as 0. The
// engine field names the single contributing engine, or EngineMixed when
// pages came from different engines.
func (c *Coordinator) aggregate(pages []submission.PageResult) submission.RecognitionResult {
	res := submission.RecognitionResult{Pages: pages}
	if len(pages) == 0 {
		res.Error = submission.NewProcessingError(submission.ErrEmptyDocument)
		return res
	}

	allFailed := true
	var confidenceSum float64
	texts := make([]string, len(pages))
	engineNames := make(map[string]struct{})
	for i, page := range pages {
		texts[i] = page.Text
		confidenceSum += page.Confidence
		if !page.Failed {
			allFailed = false
			engineNames[page.Engine] = struct{}{}
		}
	}

	if allFailed {
		res.Error = submission.NewProcessingError(submission.ErrAllEnginesFailed)
		return res
	}

	res.Text = strings.Join(texts, "\n")
	res.Confidence = clamp01(confidenceSum / float64(len(pages)))
	switch len(engineNames) {
	case 1:
		for name := range engineNames {
			res.Engine = name
		}
	default:
		res.Engine = submission.EngineMixed
	}
	return res
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
