// Package gateway is the public entry point of the recognition pipeline.
// It wires the preprocessor, rasterizer, engine registry, coordinator,
// worker pool and result cache together behind three operations:
// ProcessSingle, ProcessBatch and ClearCache.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wudi/ocrkit/cache"
	"github.com/wudi/ocrkit/engine"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/pool"
	"github.com/wudi/ocrkit/preprocess"
	"github.com/wudi/ocrkit/rasterize"
	"github.com/wudi/ocrkit/recognize"
	"github.com/wudi/ocrkit/submission"
)

// Config assembles a Gateway. Engines or Registry must supply at least
// one recognition engine; everything else has working defaults.
type Config struct {
	// Engines are registered under their own names. Ignored when
	// Registry is set.
	Engines []engine.Engine
	// Registry, when non-nil, is used as-is instead of Engines.
	Registry *engine.Registry

	// Preprocess tunes the image preprocessing chain.
	Preprocess preprocess.Options
	// Rasterize configures PDF page rendering.
	Rasterize rasterize.Config
	// Pool sizes the worker pool. The Runner field is ignored; the
	// gateway installs its own.
	Pool pool.Config
	// Cache sizes the result cache.
	Cache cache.Config

	// WorkerBin, when set, runs every job in an isolated worker process
	// (cmd/ocrworker). Empty runs jobs in-process.
	WorkerBin string
	// WorkerArgs are extra arguments passed to WorkerBin.
	WorkerArgs []string

	// BatchConcurrency caps concurrent submissions within one
	// ProcessBatch call so a single batch cannot saturate the queue.
	// Defaults to the pool's worker count.
	BatchConcurrency int

	Logger  observability.Logger
	Metrics observability.Metrics
}

// BatchItem pairs one input file with its outcome. Err is set only for
// infrastructure refusals (backpressure, context expiry); recognition
// failures ride inside Result.Error.
type BatchItem struct {
	File   submission.File
	Result submission.RecognitionResult
	Err    error
}

// Gateway is safe for concurrent use by any number of callers.
type Gateway struct {
	cfg      Config
	registry *engine.Registry
	raster   *rasterize.Rasterizer
	coord    *recognize.Coordinator
	pool     *pool.Pool
	cache    *cache.Cache
	log      observability.Logger

	closeOnce sync.Once
}

// New wires a Gateway from cfg.
func New(cfg Config) (*Gateway, error) {
	if cfg.Registry == nil && len(cfg.Engines) == 0 {
		return nil, errors.New("gateway: at least one engine is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NopMetrics{}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = engine.NewRegistry(cfg.Engines...)
	}

	rastCfg := cfg.Rasterize
	if rastCfg.Logger == nil {
		rastCfg.Logger = cfg.Logger
	}
	raster := rasterize.New(rastCfg)
	if !raster.Available() {
		cfg.Logger.Warn("pdftoppm not found on PATH; PDF submissions will fail as unreadable")
	}
	density := rastCfg.Density
	if density <= 0 {
		density = rasterize.DefaultDensity
	}

	coord := recognize.New(recognize.Config{
		Registry: registry,
		OpenDocument: func(ctx context.Context, pdf []byte) (recognize.PageSource, error) {
			doc, err := raster.Open(ctx, pdf)
			if err != nil {
				return nil, err
			}
			return doc, nil
		},
		Preprocess: preprocess.New(cfg.Preprocess),
		DPI:        density,
		Logger:     cfg.Logger,
		Metrics:    cfg.Metrics,
	})

	var runner pool.Runner
	if cfg.WorkerBin != "" {
		runner = &pool.ProcessRunner{
			WorkerBin: cfg.WorkerBin,
			Args:      cfg.WorkerArgs,
			Logger:    cfg.Logger,
			OnProgress: func(job pool.Job, completed, total int) {
				cfg.Logger.Debug("job progress",
					observability.String("job", job.ID),
					observability.Int("completed", completed),
					observability.Int("total", total))
			},
		}
	} else {
		runner = pool.LocalRunner{Coordinator: coord}
	}

	poolCfg := cfg.Pool
	poolCfg.Runner = runner
	if poolCfg.Logger == nil {
		poolCfg.Logger = cfg.Logger
	}
	if poolCfg.Metrics == nil {
		poolCfg.Metrics = cfg.Metrics
	}
	workerPool, err := pool.New(poolCfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	cacheCfg := cfg.Cache
	if cacheCfg.Logger == nil {
		cacheCfg.Logger = cfg.Logger
	}
	if cacheCfg.Metrics == nil {
		cacheCfg.Metrics = cfg.Metrics
	}

	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = poolCfg.Workers
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = runtime.NumCPU()
	}

	return &Gateway{
		cfg:      cfg,
		registry: registry,
		raster:   raster,
		coord:    coord,
		pool:     workerPool,
		cache:    cache.New(cacheCfg),
		log:      cfg.Logger,
	}, nil
}

// ProcessSingle recognizes one file, consulting the cache first and
// dispatching to the worker pool on a miss. It blocks until the job
// reaches a terminal state.
//
// Failures of the recognition itself come back inside the result; the
// error return is reserved for ctx expiring while waiting and for
// submission refusals such as pool.ErrQueueFull.
func (g *Gateway) ProcessSingle(ctx context.Context, file submission.File, opts submission.Options) (submission.RecognitionResult, error) {
	opts = opts.Normalized()

	content, err := file.Bytes()
	if err != nil {
		// Nothing to fingerprint: terminal outcome, not an infra error.
		return submission.FailureResult(fmt.Errorf("%w: %v", submission.ErrUnreadableDocument, err)), nil
	}
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.Data == nil {
		// The payload travels with the job so process workers need no
		// shared filesystem with the gateway.
		file.Data = content
		file.Size = int64(len(content))
	}

	fp := submission.ComputeFingerprint(content, opts)
	g.log.Debug("submission accepted",
		observability.String("file", file.ID),
		observability.String("name", file.Name),
		observability.String("fingerprint", string(fp)),
		observability.Int64("bytes", int64(len(content))))

	return g.cache.GetOrCompute(ctx, fp, opts.BypassCache, func(cctx context.Context) (submission.RecognitionResult, error) {
		return g.runJob(cctx, fp, file, opts)
	})
}

// runJob is the cache's compute path: submit to the pool and wait. When
// ctx dies every waiter has already detached, so the job is canceled
// rather than left running for nobody.
func (g *Gateway) runJob(ctx context.Context, fp submission.Fingerprint, file submission.File, opts submission.Options) (submission.RecognitionResult, error) {
	handle, err := g.pool.Submit(pool.Job{
		ID:          file.ID,
		Fingerprint: fp,
		File:        file,
		Options:     opts,
	})
	if err != nil {
		return submission.RecognitionResult{}, err
	}
	res, err := handle.Wait(ctx)
	if err != nil {
		handle.Cancel()
		return submission.RecognitionResult{}, err
	}
	return res, nil
}

// ProcessBatch recognizes files concurrently, each independently
// fingerprinted, cached and pooled. The returned slice matches the
// input length and order regardless of completion order; one item's
// failure never affects its siblings.
func (g *Gateway) ProcessBatch(ctx context.Context, files []submission.File, opts submission.Options) []BatchItem {
	items := make([]BatchItem, len(files))

	// Deliberately not errgroup.WithContext: a failing item must not
	// cancel the rest of the batch.
	var eg errgroup.Group
	eg.SetLimit(g.cfg.BatchConcurrency)
	for i, file := range files {
		eg.Go(func() error {
			res, err := g.ProcessSingle(ctx, file, opts)
			items[i] = BatchItem{File: file, Result: res, Err: err}
			return nil
		})
	}
	eg.Wait()
	return items
}

// Engines lists the registered engine identifiers in sorted order.
func (g *Gateway) Engines() []string {
	return g.registry.Names()
}

// ClearCache removes cached results matching pattern (path.Match over
// hex fingerprints; empty clears all) and reports how many were removed.
func (g *Gateway) ClearCache(pattern string) int {
	return g.cache.Clear(pattern)
}

// CacheStats exposes cache counters for operational tooling.
func (g *Gateway) CacheStats() cache.Stats {
	return g.cache.Stats()
}

// Close stops accepting work and blocks until queued and running jobs
// have drained.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		g.pool.Close()
	})
}
