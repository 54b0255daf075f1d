// Package pool bounds concurrent recognition work. A fixed set of workers
// consumes a FIFO queue of jobs; each job runs under a hard wall-clock
// timeout through a Runner, the seam that decides whether work happens
// in-process or in a disposable worker process.
package pool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/submission"
)

// Submission errors.
var (
	// ErrQueueFull is returned when the job queue is at capacity.
	ErrQueueFull = errors.New("job queue is full")
	// ErrPoolClosed is returned when submitting to a closed pool.
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Defaults applied by New.
const (
	DefaultQueueDepth = 64
	DefaultJobTimeout = 2 * time.Minute
)

// Job is the unit of work the pool schedules.
type Job struct {
	ID          string
	Fingerprint submission.Fingerprint
	File        submission.File
	Options     submission.Options
	CreatedAt   time.Time
}

// Config sizes the pool and selects its execution strategy.
type Config struct {
	// Workers is the number of concurrent jobs. Defaults to NumCPU.
	Workers int
	// QueueDepth bounds the number of queued-but-not-running jobs.
	QueueDepth int
	// JobTimeout is the hard wall-clock budget per job.
	JobTimeout time.Duration
	// Runner executes jobs. Required.
	Runner Runner

	Logger  observability.Logger
	Metrics observability.Metrics
}

// Pool is a fixed-size worker pool with a bounded FIFO queue.
type Pool struct {
	cfg   Config
	queue chan *Handle
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New starts a pool with cfg.Workers workers.
func New(cfg Config) (*Pool, error) {
	if cfg.Runner == nil {
		return nil, errors.New("pool: Runner is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NopMetrics{}
	}
	p := &Pool{
		cfg:   cfg,
		queue: make(chan *Handle, cfg.QueueDepth),
	}
	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	return p, nil
}

// Submit enqueues a job without blocking. A full queue yields ErrQueueFull so
// callers can apply backpressure instead of piling up goroutines.
func (p *Pool) Submit(job Job) (*Handle, error) {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	h := newHandle(job)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	select {
	case p.queue <- h:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		return nil, ErrQueueFull
	}

	p.cfg.Metrics.Count(observability.MetricJobsSubmitted, 1)
	p.cfg.Logger.Debug("job queued",
		observability.String("job", job.ID),
		observability.String("fingerprint", string(job.Fingerprint)))
	return h, nil
}

// Close stops accepting jobs, lets queued and running jobs finish, and
// returns once all workers have exited.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for h := range p.queue {
		p.runJob(h)
	}
}

func (p *Pool) runJob(h *Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.JobTimeout)
	defer cancel()
	if !h.start(cancel) {
		// Canceled while still queued; never runs.
		h.complete(submission.FailureResult(submission.ErrJobCanceled))
		p.cfg.Metrics.Count(observability.MetricJobsCanceled, 1)
		return
	}

	start := time.Now()
	res, err := p.cfg.Runner.Run(ctx, h.job)
	elapsed := time.Since(start)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			res = submission.FailureResult(submission.ErrJobTimeout)
			p.cfg.Logger.Warn("job timed out",
				observability.String("job", h.job.ID),
				observability.Duration("timeout", p.cfg.JobTimeout))
		case errors.Is(err, context.Canceled):
			res = submission.FailureResult(submission.ErrJobCanceled)
		default:
			res = submission.FailureResult(err)
		}
	}

	h.complete(res)
	p.cfg.Metrics.Observe(observability.MetricJobDuration, elapsed.Seconds())
	if res.Failed() {
		switch res.Error.Kind {
		case submission.ErrorKindTimeout:
			p.cfg.Metrics.Count(observability.MetricJobsTimeout, 1)
		case submission.ErrorKindCanceled:
			p.cfg.Metrics.Count(observability.MetricJobsCanceled, 1)
		}
		p.cfg.Metrics.Count(observability.MetricJobsFailed, 1)
	} else {
		p.cfg.Metrics.Count(observability.MetricJobsCompleted, 1)
	}
	p.cfg.Logger.Debug("job finished",
		observability.String("job", h.job.ID),
		observability.String("status", string(h.Status())),
		observability.Duration("elapsed", elapsed))
}

// Handle tracks one submitted job. Waiters block on Done or Wait; the result
// is immutable once the job reaches a terminal state.
type Handle struct {
	job  Job
	done chan struct{}

	mu       sync.Mutex
	status   submission.JobStatus
	cancel   context.CancelFunc
	canceled bool
	result   submission.RecognitionResult
}

func newHandle(job Job) *Handle {
	return &Handle{
		job:    job,
		done:   make(chan struct{}),
		status: submission.JobStatusQueued,
	}
}

// Job returns the submitted job.
func (h *Handle) Job() Job { return h.job }

// Done is closed when the job reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Status reports the job's current lifecycle state.
func (h *Handle) Status() submission.JobStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Wait blocks until the job completes or the waiter's context expires. The
// error reflects only the waiter's context; job-level failures are embedded
// in the result.
func (h *Handle) Wait(ctx context.Context) (submission.RecognitionResult, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, nil
	case <-ctx.Done():
		return submission.RecognitionResult{}, ctx.Err()
	}
}

// Cancel requests cancellation. A queued job completes immediately as
// canceled without ever running; a running job has its context canceled and
// resolves through the same path as a timeout. Canceling a terminal job is a
// no-op.
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.canceled = true
	cancel := h.cancel
	queued := h.status == submission.JobStatusQueued
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		return
	}
	if queued {
		h.complete(submission.FailureResult(submission.ErrJobCanceled))
	}
}

// start transitions the job to running and attaches its cancel function.
// Returns false when cancellation already won the race.
func (h *Handle) start(cancel context.CancelFunc) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canceled {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
	}
	h.status = submission.JobStatusRunning
	h.cancel = cancel
	return true
}

// complete records the terminal result exactly once.
func (h *Handle) complete(res submission.RecognitionResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return
	default:
	}
	h.result = res
	if res.Failed() {
		h.status = submission.JobStatusFailed
	} else {
		h.status = submission.JobStatusDone
	}
	close(h.done)
}
