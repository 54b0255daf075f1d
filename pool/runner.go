package pool

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/submission"
)

// Runner executes one job to completion. The pool classifies context errors
// (timeout, cancellation) itself; runners just propagate them.
type Runner interface {
	Run(ctx context.Context, job Job) (submission.RecognitionResult, error)
}

// Coordinator is the in-process recognition entry point LocalRunner wraps.
type Coordinator interface {
	Recognize(ctx context.Context, file submission.File, opts submission.Options) submission.RecognitionResult
}

// LocalRunner runs jobs in-process. It trades the crash isolation of a
// separate worker process for zero spawn overhead; embedders accepting that
// trade, and most tests, use it.
type LocalRunner struct {
	Coordinator Coordinator
}

func (r LocalRunner) Run(ctx context.Context, job Job) (submission.RecognitionResult, error) {
	return r.Coordinator.Recognize(ctx, job.File, job.Options), nil
}

// maxEventBytes bounds a single worker output line. Result events carry the
// full recognized text, so the ceiling is generous.
const maxEventBytes = 16 << 20

// ProcessRunner executes each job in a freshly spawned worker process. The
// job spec goes to the worker's stdin as JSON; the worker answers with
// newline-delimited events on stdout. Context expiry kills the process, which
// is what recycles a hung worker: no process outlives its job.
type ProcessRunner struct {
	// WorkerBin is the worker executable path.
	WorkerBin string
	// Args are extra arguments passed to the worker.
	Args []string
	// Env appends to the inherited environment.
	Env []string
	// OnProgress, when set, receives progress events as the worker emits them.
	OnProgress func(job Job, completed, total int)
	// Logger receives worker diagnostics. Nil means no logging.
	Logger observability.Logger

	// WaitDelay bounds how long Run waits for the worker's pipes to close
	// after a kill. Zero means 5 seconds.
	WaitDelay time.Duration
}

func (r *ProcessRunner) logger() observability.Logger {
	if r.Logger == nil {
		return observability.NopLogger{}
	}
	return r.Logger
}

func (r *ProcessRunner) Run(ctx context.Context, job Job) (submission.RecognitionResult, error) {
	spec, err := json.Marshal(JobSpec{JobID: job.ID, File: job.File, Options: job.Options})
	if err != nil {
		return submission.RecognitionResult{}, fmt.Errorf("encode job spec: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.WorkerBin, r.Args...)
	cmd.Stdin = bytes.NewReader(spec)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return submission.RecognitionResult{}, fmt.Errorf("worker stdout: %w", err)
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	if err := cmd.Start(); err != nil {
		return submission.RecognitionResult{}, fmt.Errorf("start worker: %w", err)
	}

	// Scan on a separate goroutine so a killed worker cannot wedge Run: a
	// subprocess of the worker may inherit the stdout pipe and keep it open
	// past the kill, and only Wait's WaitDelay force-closes it.
	var result *submission.RecognitionResult
	var workerErr string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				r.logger().Warn("worker emitted malformed event",
					observability.String("job", job.ID),
					observability.Error("error", err))
				continue
			}
			switch ev.Type {
			case EventProgress:
				if r.OnProgress != nil && ev.Progress != nil {
					r.OnProgress(job, ev.Progress.Completed, ev.Progress.Total)
				}
			case EventResult:
				if ev.Result != nil {
					result = ev.Result
				}
			case EventError:
				workerErr = ev.Error
			}
		}
	}()

	select {
	case <-scanDone:
	case <-ctx.Done():
	}
	waitErr := cmd.Wait()
	<-scanDone
	scanErr := scanner.Err()

	if err := ctx.Err(); err != nil {
		return submission.RecognitionResult{}, err
	}
	if result != nil {
		return *result, nil
	}
	switch {
	case workerErr != "":
		return submission.RecognitionResult{}, fmt.Errorf("worker error: %s", workerErr)
	case waitErr != nil:
		return submission.RecognitionResult{}, fmt.Errorf("worker exited: %w: %s", waitErr, strings.TrimSpace(stderr.String()))
	case scanErr != nil:
		return submission.RecognitionResult{}, fmt.Errorf("read worker output: %w", scanErr)
	default:
		return submission.RecognitionResult{}, errors.New("worker produced no result")
	}
}
