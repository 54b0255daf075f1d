package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// Mock is a scriptable in-memory engine used by tests and examples: fixed
// text and confidence by default, optional forced error, artificial delay,
// or a fully scripted RecognizeFn. The call counter makes single-flight and
// caching behavior observable.
type Mock struct {
	// EngineName is reported by Name; defaults to "mock".
	EngineName string
	// Text and Confidence form the default successful result.
	Text       string
	Confidence float64
	// Err, when set, fails every recognition attempt.
	Err error
	// Delay stalls each call, honoring context cancellation.
	Delay time.Duration
	// Unavailable makes the availability probe report false.
	Unavailable bool
	// RecognizeFn overrides the canned behavior entirely when set.
	RecognizeFn func(ctx context.Context, in Input) (Result, error)

	calls atomic.Int64
}

func (m *Mock) Name() string {
	if m.EngineName == "" {
		return "mock"
	}
	return m.EngineName
}

func (m *Mock) Available() bool { return !m.Unavailable }

// Calls reports how many times Recognize has been invoked.
func (m *Mock) Calls() int64 { return m.calls.Load() }

func (m *Mock) Recognize(ctx context.Context, in Input) (Result, error) {
	m.calls.Add(1)
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	}
	if m.RecognizeFn != nil {
		return m.RecognizeFn(ctx, in)
	}
	if m.Err != nil {
		return Result{}, m.Err
	}
	return Result{Text: m.Text, Confidence: m.Confidence}, nil
}
