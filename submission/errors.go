package submission

import (
	"context"
	"errors"
)

// Job-level failure sentinels. Components wrap these with fmt.Errorf("%w")
// and callers classify with errors.Is; results carry the classification as a
// ProcessingError so it survives JSON round-trips across the worker boundary.
var (
	// ErrUnreadableDocument marks a document too corrupt or locked to open.
	ErrUnreadableDocument = errors.New("document cannot be read")
	// ErrEmptyDocument marks a document that rasterized to zero pages.
	ErrEmptyDocument = errors.New("document has no pages")
	// ErrAllEnginesFailed marks a job where no page produced text on any engine.
	ErrAllEnginesFailed = errors.New("all recognition engines failed")
	// ErrJobTimeout marks a job killed after exceeding its wall-clock budget.
	ErrJobTimeout = errors.New("job timed out")
	// ErrJobCanceled marks a caller-initiated cancellation.
	ErrJobCanceled = errors.New("job canceled")
)

// ErrorKind is the closed set of job-level failure classifications.
type ErrorKind string

const (
	ErrorKindUnreadableDocument ErrorKind = "unreadable_document"
	ErrorKindEmptyDocument      ErrorKind = "empty_document"
	ErrorKindAllEnginesFailed   ErrorKind = "all_engines_failed"
	ErrorKindTimeout            ErrorKind = "timeout"
	ErrorKindCanceled           ErrorKind = "canceled"
	ErrorKindWorkerFailure      ErrorKind = "worker_failure"
)

// ProcessingError is the JSON-safe failure record embedded in a failed
// RecognitionResult.
type ProcessingError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ProcessingError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// NewProcessingError classifies err into a ProcessingError. Returns nil for a
// nil error.
func NewProcessingError(err error) *ProcessingError {
	if err == nil {
		return nil
	}
	return &ProcessingError{Kind: KindOf(err), Message: err.Error()}
}

// KindOf maps an error chain onto its ErrorKind. Unclassified errors are
// reported as worker failures, the catch-all for infrastructure breakage
// inside a job.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnreadableDocument):
		return ErrorKindUnreadableDocument
	case errors.Is(err, ErrEmptyDocument):
		return ErrorKindEmptyDocument
	case errors.Is(err, ErrAllEnginesFailed):
		return ErrorKindAllEnginesFailed
	case errors.Is(err, ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, ErrJobCanceled), errors.Is(err, context.Canceled):
		return ErrorKindCanceled
	default:
		return ErrorKindWorkerFailure
	}
}

// FailureResult builds the failed result record for a job-level error.
func FailureResult(err error) RecognitionResult {
	return RecognitionResult{Error: NewProcessingError(err)}
}
