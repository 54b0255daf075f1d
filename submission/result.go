package submission

import "time"

// EngineMixed is reported as the job-level engine when successful pages came
// from more than one engine.
const EngineMixed = "mixed"

// PageResult captures recognition output for a single page.
type PageResult struct {
	// Index is the zero-based page position within the source document.
	Index int `json:"index"`
	// Text is the recognized text for the page, empty when the page failed.
	Text string `json:"text"`
	// Confidence is the engine-reported confidence in [0,1]. Failed pages
	// carry 0.
	Confidence float64 `json:"confidence"`
	// Engine names the engine that produced the text, empty when failed.
	Engine string `json:"engine,omitempty"`
	// Failed marks a page that produced no usable text on any engine.
	Failed bool `json:"failed,omitempty"`
	// Error describes why the page failed, for diagnostics only.
	Error string `json:"error,omitempty"`
	// Duration is the wall-clock time spent on the page.
	Duration time.Duration `json:"duration,omitempty"`
}

// RecognitionResult is the pipeline's output record for one file.
type RecognitionResult struct {
	// Text is the page texts joined in page order, one page per line group.
	Text string `json:"text"`
	// Confidence is the arithmetic mean of per-page confidences with failed
	// pages counted as 0, so partial failure lowers the score instead of
	// disappearing from it. Always in [0,1].
	Confidence float64 `json:"confidence"`
	// Engine is the engine that produced the successful pages, or
	// EngineMixed when several contributed. Empty on total failure.
	Engine string `json:"engine,omitempty"`
	// Pages holds the ordered per-page outcomes.
	Pages []PageResult `json:"pages,omitempty"`
	// Duration is the total processing time for the job.
	Duration time.Duration `json:"duration"`
	// SourceBytes is the size of the source payload.
	SourceBytes int64 `json:"sourceBytes"`
	// PagesProcessed counts pages actually processed (after the MaxPages cap).
	PagesProcessed int `json:"pagesProcessed"`
	// FromCache reports whether the result was served from the cache rather
	// than computed for this request.
	FromCache bool `json:"fromCache,omitempty"`
	// Error is set when the job failed as a whole. A result never carries
	// both useful text and a job-level error.
	Error *ProcessingError `json:"error,omitempty"`
}

// Failed reports whether the job reached a failed terminal state.
func (r RecognitionResult) Failed() bool { return r.Error != nil }

// JobStatus models the lifecycle of a job inside the worker pool.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)
