package pool

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	"github.com/wudi/ocrkit/submission"
)

// JobSpec is the JSON document a worker binary reads from stdin. The file
// payload travels inline (base64 under encoding/json), so worker and
// supervisor need no shared filesystem.
type JobSpec struct {
	JobID   string             `json:"jobId"`
	File    submission.File    `json:"file"`
	Options submission.Options `json:"options"`
}

// EventType discriminates the newline-delimited JSON events a worker emits
// on stdout.
type EventType string

const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventError    EventType = "error"
)

// Progress reports page-level completion while a job runs.
type Progress struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Message   string  `json:"message,omitempty"`
}

// Event is one line of worker output. Exactly one of Progress, Result or
// Error is set, matching Type. A worker emits any number of progress events
// followed by exactly one result or error event.
type Event struct {
	Type     EventType                     `json:"type"`
	Progress *Progress                     `json:"progress,omitempty"`
	Result   *submission.RecognitionResult `json:"result,omitempty"`
	Error    string                        `json:"error,omitempty"`
}

// EventWriter serializes events onto a stream, one JSON object per line.
// Safe for concurrent use; every event is flushed immediately so the
// supervisor sees progress in real time.
type EventWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	w   *bufio.Writer
}

// NewEventWriter wraps w, typically os.Stdout inside a worker binary.
func NewEventWriter(w io.Writer) *EventWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &EventWriter{enc: enc, w: buf}
}

func (e *EventWriter) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.enc.Encode(ev)
	_ = e.w.Flush()
}

// Progress emits a progress event. Percent is derived from the counts.
func (e *EventWriter) Progress(completed, total int, message string) {
	percent := 0.0
	if total > 0 {
		percent = float64(completed) / float64(total) * 100.0
		if percent > 100.0 {
			percent = 100.0
		}
	}
	e.emit(Event{Type: EventProgress, Progress: &Progress{
		Completed: completed,
		Total:     total,
		Percent:   percent,
		Message:   message,
	}})
}

// Result emits the terminal result event.
func (e *EventWriter) Result(res submission.RecognitionResult) {
	e.emit(Event{Type: EventResult, Result: &res})
}

// Error emits a terminal error event for protocol-level failures. Job-level
// failures travel inside a result event instead.
func (e *EventWriter) Error(err error) {
	e.emit(Event{Type: EventError, Error: err.Error()})
}
