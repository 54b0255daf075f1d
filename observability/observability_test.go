package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestZerologLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(zerolog.New(&buf))

	log.With(String("component", "pool")).Info("job done",
		Int("pages", 3),
		Int64("bytes", 1024),
		Float64("confidence", 0.87),
		Duration("took", 1500*time.Millisecond),
		Error("err", errors.New("boom")),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["component"] != "pool" {
		t.Fatalf("expected component field, got %v", entry["component"])
	}
	if entry["pages"] != float64(3) {
		t.Fatalf("expected pages=3, got %v", entry["pages"])
	}
	if entry["confidence"] != 0.87 {
		t.Fatalf("expected confidence=0.87, got %v", entry["confidence"])
	}
	if entry["err"] != "boom" {
		t.Fatalf("expected err=boom, got %v", entry["err"])
	}
	if entry["message"] != "job done" {
		t.Fatalf("expected message, got %v", entry["message"])
	}
}

func TestPrometheusMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.Count(MetricCacheHits, 1)
	m.Count(MetricCacheHits, 1)
	m.Count(MetricEngineFailures, 1, String("engine", "tesseract"))
	m.Observe(MetricJobDuration, 1.5)
	m.Count("ocr.not.registered", 1)

	if got := testutil.ToFloat64(m.counters[MetricCacheHits]); got != 2 {
		t.Fatalf("cache hits = %v, want 2", got)
	}
	failures := m.labeled[MetricEngineFailures].WithLabelValues("tesseract")
	if got := testutil.ToFloat64(failures); got != 1 {
		t.Fatalf("engine failures = %v, want 1", got)
	}
}
