package submission

import (
	"context"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"unreadable", ErrUnreadableDocument, ErrorKindUnreadableDocument},
		{"wrapped unreadable", fmt.Errorf("open pdf: %w", ErrUnreadableDocument), ErrorKindUnreadableDocument},
		{"empty", ErrEmptyDocument, ErrorKindEmptyDocument},
		{"all engines", ErrAllEnginesFailed, ErrorKindAllEnginesFailed},
		{"timeout", ErrJobTimeout, ErrorKindTimeout},
		{"deadline", context.DeadlineExceeded, ErrorKindTimeout},
		{"canceled", ErrJobCanceled, ErrorKindCanceled},
		{"context canceled", context.Canceled, ErrorKindCanceled},
		{"unknown", fmt.Errorf("spawn worker: exit 1"), ErrorKindWorkerFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFailureResult(t *testing.T) {
	res := FailureResult(fmt.Errorf("rasterize: %w", ErrEmptyDocument))
	if !res.Failed() {
		t.Fatal("expected a failed result")
	}
	if res.Error.Kind != ErrorKindEmptyDocument {
		t.Fatalf("kind = %s, want %s", res.Error.Kind, ErrorKindEmptyDocument)
	}
	if res.Confidence != 0 || res.Text != "" {
		t.Fatal("failure record must not carry text or confidence")
	}
}

func TestNewProcessingErrorNil(t *testing.T) {
	if NewProcessingError(nil) != nil {
		t.Fatal("nil error must map to nil record")
	}
}

func TestOptionsNormalized(t *testing.T) {
	got := Options{}.Normalized()
	if len(got.PreferredEngines) != 1 || got.PreferredEngines[0] != DefaultEngine {
		t.Fatalf("engines = %v, want [%s]", got.PreferredEngines, DefaultEngine)
	}
	if got.Language != DefaultLanguage {
		t.Fatalf("language = %s, want %s", got.Language, DefaultLanguage)
	}
	if got.MaxPages != DefaultMaxPages {
		t.Fatalf("maxPages = %d, want %d", got.MaxPages, DefaultMaxPages)
	}

	orig := Options{PreferredEngines: []string{"OpenAI", "openai", " tesseract "}, MaxPages: -3}
	got = orig.Normalized()
	if len(got.PreferredEngines) != 2 || got.PreferredEngines[0] != "openai" || got.PreferredEngines[1] != "tesseract" {
		t.Fatalf("engines = %v, want [openai tesseract]", got.PreferredEngines)
	}
	if got.MaxPages != DefaultMaxPages {
		t.Fatalf("negative maxPages should default, got %d", got.MaxPages)
	}
	if orig.PreferredEngines[0] != "OpenAI" {
		t.Fatal("Normalized must not mutate the caller's options")
	}
}
