package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestRegistryResolveOrder(t *testing.T) {
	primary := &Mock{EngineName: "primary"}
	fallback := &Mock{EngineName: "fallback"}
	r := NewRegistry(primary, fallback)

	engines, err := r.Resolve([]string{"fallback", "primary"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	got := []string{engines[0].Name(), engines[1].Name()}
	if !reflect.DeepEqual(got, []string{"fallback", "primary"}) {
		t.Fatalf("resolution order = %v, want caller priority order", got)
	}
}

func TestRegistryResolveSkipsUnknownAndUnavailable(t *testing.T) {
	r := NewRegistry(
		&Mock{EngineName: "offline", Unavailable: true},
		&Mock{EngineName: "online"},
	)

	engines, err := r.Resolve([]string{"nonexistent", "offline", "online"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(engines) != 1 || engines[0].Name() != "online" {
		t.Fatalf("resolved = %v, want just the online engine", engines)
	}
}

func TestRegistryResolveNone(t *testing.T) {
	r := NewRegistry(&Mock{EngineName: "offline", Unavailable: true})
	if _, err := r.Resolve([]string{"offline", "missing"}); !errors.Is(err, ErrNoEngines) {
		t.Fatalf("error = %v, want ErrNoEngines", err)
	}
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(&Mock{EngineName: "zeta"}, &Mock{EngineName: "alpha"})
	if got := r.Names(); !reflect.DeepEqual(got, []string{"alpha", "zeta"}) {
		t.Fatalf("Names() = %v, want sorted", got)
	}
}

func TestMockDelayHonorsContext(t *testing.T) {
	m := &Mock{Delay: 5 * time.Second, Text: "never"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Recognize(ctx, Input{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if m.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", m.Calls())
	}
}

func TestInputOptions(t *testing.T) {
	meta := map[string]string{"tessedit_char_whitelist": "0123456789"}
	in := NewInput([]byte{1, 2, 3}, 4,
		WithLanguage("eng+deu"),
		WithDPI(300),
		WithMetadata(meta),
	)
	if in.PageIndex != 4 || in.Language != "eng+deu" || in.DPI != 300 {
		t.Fatalf("unexpected input: %+v", in)
	}
	meta["tessedit_char_whitelist"] = "mutated"
	if in.Metadata["tessedit_char_whitelist"] != "0123456789" {
		t.Fatalf("metadata was not copied: %+v", in.Metadata)
	}

	WithTesseractPSM(6)(&in)
	if got := in.Metadata["tessedit_pageseg_mode"]; got != "6" {
		t.Fatalf("expected PSM to be set, got %q", got)
	}
	WithTesseractWhitelist("ABC")(&in)
	if got := in.Metadata["tessedit_char_whitelist"]; got != "ABC" {
		t.Fatalf("expected whitelist to be set, got %q", got)
	}
}
