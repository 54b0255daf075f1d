package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"
)

func pngFixture(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func decodeOutput(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("output format = %s, want jpeg", format)
	}
	return img
}

func TestProcessRejectsUndecodableInput(t *testing.T) {
	p := New(Options{})
	_, err := p.Process([]byte("definitely not an image"))
	if err == nil {
		t.Fatal("expected decode error")
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
}

func TestProcessDeterministic(t *testing.T) {
	p := New(Options{})
	in := pngFixture(t, 120, 80, color.White)

	a, err := p.Process(in)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	b, err := p.Process(in)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("identical input must produce identical output")
	}
}

func TestProcessFitsWithinBounds(t *testing.T) {
	p := New(Options{MaxWidth: 200, MaxHeight: 200})
	out, err := p.Process(pngFixture(t, 400, 200, color.RGBA{R: 200, G: 40, B: 40, A: 255}))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	img := decodeOutput(t, out)
	if got := img.Bounds(); got.Dx() != 200 || got.Dy() != 100 {
		t.Fatalf("bounds = %dx%d, want 200x100 (aspect preserved)", got.Dx(), got.Dy())
	}

	// Grayscale output: center pixel channels should be near-equal.
	r, g, b, _ := img.At(100, 50).RGBA()
	if delta(r, g) > 768 || delta(g, b) > 768 {
		t.Fatalf("expected grayscale pixel, got r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}
}

func TestProcessNeverUpscalesByDefault(t *testing.T) {
	p := New(Options{MaxWidth: 200, MaxHeight: 200})
	out, err := p.Process(pngFixture(t, 50, 40, color.White))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := decodeOutput(t, out).Bounds(); got.Dx() != 50 || got.Dy() != 40 {
		t.Fatalf("bounds = %dx%d, want original 50x40", got.Dx(), got.Dy())
	}
}

func TestProcessUpscaleWhenAllowed(t *testing.T) {
	p := New(Options{MaxWidth: 200, MaxHeight: 200, AllowUpscale: true})
	out, err := p.Process(pngFixture(t, 50, 40, color.White))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := decodeOutput(t, out).Bounds(); got.Dx() != 200 || got.Dy() != 160 {
		t.Fatalf("bounds = %dx%d, want 200x160", got.Dx(), got.Dy())
	}
}

func delta(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
