// Package preprocess turns raw upload bytes into OCR-ready images: bounded
// resize, sharpening, contrast normalization, grayscale, and a fixed-quality
// JPEG re-encode that favors text edge clarity over color fidelity. The
// transformation is deterministic and stateless.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	// Registers the WebP decoder; imaging covers JPEG/PNG/GIF/TIFF/BMP itself.
	_ "golang.org/x/image/webp"
)

// Defaults sized for a 300 DPI A4 scan, the sweet spot for Tesseract.
const (
	DefaultMaxWidth        = 2480
	DefaultMaxHeight       = 3508
	DefaultSharpenSigma    = 1.0
	DefaultContrastPercent = 15
	DefaultQuality         = 90
)

// Options tunes the preprocessing chain. The zero value means defaults; a
// negative SharpenSigma or ContrastPercent disables that step entirely.
type Options struct {
	MaxWidth  int
	MaxHeight int
	// AllowUpscale permits scaling small sources up to the target bounds.
	// Off by default: upscaling invents pixels and rarely helps recognition.
	AllowUpscale    bool
	SharpenSigma    float64
	ContrastPercent float64
	Quality         int
}

func (o Options) withDefaults() Options {
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultMaxHeight
	}
	if o.SharpenSigma == 0 {
		o.SharpenSigma = DefaultSharpenSigma
	}
	if o.ContrastPercent == 0 {
		o.ContrastPercent = DefaultContrastPercent
	}
	if o.Quality <= 0 {
		o.Quality = DefaultQuality
	}
	return o
}

// DecodeError reports input bytes that could not be decoded as an image.
// Page-level and recoverable: the coordinator marks the page failed and
// moves on to siblings.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode image: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Preprocessor applies the configured chain. Safe for concurrent use.
type Preprocessor struct {
	opts Options
}

// New builds a Preprocessor with opts, filling defaults for zero fields.
func New(opts Options) *Preprocessor {
	return &Preprocessor{opts: opts.withDefaults()}
}

// Process decodes raw, runs the chain, and re-encodes as JPEG. Undecodable
// input fails with a *DecodeError.
func (p *Preprocessor) Process(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	img = p.scale(img)
	if p.opts.SharpenSigma > 0 {
		img = imaging.Sharpen(img, p.opts.SharpenSigma)
	}
	if p.opts.ContrastPercent > 0 {
		img = imaging.AdjustContrast(img, p.opts.ContrastPercent)
	}
	img = imaging.Grayscale(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.opts.Quality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Preprocessor) scale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= p.opts.MaxWidth && h <= p.opts.MaxHeight {
		if !p.opts.AllowUpscale {
			return img
		}
		scale := math.Min(float64(p.opts.MaxWidth)/float64(w), float64(p.opts.MaxHeight)/float64(h))
		if scale <= 1 {
			return img
		}
		return imaging.Resize(img, int(float64(w)*scale+0.5), 0, imaging.Lanczos)
	}
	return imaging.Fit(img, p.opts.MaxWidth, p.opts.MaxHeight, imaging.Lanczos)
}
