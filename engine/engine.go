package engine

import "context"

// Input encapsulates a single preprocessed page image submitted for OCR.
type Input struct {
	// Image is the encoded, preprocessed image payload (JPEG unless an
	// engine states otherwise).
	Image []byte
	// Language is a recognition language hint in Tesseract notation
	// (e.g. "eng", "eng+deu"). Empty means engine default.
	Language string
	// DPI carries the effective dots-per-inch of the image. Local engines
	// use this for scaling heuristics; zero means unknown.
	DPI int
	// PageIndex links the input back to the zero-based page index where the
	// image originated.
	PageIndex int
	// Metadata passes through engine-specific knobs (e.g. "tessedit_pageseg_mode"
	// for Tesseract) without hard-coding them into the API surface.
	Metadata map[string]string
}

// Result captures OCR output for a single input image. Confidence is
// engine-calibrated in [0,1] and is never renormalized between engines.
type Result struct {
	Text       string
	Confidence float64
}

// Engine is the OCR provider contract: one image in, text and confidence out.
// An error covers engine-level breakage (timeout, service unavailable,
// malformed response); an empty Text with a nil error is a valid outcome that
// the fallback logic treats as a failed attempt.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// AvailabilityChecker is an optional capability: engines whose backing binary
// or service may be absent report it here so resolution can skip them instead
// of failing every page.
type AvailabilityChecker interface {
	Available() bool
}

// AttemptError records a single failed engine attempt for a page. The
// coordinator collects one per fallen-through engine so failures surface as
// structured per-attempt records instead of being swallowed.
type AttemptError struct {
	Engine string
	Err    error
}

func (e *AttemptError) Error() string { return e.Engine + ": " + e.Err.Error() }
func (e *AttemptError) Unwrap() error { return e.Err }
