// Package engine defines abstraction layers for plugging OCR engines (for
// example, Tesseract or cloud vision services) into the processing pipeline.
// The interfaces are intentionally small and transport-agnostic so engines can
// be backed by native libraries, local binaries, or remote APIs without
// leaking provider-specific concerns into callers.
package engine
