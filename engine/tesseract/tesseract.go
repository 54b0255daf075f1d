// Package tesseract provides the local primary OCR engine backed by the
// gosseract client.
package tesseract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/ocrkit/engine"
)

// Name is the identifier the engine registers under.
const Name = "tesseract"

// Engine implements engine.Engine using gosseract. A fresh client is created
// per recognition so concurrent calls never share native state.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed OCR engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return Name }

// Available reports whether a tesseract installation is reachable. The binary
// lookup is a proxy for the native library and trained data being installed.
func (e *Engine) Available() bool {
	_, err := exec.LookPath("tesseract")
	return err == nil
}

// Recognize performs OCR on a single image input. The native call is blocking
// and does not observe ctx once started; run it inside an isolated worker
// when hangs must be containable.
func (e *Engine) Recognize(ctx context.Context, in engine.Input) (engine.Result, error) {
	select {
	case <-ctx.Done():
		return engine.Result{}, ctx.Err()
	default:
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return engine.Result{}, fmt.Errorf("set image: %w", err)
	}
	if in.Language != "" {
		if err := c.SetLanguage(strings.Split(in.Language, "+")...); err != nil {
			return engine.Result{}, fmt.Errorf("set language: %w", err)
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return engine.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return engine.Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return engine.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	return engine.Result{
		Text:       strings.TrimSpace(text),
		Confidence: wordConfidence(c),
	}, nil
}

// wordConfidence averages the per-word confidences Tesseract reports,
// normalized from percent to [0,1]. No words means zero confidence.
func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
