package submission

import "strings"

// Defaults applied by Options.Normalized.
const (
	DefaultEngine   = "tesseract"
	DefaultLanguage = "eng"
	DefaultMaxPages = 50
)

// Options configures one processing request. Immutable once a job starts;
// the pipeline normalizes a private copy and never mutates the caller's value.
type Options struct {
	// PreferredEngines lists engine identifiers in fallback priority order.
	PreferredEngines []string `json:"preferredEngines,omitempty"`
	// BypassCache forces recomputation even when a cached result exists.
	// It does not participate in the fingerprint: the recomputed result
	// overwrites the entry for the same key.
	BypassCache bool `json:"bypassCache,omitempty"`
	// Language is the recognition language hint (Tesseract notation, e.g.
	// "eng" or "eng+deu").
	Language string `json:"language,omitempty"`
	// MaxPages caps how many pages of a document are processed. Pages beyond
	// the cap are dropped, not failed.
	MaxPages int `json:"maxPages,omitempty"`
}

// Normalized returns a copy with defaults applied and engine identifiers
// cleaned up. Fingerprinting and all pipeline components operate on the
// normalized form so that equivalent option spellings cache identically.
func (o Options) Normalized() Options {
	out := o
	out.PreferredEngines = normalizeEngines(o.PreferredEngines)
	out.Language = strings.TrimSpace(o.Language)
	if out.Language == "" {
		out.Language = DefaultLanguage
	}
	if out.MaxPages <= 0 {
		out.MaxPages = DefaultMaxPages
	}
	return out
}

func normalizeEngines(names []string) []string {
	cleaned := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		cleaned = append(cleaned, name)
	}
	if len(cleaned) == 0 {
		return []string{DefaultEngine}
	}
	return cleaned
}
