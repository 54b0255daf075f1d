package submission

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Fingerprint is the content-addressed cache key for a (file, options) pair:
// the hex SHA-256 of the payload followed by a canonical rendering of the
// normalized options. Identical content with identical effective options
// always produces an identical fingerprint.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// fingerprintVersion guards the canonical option encoding; bump it when the
// encoding changes so stale cache entries cannot be misattributed.
const fingerprintVersion = "v1"

// ComputeFingerprint digests the file content and every option that affects
// recognition output. BypassCache is deliberately excluded: a bypass request
// recomputes the same key, it does not address a different one.
func ComputeFingerprint(content []byte, opts Options) Fingerprint {
	opts = opts.Normalized()
	h := sha256.New()
	h.Write(content)
	io.WriteString(h, "\x00"+fingerprintVersion)
	io.WriteString(h, "\x00engines="+strings.Join(opts.PreferredEngines, ","))
	io.WriteString(h, "\x00language="+opts.Language)
	fmt.Fprintf(h, "\x00maxpages=%d", opts.MaxPages)
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
