package submission

import "testing"

func TestComputeFingerprintDeterministic(t *testing.T) {
	content := []byte("scanned homework page")
	opts := Options{PreferredEngines: []string{"tesseract", "openai"}, Language: "eng", MaxPages: 10}

	a := ComputeFingerprint(content, opts)
	b := ComputeFingerprint(content, opts)
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 length 64, got %d", len(a))
	}
}

func TestComputeFingerprintSensitivity(t *testing.T) {
	content := []byte("scanned homework page")
	base := Options{PreferredEngines: []string{"tesseract", "openai"}, Language: "eng", MaxPages: 10}
	ref := ComputeFingerprint(content, base)

	variants := map[string]Options{
		"engine order":  {PreferredEngines: []string{"openai", "tesseract"}, Language: "eng", MaxPages: 10},
		"language":      {PreferredEngines: []string{"tesseract", "openai"}, Language: "deu", MaxPages: 10},
		"max pages":     {PreferredEngines: []string{"tesseract", "openai"}, Language: "eng", MaxPages: 5},
		"engine subset": {PreferredEngines: []string{"tesseract"}, Language: "eng", MaxPages: 10},
	}
	for name, opts := range variants {
		t.Run(name, func(t *testing.T) {
			if got := ComputeFingerprint(content, opts); got == ref {
				t.Fatalf("expected %s variant to change the fingerprint", name)
			}
		})
	}

	if got := ComputeFingerprint([]byte("different content"), base); got == ref {
		t.Fatal("expected content change to change the fingerprint")
	}
}

func TestComputeFingerprintIgnoresBypass(t *testing.T) {
	content := []byte("payload")
	plain := Options{Language: "eng"}
	bypass := Options{Language: "eng", BypassCache: true}
	if ComputeFingerprint(content, plain) != ComputeFingerprint(content, bypass) {
		t.Fatal("bypassCache must not change the fingerprint")
	}
}

func TestComputeFingerprintNormalizesOptions(t *testing.T) {
	content := []byte("payload")
	spelledOut := Options{PreferredEngines: []string{"tesseract"}, Language: "eng", MaxPages: DefaultMaxPages}
	defaulted := Options{}
	if ComputeFingerprint(content, spelledOut) != ComputeFingerprint(content, defaulted) {
		t.Fatal("defaulted options must fingerprint identically to their spelled-out form")
	}

	messy := Options{PreferredEngines: []string{" Tesseract ", "", "tesseract"}, Language: " eng "}
	if ComputeFingerprint(content, messy) != ComputeFingerprint(content, defaulted) {
		t.Fatal("engine name cleanup must not affect the fingerprint")
	}
}
