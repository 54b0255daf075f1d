package llmvision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/wudi/ocrkit/engine"
)

// fakeModel records the request it receives and plays back a canned
// completion.
type fakeModel struct {
	response  string
	err       error
	noChoices bool

	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.noChoices {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.response, f.err
}

func TestRecognizeNormalizesCompletion(t *testing.T) {
	fake := &fakeModel{response: "# Page\n\n<think>hm</think>The **answer** is 42"}
	eng := newWithModel(Config{Provider: ProviderOpenAI}, fake)

	res, err := eng.Recognize(context.Background(), engine.Input{Image: []byte("jpeg-bytes")})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if want := "Page\nThe answer is 42"; res.Text != want {
		t.Fatalf("text = %q, want %q", res.Text, want)
	}
	if res.Confidence != DefaultConfidence {
		t.Fatalf("confidence = %v, want %v", res.Confidence, DefaultConfidence)
	}
}

func TestRecognizeSendsImageAndPrompt(t *testing.T) {
	fake := &fakeModel{response: "text"}
	eng := newWithModel(Config{Provider: ProviderOpenAI}, fake)

	if _, err := eng.Recognize(context.Background(), engine.Input{Image: []byte{0xff, 0xd8}}); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(fake.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(fake.messages))
	}
	msg := fake.messages[0]
	if msg.Role != llms.ChatMessageTypeHuman {
		t.Fatalf("role = %q, want human", msg.Role)
	}
	if len(msg.Parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(msg.Parts))
	}
	img, ok := msg.Parts[0].(llms.ImageURLContent)
	if !ok {
		t.Fatalf("part 0 is %T, want ImageURLContent", msg.Parts[0])
	}
	if !strings.HasPrefix(img.URL, "data:image/jpeg;base64,") {
		t.Fatalf("image url %q lacks data prefix", img.URL)
	}
	txt, ok := msg.Parts[1].(llms.TextContent)
	if !ok {
		t.Fatalf("part 1 is %T, want TextContent", msg.Parts[1])
	}
	if txt.Text != DefaultPrompt {
		t.Fatalf("prompt = %q, want default", txt.Text)
	}
}

func TestRecognizeBinaryPartProviders(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff}
	for _, provider := range []string{ProviderOllama, ProviderAnthropic} {
		fake := &fakeModel{response: "text"}
		eng := newWithModel(Config{Provider: provider}, fake)
		if _, err := eng.Recognize(context.Background(), engine.Input{Image: payload}); err != nil {
			t.Fatalf("%s: Recognize: %v", provider, err)
		}
		bin, ok := fake.messages[0].Parts[0].(llms.BinaryContent)
		if !ok {
			t.Fatalf("%s: part 0 is %T, want BinaryContent", provider, fake.messages[0].Parts[0])
		}
		if bin.MIMEType != "image/jpeg" {
			t.Fatalf("%s: mime = %q", provider, bin.MIMEType)
		}
		if string(bin.Data) != string(payload) {
			t.Fatalf("%s: payload mismatch", provider)
		}
	}
}

func TestRecognizeAppliesCallOptions(t *testing.T) {
	fake := &fakeModel{response: "text"}
	eng := newWithModel(Config{Provider: ProviderOpenAI, MaxTokens: 512, Temperature: 0.2}, fake)

	if _, err := eng.Recognize(context.Background(), engine.Input{Image: []byte("img")}); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if fake.opts.MaxTokens != 512 {
		t.Fatalf("max tokens = %d, want 512", fake.opts.MaxTokens)
	}
	if fake.opts.Temperature != 0.2 {
		t.Fatalf("temperature = %v, want 0.2", fake.opts.Temperature)
	}
}

func TestRecognizeModelError(t *testing.T) {
	fake := &fakeModel{err: errors.New("rate limited")}
	eng := newWithModel(Config{Provider: ProviderOpenAI}, fake)

	if _, err := eng.Recognize(context.Background(), engine.Input{Image: []byte("img")}); err == nil {
		t.Fatal("expected error from failing model")
	}
}

func TestRecognizeNoChoices(t *testing.T) {
	fake := &fakeModel{noChoices: true}
	eng := newWithModel(Config{Provider: ProviderOpenAI}, fake)

	if _, err := eng.Recognize(context.Background(), engine.Input{Image: []byte("img")}); err == nil {
		t.Fatal("expected error for empty completion")
	}
}

func TestNewUnsupportedProvider(t *testing.T) {
	if _, err := New(Config{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestConfigDefaults(t *testing.T) {
	eng := newWithModel(Config{Provider: ProviderOllama}, &fakeModel{})
	if eng.Name() != "ollama" {
		t.Fatalf("name = %q, want ollama", eng.Name())
	}
	if eng.confidence != DefaultConfidence {
		t.Fatalf("confidence = %v, want default", eng.confidence)
	}
	if eng.prompt != DefaultPrompt {
		t.Fatalf("prompt = %q, want default", eng.prompt)
	}

	eng = newWithModel(Config{Provider: ProviderOpenAI, Name: "fallback-a", Confidence: 0.5, Prompt: "read it"}, &fakeModel{})
	if eng.Name() != "fallback-a" {
		t.Fatalf("name = %q, want fallback-a", eng.Name())
	}
	if eng.confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5", eng.confidence)
	}
	if eng.prompt != "read it" {
		t.Fatalf("prompt = %q, want override", eng.prompt)
	}
}
