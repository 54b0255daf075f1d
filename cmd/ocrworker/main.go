// ocrworker is the isolated execution unit of the recognition pipeline.
// The supervisor sends one job spec as JSON on stdin and reads
// newline-delimited progress/result/error events from stdout; logs go to
// stderr. The process exits non-zero only for protocol or setup
// failures. Recognition failures are ordinary result events, and a
// supervisor-initiated kill (timeout, cancellation) needs no cooperation
// from this side.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/wudi/ocrkit/engine"
	"github.com/wudi/ocrkit/engine/llmvision"
	"github.com/wudi/ocrkit/engine/tesseract"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/pool"
	"github.com/wudi/ocrkit/preprocess"
	"github.com/wudi/ocrkit/rasterize"
	"github.com/wudi/ocrkit/recognize"
)

// config is read from the environment. The job spec carries everything
// request-scoped; the environment carries deployment-scoped settings
// such as which engines exist and where their credentials live.
type config struct {
	// Engines lists the engine identifiers to construct. Vision LLM
	// providers (openai, ollama, mistral, anthropic) share the OCR_LLM_*
	// settings below.
	Engines  []string `env:"OCR_ENGINES" envSeparator:"," envDefault:"tesseract"`
	Density  int      `env:"OCR_DENSITY" envDefault:"200"`
	WorkDir  string   `env:"OCR_WORK_DIR"`
	LogLevel string   `env:"OCR_LOG_LEVEL" envDefault:"info"`

	LLMModel       string  `env:"OCR_LLM_MODEL"`
	LLMAPIKey      string  `env:"OCR_LLM_API_KEY"`
	LLMBaseURL     string  `env:"OCR_LLM_BASE_URL"`
	LLMServerURL   string  `env:"OCR_LLM_SERVER_URL"`
	LLMPrompt      string  `env:"OCR_LLM_PROMPT"`
	LLMMaxTokens   int     `env:"OCR_LLM_MAX_TOKENS"`
	LLMTemperature float64 `env:"OCR_LLM_TEMPERATURE"`
}

func main() {
	specPath := flag.String("spec", "", "path to a job spec JSON file (default: read stdin)")
	flag.Parse()

	writer := pool.NewEventWriter(os.Stdout)
	if err := run(*specPath, writer); err != nil {
		writer.Error(err)
		os.Exit(1)
	}
}

func run(specPath string, writer *pool.EventWriter) error {
	// A .env next to the binary is a convenience for local runs; absence
	// is not an error.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	spec, err := readSpec(specPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel, spec.JobID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := buildRegistry(cfg, log)
	if err != nil {
		return err
	}

	raster := rasterize.New(rasterize.Config{
		Density: cfg.Density,
		WorkDir: cfg.WorkDir,
		Logger:  log,
	})
	coord := recognize.New(recognize.Config{
		Registry: registry,
		OpenDocument: func(ctx context.Context, pdf []byte) (recognize.PageSource, error) {
			doc, err := raster.Open(ctx, pdf)
			if err != nil {
				return nil, err
			}
			return doc, nil
		},
		Preprocess: preprocess.New(preprocess.Options{}),
		DPI:        cfg.Density,
		Progress: func(completed, total int) {
			writer.Progress(completed, total, "recognizing pages")
		},
		Logger: log,
	})

	log.Info("job started",
		observability.String("file", spec.File.Name),
		observability.Int64("bytes", spec.File.Size),
		observability.String("engines", strings.Join(registry.Names(), ",")))

	res := coord.Recognize(ctx, spec.File, spec.Options)
	writer.Result(res)

	if res.Failed() {
		log.Warn("job failed", observability.String("kind", string(res.Error.Kind)))
	} else {
		log.Info("job finished",
			observability.Int("pages", res.PagesProcessed),
			observability.Float64("confidence", res.Confidence))
	}
	return nil
}

func readSpec(path string) (pool.JobSpec, error) {
	var in io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return pool.JobSpec{}, fmt.Errorf("open spec: %w", err)
		}
		defer f.Close()
		in = f
	}
	var spec pool.JobSpec
	if err := json.NewDecoder(in).Decode(&spec); err != nil {
		return pool.JobSpec{}, fmt.Errorf("decode job spec: %w", err)
	}
	if spec.File.Data == nil && spec.File.Path == "" {
		return pool.JobSpec{}, errors.New("job spec carries no file payload")
	}
	return spec, nil
}

func newLogger(level, jobID string) observability.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zl := zerolog.New(os.Stderr).Level(lvl).With().
		Timestamp().
		Str("job", jobID).
		Logger()
	return observability.NewZerologLogger(zl)
}

// buildRegistry constructs the engines named in cfg.Engines. Unknown
// identifiers are skipped with a warning so one typo does not take the
// worker down; no engines at all is fatal.
func buildRegistry(cfg config, log observability.Logger) (*engine.Registry, error) {
	registry := engine.NewRegistry()
	for _, name := range cfg.Engines {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
		case tesseract.Name:
			registry.Register(tesseract.New())
		case llmvision.ProviderOpenAI, llmvision.ProviderOllama,
			llmvision.ProviderMistral, llmvision.ProviderAnthropic:
			eng, err := llmvision.New(llmvision.Config{
				Provider:    name,
				Model:       cfg.LLMModel,
				APIKey:      cfg.LLMAPIKey,
				BaseURL:     cfg.LLMBaseURL,
				ServerURL:   cfg.LLMServerURL,
				Prompt:      cfg.LLMPrompt,
				MaxTokens:   cfg.LLMMaxTokens,
				Temperature: cfg.LLMTemperature,
			})
			if err != nil {
				return nil, fmt.Errorf("build %s engine: %w", name, err)
			}
			registry.Register(eng)
		default:
			log.Warn("unknown engine identifier skipped", observability.String("engine", name))
		}
	}
	if len(registry.Names()) == 0 {
		return nil, errors.New("no recognition engines configured")
	}
	return registry, nil
}
