// recognize runs files through the OCR pipeline from the command line:
// one file prints its result, several files run as an order-preserving
// batch. Results print as readable text by default or as JSON with -json.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/wudi/ocrkit/engine"
	"github.com/wudi/ocrkit/engine/llmvision"
	"github.com/wudi/ocrkit/engine/tesseract"
	"github.com/wudi/ocrkit/gateway"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/pool"
	"github.com/wudi/ocrkit/rasterize"
	"github.com/wudi/ocrkit/submission"
)

// llmConfig carries vision provider settings from the environment; the same
// variables configure cmd/ocrworker, so both runners see one configuration.
type llmConfig struct {
	Model       string  `env:"OCR_LLM_MODEL"`
	APIKey      string  `env:"OCR_LLM_API_KEY"`
	BaseURL     string  `env:"OCR_LLM_BASE_URL"`
	ServerURL   string  `env:"OCR_LLM_SERVER_URL"`
	Prompt      string  `env:"OCR_LLM_PROMPT"`
	MaxTokens   int     `env:"OCR_LLM_MAX_TOKENS"`
	Temperature float64 `env:"OCR_LLM_TEMPERATURE"`
}

type options struct {
	paths     []string
	engines   []string
	language  string
	maxPages  int
	bypass    bool
	density   int
	workers   int
	timeout   time.Duration
	workerBin string
	jsonOut   bool
	verbose   bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "recognize: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "recognize: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: recognize [flags] <file> [file...]\n")
		flag.PrintDefaults()
	}
	engines := flag.String("engines", tesseract.Name, "Comma-separated engine priority order (tesseract, openai, ollama, mistral, anthropic)")
	language := flag.String("lang", "", "Recognition language hint, Tesseract notation (e.g. eng or eng+deu)")
	maxPages := flag.Int("max-pages", 0, "Maximum document pages to process (0 = default cap)")
	bypass := flag.Bool("bypass", false, "Skip the result cache and recompute")
	density := flag.Int("density", rasterize.DefaultDensity, "PDF render resolution in DPI")
	workers := flag.Int("workers", 0, "Worker pool size (0 = number of CPUs)")
	serial := flag.Bool("serial", false, "Process files one at a time (same as -workers 1)")
	timeout := flag.Duration("timeout", pool.DefaultJobTimeout, "Hard wall-clock budget per file")
	workerBin := flag.String("worker-bin", "", "Path to an ocrworker binary; runs each job in an isolated process")
	jsonOut := flag.Bool("json", false, "Print results as JSON")
	verbose := flag.Bool("v", false, "Verbose logging to stderr")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return options{}, fmt.Errorf("missing input files")
	}
	opts.paths = flag.Args()
	opts.engines = strings.Split(*engines, ",")
	opts.language = *language
	opts.maxPages = *maxPages
	opts.bypass = *bypass
	opts.density = *density
	opts.workers = *workers
	if *serial {
		opts.workers = 1
	}
	opts.timeout = *timeout
	opts.workerBin = *workerBin
	opts.jsonOut = *jsonOut
	opts.verbose = *verbose
	return opts, nil
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	var llm llmConfig
	if err := env.Parse(&llm); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	engines, err := buildEngines(opts.engines, llm)
	if err != nil {
		return err
	}

	g, err := gateway.New(gateway.Config{
		Engines:   engines,
		Rasterize: rasterize.Config{Density: opts.density},
		Pool: pool.Config{
			Workers:    opts.workers,
			JobTimeout: opts.timeout,
		},
		WorkerBin: opts.workerBin,
		Logger:    newLogger(opts.verbose),
	})
	if err != nil {
		return err
	}
	defer g.Close()

	files := make([]submission.File, 0, len(opts.paths))
	for _, path := range opts.paths {
		file, err := submission.NewFileFromPath(path)
		if err != nil {
			return err
		}
		files = append(files, file)
	}

	procOpts := submission.Options{
		PreferredEngines: opts.engines,
		BypassCache:      opts.bypass,
		Language:         opts.language,
		MaxPages:         opts.maxPages,
	}

	if len(files) == 1 {
		res, err := g.ProcessSingle(ctx, files[0], procOpts)
		if err != nil {
			return err
		}
		if err := printSingle(files[0], res, opts.jsonOut); err != nil {
			return err
		}
		if res.Failed() {
			return fmt.Errorf("%s: %s", files[0].Name, res.Error)
		}
		return nil
	}

	items := g.ProcessBatch(ctx, files, procOpts)
	if err := printBatch(items, opts.jsonOut); err != nil {
		return err
	}
	failed := 0
	for _, item := range items {
		if item.Err != nil || item.Result.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(items))
	}
	return nil
}

// buildEngines maps identifiers to engine instances. Vision providers take
// their settings from the OCR_LLM_* environment; an unset key falls back to
// the provider's conventional variable (OPENAI_API_KEY and friends).
func buildEngines(names []string, llm llmConfig) ([]engine.Engine, error) {
	var engines []engine.Engine
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
		case tesseract.Name:
			engines = append(engines, tesseract.New())
		case llmvision.ProviderOpenAI, llmvision.ProviderOllama,
			llmvision.ProviderMistral, llmvision.ProviderAnthropic:
			eng, err := llmvision.New(llmvision.Config{
				Provider:    name,
				Model:       llm.Model,
				APIKey:      llm.APIKey,
				BaseURL:     llm.BaseURL,
				ServerURL:   llm.ServerURL,
				Prompt:      llm.Prompt,
				MaxTokens:   llm.MaxTokens,
				Temperature: llm.Temperature,
			})
			if err != nil {
				return nil, fmt.Errorf("engine %s: %w", name, err)
			}
			engines = append(engines, eng)
		default:
			return nil, fmt.Errorf("unknown engine %q", name)
		}
	}
	if len(engines) == 0 {
		return nil, fmt.Errorf("no engines selected")
	}
	return engines, nil
}

func newLogger(verbose bool) observability.Logger {
	if !verbose {
		return observability.NopLogger{}
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
	return observability.NewZerologLogger(zl)
}

func printSingle(file submission.File, res submission.RecognitionResult, asJSON bool) error {
	if asJSON {
		return emitJSON(res)
	}
	printResult(file, res)
	return nil
}

func printBatch(items []gateway.BatchItem, asJSON bool) error {
	if asJSON {
		return emitJSON(items)
	}
	for i, item := range items {
		if i > 0 {
			fmt.Println()
		}
		if item.Err != nil {
			fmt.Printf("== %s\nREJECTED: %v\n", item.File.Name, item.Err)
			continue
		}
		printResult(item.File, item.Result)
	}
	return nil
}

func emitJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printResult(file submission.File, res submission.RecognitionResult) {
	fmt.Printf("== %s\n", file.Name)
	if res.Failed() {
		fmt.Printf("FAILED: %s\n", res.Error)
		return
	}
	cached := ""
	if res.FromCache {
		cached = " (cached)"
	}
	fmt.Printf("engine=%s confidence=%.2f pages=%d duration=%s%s\n",
		res.Engine, res.Confidence, res.PagesProcessed, res.Duration.Round(time.Millisecond), cached)
	fmt.Println(res.Text)
}
