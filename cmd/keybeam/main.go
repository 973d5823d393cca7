// Command keybeam demonstrates dynamic keyterm boosting for real-time
// speech transcription.
//
// With a WAV file argument it runs the boosted-versus-unboosted comparison
// and prints a side-by-side report. Without one it transcribes live
// microphone audio until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keybeam/keybeam/internal/audio"
	"github.com/keybeam/keybeam/internal/compare"
	"github.com/keybeam/keybeam/internal/config"
	"github.com/keybeam/keybeam/internal/health"
	"github.com/keybeam/keybeam/internal/history"
	"github.com/keybeam/keybeam/internal/keyterms"
	"github.com/keybeam/keybeam/internal/observe"
	"github.com/keybeam/keybeam/internal/session"
	llmopenai "github.com/keybeam/keybeam/pkg/llm/openai"
	"github.com/keybeam/keybeam/pkg/stream/assemblyai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (built-in defaults when empty)")
	customerID := flag.String("customer", history.DemoCustomerID, "customer whose conversation history seeds the vocabulary")
	sampleRate := flag.Int("sample-rate", 0, "override the configured audio sample rate in Hz")
	truthPath := flag.String("truth", "", "ground-truth transcript file for WER scoring (comparison mode)")
	termsFlag := flag.String("terms", "", "comma-separated terms to break down in the comparison report")
	noBoost := flag.Bool("no-boost", false, "disable vocabulary boosting (live mode only)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: keybeam [flags] [audio.wav]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "With a WAV file, runs the boosted-vs-unboosted comparison.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Without one, transcribes the default microphone until Ctrl+C.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "keybeam: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	if *sampleRate > 0 {
		cfg.Stream.SampleRate = *sampleRate
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// ── Credentials ───────────────────────────────────────────────────────────
	creds, err := config.CredentialsFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "keybeam: %v\n", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "keybeam",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	var streamOpts []assemblyai.Option
	if cfg.Stream.Endpoint != "" {
		streamOpts = append(streamOpts, assemblyai.WithEndpoint(cfg.Stream.Endpoint))
	}
	if cfg.Stream.SpeechModel != "" {
		streamOpts = append(streamOpts, assemblyai.WithSpeechModel(cfg.Stream.SpeechModel))
	}
	recognizer, err := assemblyai.New(creds.StreamAPIKey, streamOpts...)
	if err != nil {
		slog.Error("failed to create streaming provider", "err", err)
		return 1
	}

	llmTimeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	llmProvider, err := llmopenai.New(creds.LLMAPIKey, cfg.LLM.Model,
		llmopenai.WithBaseURL(cfg.LLM.BaseURL),
		llmopenai.WithTimeout(llmTimeout),
	)
	if err != nil {
		slog.Error("failed to create LLM provider", "err", err)
		return 1
	}

	extractor := keyterms.NewExtractor(llmProvider,
		keyterms.WithMaxTerms(cfg.Boost.MaxKeyterms),
		keyterms.WithTimeout(llmTimeout),
	)

	// ── Conversation history ──────────────────────────────────────────────────
	var store history.Store
	var readyChecks []health.Check
	if cfg.History.PostgresDSN != "" {
		pg, err := history.NewPostgresStore(ctx, cfg.History.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to history database", "err", err)
			return 1
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure history schema", "err", err)
			return 1
		}
		store = pg
		readyChecks = append(readyChecks, health.Check{Name: "history", Probe: pg.Ping})
		slog.Info("using PostgreSQL conversation history")
	} else {
		store = history.NewDemoStore()
		slog.Info("using bundled demo conversation history", "customer_id", history.DemoCustomerID)
	}

	// ── Diagnostics server ────────────────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		go serveDiagnostics(cfg.Server.ListenAddr, metrics, health.New(readyChecks...))
	}

	// ── Session orchestrator ──────────────────────────────────────────────────
	orch := session.New(recognizer, extractor, store,
		session.WithLogger(logger),
		session.WithMetrics(metrics),
	)

	sessCfg := session.Config{
		Stream:        cfg.StreamConfig(),
		CustomerID:    *customerID,
		WordThreshold: cfg.Boost.WordThreshold,
		MaxTerms:      cfg.Boost.MaxKeyterms,
		Boost:         true,
	}

	if flag.NArg() > 0 {
		return runComparison(ctx, orch, cfg, sessCfg, flag.Arg(0), *truthPath, *termsFlag)
	}
	sessCfg.Boost = !*noBoost
	return runLive(ctx, orch, cfg, sessCfg)
}

// runComparison transcribes the WAV file twice, without and with dynamic
// vocabulary, and prints the side-by-side report.
func runComparison(
	ctx context.Context,
	orch *session.Orchestrator,
	cfg *config.Config,
	sessCfg session.Config,
	wavPath, truthPath, termsFlag string,
) int {
	groundTruth := ""
	if truthPath != "" {
		raw, err := os.ReadFile(truthPath)
		if err != nil {
			slog.Error("failed to read ground truth", "path", truthPath, "err", err)
			return 1
		}
		groundTruth = strings.TrimSpace(string(raw))
	}

	runner := compare.NewRunner(orch, slog.Default())
	report, err := runner.Run(ctx,
		func() (audio.Source, error) {
			return audio.NewFileSource(wavPath, cfg.Stream.SampleRate)
		},
		sessCfg,
		groundTruth,
		splitTerms(termsFlag),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("comparison interrupted")
			return 0
		}
		slog.Error("comparison failed", "err", err)
		return 1
	}

	fmt.Println()
	fmt.Print(report.String())
	return 0
}

// runLive transcribes the default microphone until the context is cancelled.
func runLive(ctx context.Context, orch *session.Orchestrator, cfg *config.Config, sessCfg session.Config) int {
	src, err := audio.NewMicSource(cfg.Stream.SampleRate)
	if err != nil {
		slog.Error("failed to open microphone", "err", err)
		return 1
	}
	defer src.Close()

	slog.Info("live transcription started — press Ctrl+C to stop", "boost", sessCfg.Boost)

	result, err := orch.Run(ctx, src, sessCfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("session failed", "err", err)
		return 1
	}

	if result != nil && len(result.Turns) > 0 {
		fmt.Println()
		fmt.Println("transcript:")
		for _, turn := range result.Turns {
			fmt.Printf("  %s\n", turn)
		}
	}
	return 0
}

// serveDiagnostics runs the /metrics, /healthz and /readyz HTTP server.
// Errors are logged rather than fatal: losing diagnostics must not end a
// live session.
func serveDiagnostics(addr string, metrics *observe.Metrics, checks *health.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	checks.Register(mux)

	slog.Info("diagnostics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, observe.Middleware(metrics)(mux)); err != nil {
		slog.Warn("diagnostics server stopped", "err", err)
	}
}

// splitTerms parses a comma-separated term list, dropping empty entries.
func splitTerms(s string) []string {
	if s == "" {
		return nil
	}
	var terms []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}
