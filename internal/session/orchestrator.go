package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/keybeam/keybeam/internal/audio"
	"github.com/keybeam/keybeam/internal/history"
	"github.com/keybeam/keybeam/internal/keyterms"
	"github.com/keybeam/keybeam/internal/observe"
	"github.com/keybeam/keybeam/pkg/stream"
)

// VocabularyGenerator produces keyterm sets from conversation context.
// *keyterms.Extractor is the production implementation.
type VocabularyGenerator interface {
	Extract(ctx context.Context, rec history.Record) (keyterms.Set, error)
	Refresh(ctx context.Context, current keyterms.Set, transcript string, rec history.Record) (keyterms.Set, error)
}

// Config describes one orchestrated session.
type Config struct {
	// Stream is the recognizer configuration. Keyterms is overwritten by the
	// orchestrator.
	Stream stream.StreamConfig

	// CustomerID selects whose history seeds personalized extraction.
	CustomerID string

	// WordThreshold is how many finalized words accumulate before a
	// vocabulary refresh. <= 0 disables refreshes.
	WordThreshold int

	// MaxTerms caps the vocabulary pushed to the recognizer.
	MaxTerms int

	// Boost enables vocabulary boosting. When false the session runs with no
	// keyterms at all, which is the comparison baseline.
	Boost bool
}

// Result is the outcome of one orchestrated session.
type Result struct {
	// Turns holds the finalized turns in order. When turn formatting is
	// enabled these are the punctuated copies.
	Turns []string

	// AppliedVocabularies lists every keyterm set actually configured on the
	// session, in order: the initial set, then one entry per successful push.
	AppliedVocabularies []keyterms.Set

	// Refreshes counts successful mid-session vocabulary refreshes.
	Refreshes int
}

// Transcript joins the finalized turns into a single string.
func (r *Result) Transcript() string {
	return strings.Join(r.Turns, " ")
}

// Orchestrator runs transcription sessions with dynamic vocabulary boosting.
type Orchestrator struct {
	provider  stream.Provider
	generator VocabularyGenerator
	store     history.Store
	metrics   *observe.Metrics
	log       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// New creates an Orchestrator over a streaming recognizer, a vocabulary
// generator, and a history store.
func New(provider stream.Provider, generator VocabularyGenerator, store history.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:  provider,
		generator: generator,
		store:     store,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Metric attribute values for vocabulary operations.
const (
	opExtract = "extract"
	opRefresh = "refresh"
)

// vocabResult is what a background generation goroutine hands back to the
// event loop. Only the event loop touches the controller, so results cross
// this channel instead of sharing state.
type vocabResult struct {
	op      string
	set     keyterms.Set
	rec     history.Record
	err     error
	elapsed time.Duration
}

// Run executes one session: it opens the stream with the fallback vocabulary
// (or none, when boosting is off), pumps audio from src until io.EOF, applies
// generated vocabularies as they arrive, and returns once the recognizer has
// flushed all pending turns.
//
// Vocabulary failures are logged and absorbed; the session continues with
// whatever vocabulary it has. Transport failures end the session and are
// returned.
func (o *Orchestrator) Run(ctx context.Context, src audio.Source, cfg Config) (*Result, error) {
	log := o.log.With("session_id", uuid.NewString())
	log.Info("session starting",
		"customer_id", cfg.CustomerID,
		"boost", cfg.Boost,
		"word_threshold", cfg.WordThreshold)

	// Generation goroutines are scoped to this run: when the session ends,
	// any in-flight LLM call is cancelled rather than left to its timeout.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var baseline keyterms.Set
	threshold := 0
	if cfg.Boost {
		baseline = keyterms.Fallback()
		threshold = cfg.WordThreshold
	}
	controller := NewVocabularyController(baseline, threshold, cfg.MaxTerms)

	streamCfg := cfg.Stream
	streamCfg.Keyterms = baseline.Terms()

	sess, err := o.provider.StartStream(ctx, streamCfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	o.metrics.ActiveSessions.Add(ctx, 1)
	defer func() {
		o.metrics.ActiveSessions.Add(ctx, -1)
		o.metrics.SessionDuration.Record(ctx, time.Since(start).Seconds())
	}()

	result := &Result{}
	if cfg.Boost {
		result.AppliedVocabularies = append(result.AppliedVocabularies, baseline)
	}

	// At most one generation is in flight, so a single slot is enough for a
	// result to land even if the loop has already exited.
	vocabCh := make(chan vocabResult, 1)

	if cfg.Boost {
		// The initial extraction counts as an in-flight refresh: no
		// word-threshold refresh may start until it resolves.
		controller.refreshInFlight = true
		go o.generateInitial(ctx, cfg.CustomerID, vocabCh)
	}

	// Audio pump. Closing the session after the pump ends is what makes the
	// recognizer flush and close the event channel.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer sess.Close()
		for {
			chunk, err := src.Read(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := sess.SendAudio(chunk); err != nil {
				if errors.Is(err, stream.ErrSessionClosed) {
					return nil
				}
				return err
			}
		}
	})

	// Event loop. Single writer for the controller and the result.
	var rec history.Record
	events := sess.Events()
	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			o.handleTurn(ctx, ev, cfg, controller, result, rec, vocabCh)
		case res := <-vocabCh:
			if res.op == opExtract {
				rec = res.rec
			}
			o.handleVocabulary(ctx, res, controller, result, sess)
		}
	}

	// A transport failure closes the events channel while the pump can still
	// be blocked handing audio to the dead connection. Close is idempotent;
	// it unblocks the pump so the terminal error can surface.
	_ = sess.Close()

	pumpErr := g.Wait()

	log.Info("session finished",
		"turns", len(result.Turns),
		"refreshes", result.Refreshes,
		"final_vocabulary", controller.Active().Len(),
		"duration", time.Since(start))

	if pumpErr != nil {
		return result, pumpErr
	}
	return result, sess.Err()
}

// handleTurn processes one recognizer event: it logs finalized turns, counts
// words toward the refresh threshold, and launches a refresh when one is due.
func (o *Orchestrator) handleTurn(
	ctx context.Context,
	ev stream.TurnEvent,
	cfg Config,
	controller *VocabularyController,
	result *Result,
	rec history.Record,
	vocabCh chan<- vocabResult,
) {
	if !ev.EndOfTurn {
		return
	}

	// Formatted finals are display copies of a turn already counted; word
	// accounting only looks at the unformatted final.
	if !ev.Formatted {
		if due := controller.ObserveWords(len(strings.Fields(ev.Text))); due {
			current := controller.Active()
			transcript := strings.TrimSpace(result.Transcript() + " " + ev.Text)
			go o.generateRefresh(ctx, current, transcript, rec, vocabCh)
		}
	}

	if ev.Formatted || !cfg.Stream.FormatTurns {
		result.Turns = append(result.Turns, ev.Text)
		o.metrics.RecordTurn(ctx, cfg.Boost)
		o.log.Info("turn finalized", "text", ev.Text, "confidence", ev.Confidence)
	}
}

// handleVocabulary folds a generation result into the session: merge, push,
// and re-arm. Failures leave the current vocabulary in place.
func (o *Orchestrator) handleVocabulary(
	ctx context.Context,
	res vocabResult,
	controller *VocabularyController,
	result *Result,
	sess stream.SessionHandle,
) {
	if res.err != nil {
		controller.AbortRefresh()
		if errors.Is(res.err, history.ErrNotFound) {
			// Already logged by the generation goroutine. Not a failure.
			return
		}
		o.metrics.RecordExtraction(ctx, res.op, res.elapsed.Seconds(), true)
		o.metrics.RecordVocabularyUpdate(ctx, res.op, "error", controller.Active().Len())
		o.log.Warn("vocabulary generation failed, keeping current set",
			"operation", res.op, "error", res.err)
		return
	}
	o.metrics.RecordExtraction(ctx, res.op, res.elapsed.Seconds(), false)

	merged := controller.CompleteRefresh(res.set)
	if err := sess.SetKeyterms(merged.Terms()); err != nil {
		o.metrics.RecordVocabularyUpdate(ctx, res.op, "error", merged.Len())
		o.log.Warn("keyterm push failed, session continues",
			"operation", res.op, "error", err)
		return
	}

	result.AppliedVocabularies = append(result.AppliedVocabularies, merged)
	if res.op == opRefresh {
		result.Refreshes++
	}
	o.metrics.RecordVocabularyUpdate(ctx, res.op, "ok", merged.Len())
	o.log.Info("vocabulary applied",
		"operation", res.op,
		"generated", res.set.Len(),
		"merged", merged.Len())
}

// generateInitial loads the customer's history and extracts the personalized
// vocabulary. Runs concurrently with the live session so connecting is never
// delayed. Missing history is not an error: the session keeps the fallback.
func (o *Orchestrator) generateInitial(ctx context.Context, customerID string, out chan<- vocabResult) {
	start := time.Now()

	rec, err := o.store.Load(ctx, customerID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			o.log.Info("no conversation history, keeping fallback vocabulary",
				"customer_id", customerID)
		}
		out <- vocabResult{op: opExtract, err: err, elapsed: time.Since(start)}
		return
	}

	set, err := o.generator.Extract(ctx, rec)
	out <- vocabResult{op: opExtract, set: set, rec: rec, err: err, elapsed: time.Since(start)}
}

// generateRefresh revises the vocabulary against the live transcript.
func (o *Orchestrator) generateRefresh(
	ctx context.Context,
	current keyterms.Set,
	transcript string,
	rec history.Record,
	out chan<- vocabResult,
) {
	start := time.Now()
	set, err := o.generator.Refresh(ctx, current, transcript, rec)
	out <- vocabResult{op: opRefresh, set: set, err: err, elapsed: time.Since(start)}
}
