package compare

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/keybeam/keybeam/internal/audio"
	"github.com/keybeam/keybeam/internal/session"
)

// SourceFactory opens a fresh audio source for one comparison leg. Sources
// are single-use, so each leg gets its own.
type SourceFactory func() (audio.Source, error)

// RunSummary is the outcome of one comparison leg.
type RunSummary struct {
	// Transcript is the finalized transcript of the leg.
	Transcript string

	// Turns holds the finalized turns in order.
	Turns []string

	// WER is the word error rate against the ground truth, in [0, n].
	// Only meaningful when a ground truth was provided.
	WER float64

	// Refreshes counts mid-session vocabulary refreshes.
	Refreshes int
}

// TermOutcome reports how often one tracked term was transcribed correctly
// in each leg.
type TermOutcome struct {
	// Term is the tracked vocabulary term.
	Term string

	// Truth is how often the term occurs in the ground truth.
	Truth int

	// Baseline and Boosted count correct occurrences per leg.
	Baseline int
	Boosted  int
}

// Report is the side-by-side result of a comparison run.
type Report struct {
	// GroundTruth is the reference transcript, empty when none was given.
	GroundTruth string

	// Baseline is the unboosted leg, Boosted the leg with dynamic
	// vocabulary.
	Baseline RunSummary
	Boosted  RunSummary

	// Terms breaks accuracy down per tracked term.
	Terms []TermOutcome
}

// String renders the report as a human-readable summary.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "baseline:  WER %.1f%%  (%d turns)\n", r.Baseline.WER*100, len(r.Baseline.Turns))
	fmt.Fprintf(&b, "boosted:   WER %.1f%%  (%d turns, %d refreshes)\n",
		r.Boosted.WER*100, len(r.Boosted.Turns), r.Boosted.Refreshes)
	if len(r.Terms) > 0 {
		fmt.Fprintf(&b, "\n%-30s %8s %10s %10s\n", "term", "truth", "baseline", "boosted")
		for _, term := range r.Terms {
			fmt.Fprintf(&b, "%-30s %8d %10d %10d\n", term.Term, term.Truth, term.Baseline, term.Boosted)
		}
	}
	return b.String()
}

// Runner executes comparison runs over a session orchestrator.
type Runner struct {
	orchestrator *session.Orchestrator
	log          *slog.Logger
}

// NewRunner creates a Runner. log may be nil.
func NewRunner(orchestrator *session.Orchestrator, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{orchestrator: orchestrator, log: log}
}

// Run executes the baseline leg followed by the boosted leg, each over a
// fresh audio source, and scores both against groundTruth. trackedTerms are
// the vocabulary terms to break down per term; pass nil to skip the table.
//
// The legs run sequentially and independently: a vocabulary problem in the
// boosted leg never contaminates the baseline numbers.
func (r *Runner) Run(
	ctx context.Context,
	newSource SourceFactory,
	cfg session.Config,
	groundTruth string,
	trackedTerms []string,
) (*Report, error) {
	r.log.Info("comparison: running baseline leg")
	baseline, err := r.runLeg(ctx, newSource, cfg, false)
	if err != nil {
		return nil, fmt.Errorf("compare: baseline leg: %w", err)
	}

	r.log.Info("comparison: running boosted leg")
	boosted, err := r.runLeg(ctx, newSource, cfg, true)
	if err != nil {
		return nil, fmt.Errorf("compare: boosted leg: %w", err)
	}

	report := &Report{
		GroundTruth: groundTruth,
		Baseline:    *baseline,
		Boosted:     *boosted,
	}

	if groundTruth != "" {
		truthWords := normalizeWords(groundTruth)
		report.Baseline.WER = wordErrorRate(truthWords, normalizeWords(baseline.Transcript))
		report.Boosted.WER = wordErrorRate(truthWords, normalizeWords(boosted.Transcript))
	}

	for _, term := range trackedTerms {
		report.Terms = append(report.Terms, TermOutcome{
			Term:     term,
			Truth:    countOccurrences(groundTruth, term),
			Baseline: countOccurrences(baseline.Transcript, term),
			Boosted:  countOccurrences(boosted.Transcript, term),
		})
	}

	return report, nil
}

func (r *Runner) runLeg(ctx context.Context, newSource SourceFactory, cfg session.Config, boost bool) (*RunSummary, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	cfg.Boost = boost
	result, err := r.orchestrator.Run(ctx, src, cfg)
	if err != nil {
		return nil, err
	}

	return &RunSummary{
		Transcript: result.Transcript(),
		Turns:      result.Turns,
		Refreshes:  result.Refreshes,
	}, nil
}
