package keyterms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/keybeam/keybeam/internal/history"
	"github.com/keybeam/keybeam/pkg/llm"
)

const (
	// defaultTimeout bounds a single LLM call. Extraction runs alongside a
	// live audio session, so a hung request must not linger.
	defaultTimeout = 30 * time.Second

	defaultExtractMaxTokens = 2000
	defaultRefreshMaxTokens = 1500

	// Deterministic output keeps term lists stable across runs.
	extractionTemperature = 0.0
)

// Extractor derives keyterm sets from conversation context using an LLM.
// Extract builds the initial personalized set from history; Refresh revises
// it mid-call using the live transcript.
//
// Both operations return an error rather than silently substituting a
// fallback. Deciding what vocabulary to use when extraction fails is the
// session's call, not this package's.
type Extractor struct {
	provider llm.Provider
	log      *slog.Logger
	maxTerms int
	timeout  time.Duration
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxTerms caps the size of extracted sets. Values <= 0 keep the default.
func WithMaxTerms(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTerms = n
		}
	}
}

// WithTimeout bounds each LLM call. Values <= 0 keep the default.
func WithTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used for extraction progress.
func WithLogger(log *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if log != nil {
			e.log = log
		}
	}
}

// NewExtractor creates an Extractor over the given LLM provider.
func NewExtractor(provider llm.Provider, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		provider: provider,
		log:      slog.Default(),
		maxTerms: DefaultMaxTerms,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract generates the initial personalized keyterm set from a customer's
// conversation history. On any transport or parse failure it returns the
// empty Set and an error; it never invents terms.
func (e *Extractor) Extract(ctx context.Context, rec history.Record) (Set, error) {
	if rec.Empty() {
		return Set{}, fmt.Errorf("keyterms: extract: empty history for customer %q", rec.CustomerID)
	}

	e.log.Info("generating keyterms from conversation history",
		"customer_id", rec.CustomerID,
		"conversations", len(rec.Conversations))

	raw, err := e.complete(ctx, extractSystemPrompt, buildExtractPrompt(rec, e.maxTerms), defaultExtractMaxTokens)
	if err != nil {
		return Set{}, fmt.Errorf("keyterms: extract: %w", err)
	}

	set, err := parseTermList(raw, e.maxTerms)
	if err != nil {
		return Set{}, fmt.Errorf("keyterms: extract: %w", err)
	}

	e.log.Info("generated keyterms", "count", set.Len())
	return set, nil
}

// Refresh revises the current keyterm set against the live transcript so far.
// On failure it returns the empty Set and an error; the caller keeps using
// the current set.
func (e *Extractor) Refresh(ctx context.Context, current Set, transcript string, rec history.Record) (Set, error) {
	if strings.TrimSpace(transcript) == "" {
		return Set{}, fmt.Errorf("keyterms: refresh: empty transcript")
	}

	e.log.Info("refreshing keyterms from conversation progress",
		"current_terms", current.Len(),
		"transcript_chars", len(transcript))

	raw, err := e.complete(ctx, refreshSystemPrompt, buildRefreshPrompt(current, transcript, rec, e.maxTerms), defaultRefreshMaxTokens)
	if err != nil {
		return Set{}, fmt.Errorf("keyterms: refresh: %w", err)
	}

	set, err := parseTermList(raw, e.maxTerms)
	if err != nil {
		return Set{}, fmt.Errorf("keyterms: refresh: %w", err)
	}

	e.log.Info("refreshed keyterms", "count", set.Len())
	return set, nil
}

func (e *Extractor) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: user}},
		Temperature:  extractionTemperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// parseTermList decodes an LLM response into a Set. Models sometimes wrap
// JSON in markdown code fences despite instructions, so fences are stripped
// before decoding.
func parseTermList(raw string, max int) (Set, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if _, rest, ok := strings.Cut(raw, "\n"); ok {
			raw = rest
		}
		if idx := strings.LastIndex(raw, "```"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
	}

	var terms []string
	if err := json.Unmarshal([]byte(raw), &terms); err != nil {
		return Set{}, fmt.Errorf("parse term list: %w", err)
	}

	set := New(terms, max)
	if set.IsEmpty() {
		return Set{}, fmt.Errorf("parse term list: no usable terms in response")
	}
	return set, nil
}
