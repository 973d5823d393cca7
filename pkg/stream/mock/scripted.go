package mock

import (
	"strings"
	"sync"

	"github.com/keybeam/keybeam/pkg/stream"
)

// ScriptedTurn is one turn of a ScriptedSession's script, given as the ground
// truth the simulated speaker actually said.
type ScriptedTurn struct {
	// Words is the ground-truth word sequence for this turn.
	Words []string

	// AwaitKeyterms delays emission of this turn until SetKeyterms has been
	// called at least once on the session. Tests use this to place a turn
	// deterministically after the vocabulary push.
	AwaitKeyterms bool
}

// ScriptedSession simulates a recognizer whose accuracy depends on the active
// vocabulary: a scripted word is transcribed verbatim when it appears
// (case-insensitively) in the active keyterm list, and otherwise comes out as
// its entry in Mangle, modelling a phonetic misrecognition. Words without a
// Mangle entry are always transcribed verbatim, like common vocabulary would
// be.
//
// Each SendAudio call consumes one script entry and emits three events for
// it, matching the real provider's sequence: a partial, a final unformatted
// turn, and a formatted copy. The events channel closes on Close or when the
// script is exhausted and Close is called.
type ScriptedSession struct {
	mu sync.Mutex

	script []ScriptedTurn
	mangle map[string]string // lowercase ground-truth word -> misheard form
	active map[string]bool   // lowercase active keyterms

	events  chan stream.TurnEvent
	updated chan struct{} // closed on first SetKeyterms
	updOnce sync.Once

	done      chan struct{}
	closeOnce sync.Once

	idx int

	// SetKeytermsCalls records every keyterm update in order.
	SetKeytermsCalls []SetKeytermsCall
}

// NewScriptedSession creates a ScriptedSession. initialTerms is the
// vocabulary active at connect time (the StreamConfig keyterm list). mangle
// maps lowercase ground-truth words to the form the recognizer produces when
// the word is not boosted.
func NewScriptedSession(script []ScriptedTurn, mangle map[string]string, initialTerms []string) *ScriptedSession {
	active := make(map[string]bool, len(initialTerms))
	for _, t := range initialTerms {
		active[strings.ToLower(t)] = true
	}
	low := make(map[string]string, len(mangle))
	for k, v := range mangle {
		low[strings.ToLower(k)] = v
	}
	return &ScriptedSession{
		script:  script,
		mangle:  low,
		active:  active,
		events:  make(chan stream.TurnEvent, len(script)*3+1),
		updated: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SendAudio consumes the next script entry and emits its events. Audio bytes
// themselves are ignored; only the call count drives the script forward.
func (s *ScriptedSession) SendAudio(_ []byte) error {
	select {
	case <-s.done:
		return stream.ErrSessionClosed
	default:
	}

	s.mu.Lock()
	if s.idx >= len(s.script) {
		s.mu.Unlock()
		return nil
	}
	turn := s.script[s.idx]
	s.idx++
	s.mu.Unlock()

	if turn.AwaitKeyterms {
		select {
		case <-s.updated:
		case <-s.done:
			return stream.ErrSessionClosed
		}
	}

	text := s.render(turn.Words)

	partialLen := len(turn.Words) / 2
	if partialLen > 0 {
		s.emit(stream.TurnEvent{Text: s.render(turn.Words[:partialLen])})
	}
	s.emit(stream.TurnEvent{Text: text, EndOfTurn: true})
	s.emit(stream.TurnEvent{Text: formatTurn(text), EndOfTurn: true, Formatted: true})
	return nil
}

// render transcribes the ground-truth words against the active vocabulary.
func (s *ScriptedSession) render(words []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(words))
	for i, w := range words {
		lower := strings.ToLower(w)
		if s.active[lower] {
			out[i] = w
			continue
		}
		if m, ok := s.mangle[lower]; ok {
			out[i] = m
			continue
		}
		out[i] = w
	}
	return strings.Join(out, " ")
}

func (s *ScriptedSession) emit(ev stream.TurnEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// formatTurn produces the formatted copy of a final turn.
func formatTurn(text string) string {
	if text == "" {
		return text
	}
	return strings.ToUpper(text[:1]) + text[1:] + "."
}

// Events implements stream.SessionHandle.
func (s *ScriptedSession) Events() <-chan stream.TurnEvent { return s.events }

// SetKeyterms replaces the active vocabulary and releases any turns waiting
// on AwaitKeyterms.
func (s *ScriptedSession) SetKeyterms(terms []string) error {
	s.mu.Lock()
	active := make(map[string]bool, len(terms))
	for _, t := range terms {
		active[strings.ToLower(t)] = true
	}
	s.active = active
	cp := make([]string, len(terms))
	copy(cp, terms)
	s.SetKeytermsCalls = append(s.SetKeytermsCalls, SetKeytermsCall{Terms: cp})
	s.mu.Unlock()

	s.updOnce.Do(func() { close(s.updated) })
	return nil
}

// Err implements stream.SessionHandle. ScriptedSession always ends cleanly.
func (s *ScriptedSession) Err() error { return nil }

// Close closes the events channel and releases blocked senders. Callers must
// not invoke Close concurrently with SendAudio; the orchestrator only closes
// a session after its audio pump has returned.
func (s *ScriptedSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		close(s.events)
	})
	return nil
}

// Ensure ScriptedSession implements stream.SessionHandle at compile time.
var _ stream.SessionHandle = (*ScriptedSession)(nil)
