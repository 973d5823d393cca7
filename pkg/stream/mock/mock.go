// Package mock provides test doubles for the stream package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig. Use Session to feed controlled TurnEvent values and inspect
// which audio chunks and keyterm updates were delivered. ScriptedSession (in
// scripted.go) additionally simulates a recognizer that rewards vocabulary
// matches, for end-to-end boosting tests.
package mock

import (
	"context"
	"sync"

	"github.com/keybeam/keybeam/pkg/stream"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stream.StreamConfig
}

// Provider is a mock implementation of stream.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by StartStream. If nil,
	// StartStream returns a new default Session with a buffered event channel.
	Session stream.SessionHandle

	// Sessions, when non-empty, is consumed one handle per StartStream call.
	// Takes precedence over Session. Used by comparison tests that open two
	// independent sessions.
	Sessions []stream.SessionHandle

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns the configured session handle.
func (p *Provider) StartStream(ctx context.Context, cfg stream.StreamConfig) (stream.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if len(p.Sessions) > 0 {
		s := p.Sessions[0]
		p.Sessions = p.Sessions[1:]
		return s, nil
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return &Session{EventsCh: make(chan stream.TurnEvent, 16)}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = nil
}

// Ensure Provider implements stream.Provider at compile time.
var _ stream.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// SetKeytermsCall records a single invocation of Session.SetKeyterms.
type SetKeytermsCall struct {
	// Terms is a copy of the keyterm list passed to SetKeyterms.
	Terms []string
}

// Session is a mock implementation of stream.SessionHandle.
// Callers should pre-populate EventsCh with the TurnEvent values they want the
// consumer to receive, then close it when done.
type Session struct {
	mu sync.Mutex

	// EventsCh is the channel returned by Events(). Callers own this channel
	// and are responsible for sending to and closing it in tests.
	EventsCh chan stream.TurnEvent

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// SetKeytermsErr, if non-nil, is returned by every SetKeyterms call.
	SetKeytermsErr error

	// TerminalErr is returned by Err.
	TerminalErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// CloseClosesEvents makes Close close EventsCh, mirroring real provider
	// behaviour. Leave false when the test closes the channel itself.
	CloseClosesEvents bool

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// SetKeytermsCalls records every call to SetKeyterms in order.
	SetKeytermsCalls []SetKeytermsCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	closeOnce sync.Once
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Events returns EventsCh. The caller must have initialised EventsCh before
// calling this method.
func (s *Session) Events() <-chan stream.TurnEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EventsCh
}

// SetKeyterms records the call and returns SetKeytermsErr.
func (s *Session) SetKeyterms(terms []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(terms))
	copy(cp, terms)
	s.SetKeytermsCalls = append(s.SetKeytermsCalls, SetKeytermsCall{Terms: cp})
	return s.SetKeytermsErr
}

// Err returns TerminalErr.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TerminalErr
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.CloseClosesEvents && s.EventsCh != nil {
		s.closeOnce.Do(func() { close(s.EventsCh) })
	}
	return s.CloseErr
}

// SetKeytermsCallCount returns the number of SetKeyterms calls. Thread-safe.
func (s *Session) SetKeytermsCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SetKeytermsCalls)
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.SetKeytermsCalls = nil
	s.CloseCallCount = 0
}

// Ensure Session implements stream.SessionHandle at compile time.
var _ stream.SessionHandle = (*Session)(nil)
