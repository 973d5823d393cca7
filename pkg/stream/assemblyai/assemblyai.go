// Package assemblyai provides a stream.Provider backed by the AssemblyAI
// Universal Streaming v3 WebSocket API.
//
// The v3 API accepts the initial session parameters (including the keyterm
// list) as query parameters on the connection URL and supports replacing the
// keyterm list mid-session through an UpdateConfiguration message, which makes
// it a valid transport for live vocabulary boosting.
package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/keybeam/keybeam/pkg/stream"
)

const (
	streamingEndpoint = "wss://streaming.assemblyai.com/v3/ws"

	defaultSampleRate = 16000
	defaultEncoding   = "pcm_s16le"
	defaultModel      = "universal-streaming-english"
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithEndpoint overrides the streaming endpoint URL. Used in tests to point
// the provider at a local WebSocket server.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithSpeechModel sets the provider-level default speech model.
func WithSpeechModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// Provider implements stream.Provider backed by AssemblyAI Universal Streaming.
type Provider struct {
	apiKey   string
	endpoint string
	model    string
}

// New creates a new AssemblyAI Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("assemblyai: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		endpoint: streamingEndpoint,
		model:    defaultModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session.
func (p *Provider) StartStream(ctx context.Context, cfg stream.StreamConfig) (stream.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("assemblyai: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("assemblyai: dial: %w", err)
	}

	sess := &session{
		conn:   conn,
		events: make(chan stream.TurnEvent, 64),
		audio:  make(chan []byte, 256),
		done:   make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stream.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	sr := cfg.SampleRate
	if sr == 0 {
		sr = defaultSampleRate
	}
	enc := cfg.Encoding
	if enc == "" {
		enc = defaultEncoding
	}
	model := cfg.SpeechModel
	if model == "" {
		model = p.model
	}

	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(sr))
	q.Set("encoding", enc)
	q.Set("speech_model", model)
	q.Set("format_turns", strconv.FormatBool(cfg.FormatTurns))
	if cfg.LanguageDetection {
		q.Set("language_detection", "true")
	}
	if cfg.EndOfTurnConfidenceThreshold > 0 {
		q.Set("end_of_turn_confidence_threshold", formatFloat(cfg.EndOfTurnConfidenceThreshold))
	}
	if cfg.MinEndOfTurnSilence > 0 {
		q.Set("min_end_of_turn_silence_when_confident", strconv.FormatInt(cfg.MinEndOfTurnSilence.Milliseconds(), 10))
	}
	if cfg.MaxTurnSilence > 0 {
		q.Set("max_turn_silence", strconv.FormatInt(cfg.MaxTurnSilence.Milliseconds(), 10))
	}
	if len(cfg.Keyterms) > 0 {
		// The v3 API takes the keyterm list as a JSON array in a single
		// query parameter.
		enc, err := json.Marshal(cfg.Keyterms)
		if err != nil {
			return "", fmt.Errorf("encode keyterms: %w", err)
		}
		q.Set("keyterms_prompt", string(enc))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ---- wire messages ----

// serverMessage is the superset of JSON messages the v3 API sends. Type
// discriminates: "Begin", "Turn", or "Termination".
type serverMessage struct {
	Type string `json:"type"`

	// Begin
	ID        string  `json:"id"`
	ExpiresAt float64 `json:"expires_at"`

	// Turn
	Transcript          string  `json:"transcript"`
	EndOfTurn           bool    `json:"end_of_turn"`
	TurnIsFormatted     bool    `json:"turn_is_formatted"`
	EndOfTurnConfidence float64 `json:"end_of_turn_confidence"`
	Words               []struct {
		Text        string  `json:"text"`
		Start       float64 `json:"start"`
		End         float64 `json:"end"`
		Confidence  float64 `json:"confidence"`
		WordIsFinal bool    `json:"word_is_final"`
	} `json:"words"`

	// Termination
	AudioDurationSeconds float64 `json:"audio_duration_seconds"`
}

// updateConfiguration is the client message that replaces session parameters
// mid-stream.
type updateConfiguration struct {
	Type           string   `json:"type"`
	KeytermsPrompt []string `json:"keyterms_prompt"`
}

// terminateMessage asks the server to flush pending audio and close.
type terminateMessage struct {
	Type string `json:"type"`
}

// ---- session ----

// session is a live AssemblyAI streaming session. It implements
// stream.SessionHandle.
type session struct {
	conn   *websocket.Conn
	events chan stream.TurnEvent
	audio  chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	mu         sync.Mutex
	info       stream.SessionInfo
	terminated bool // server sent Termination
	err        error
}

// SendAudio queues a PCM audio chunk for delivery.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return stream.ErrSessionClosed
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return stream.ErrSessionClosed
	}
}

// Events returns the ordered turn event channel.
func (s *session) Events() <-chan stream.TurnEvent { return s.events }

// SetKeyterms replaces the active keyterm list via an UpdateConfiguration
// message. The write happens on the caller's goroutine; the websocket layer
// serializes it against the audio write loop.
func (s *session) SetKeyterms(terms []string) error {
	select {
	case <-s.done:
		return stream.ErrSessionClosed
	default:
	}

	msg, err := json.Marshal(updateConfiguration{
		Type:           "UpdateConfiguration",
		KeytermsPrompt: terms,
	})
	if err != nil {
		return fmt.Errorf("assemblyai: encode update: %w", err)
	}
	if err := s.conn.Write(context.Background(), websocket.MessageText, msg); err != nil {
		return fmt.Errorf("assemblyai: send update: %w", err)
	}
	return nil
}

// Info returns the session metadata from the Begin message. Zero until the
// server acknowledges the session.
func (s *session) Info() stream.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Err implements stream.SessionHandle.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close terminates the session cleanly: it sends a Terminate message so the
// server flushes buffered audio, waits for the loops to finish, then closes
// the connection.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		msg, _ := json.Marshal(terminateMessage{Type: "Terminate"})
		_ = s.conn.Write(context.Background(), websocket.MessageText, msg)
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop drains the audio channel into binary WebSocket messages.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			// Flush whatever is still queued before exiting.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages from the server and dispatches turn events
// in arrival order. It records the terminal error before closing the events
// channel.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			s.recordReadError(err)
			return
		}

		var sm serverMessage
		if err := json.Unmarshal(msg, &sm); err != nil {
			continue
		}

		switch sm.Type {
		case "Begin":
			s.mu.Lock()
			s.info = stream.SessionInfo{
				ID:        sm.ID,
				ExpiresAt: time.Unix(int64(sm.ExpiresAt), 0),
			}
			s.mu.Unlock()

		case "Turn":
			ev, ok := parseTurn(sm)
			if !ok {
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				// Session closing; remaining events are dropped after the
				// consumer has gone away.
				return
			}

		case "Termination":
			s.mu.Lock()
			s.terminated = true
			s.mu.Unlock()
			return
		}
	}
}

// recordReadError stores the terminal transport error. A read failure after
// the server acknowledged termination, or after the caller requested Close,
// is a normal shutdown rather than a transport failure.
func (s *session) recordReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated || s.err != nil {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	s.err = fmt.Errorf("assemblyai: read: %w", err)
}

// parseTurn converts a Turn message into a stream.TurnEvent.
// Returns false for empty transcripts, which the v3 API emits as keepalives.
func parseTurn(sm serverMessage) (stream.TurnEvent, bool) {
	if sm.Transcript == "" {
		return stream.TurnEvent{}, false
	}

	words := make([]stream.WordDetail, 0, len(sm.Words))
	for _, w := range sm.Words {
		words = append(words, stream.WordDetail{
			Text:       w.Text,
			Start:      time.Duration(w.Start * float64(time.Millisecond)),
			End:        time.Duration(w.End * float64(time.Millisecond)),
			Confidence: w.Confidence,
			IsFinal:    w.WordIsFinal,
		})
	}

	return stream.TurnEvent{
		Text:       sm.Transcript,
		EndOfTurn:  sm.EndOfTurn,
		Formatted:  sm.TurnIsFormatted,
		Confidence: sm.EndOfTurnConfidence,
		Words:      words,
	}, true
}

// Ensure interface compliance at compile time.
var (
	_ stream.Provider      = (*Provider)(nil)
	_ stream.SessionHandle = (*session)(nil)
)
