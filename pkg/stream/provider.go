// Package stream defines the Provider interface for streaming speech
// recognition backends.
//
// A stream provider wraps a real-time transcription service and exposes a
// uniform session interface. The central abstraction is SessionHandle: once
// opened, a session accepts raw PCM audio frames and emits an ordered
// sequence of TurnEvent values. Sessions additionally support replacing the
// active keyterm list mid-stream without reconnecting, which is the mechanism
// the vocabulary boosting layer is built on.
//
// Implementations must be safe for concurrent use.
package stream

import (
	"context"
	"errors"
	"time"
)

// ErrSessionClosed is returned by SendAudio and SetKeyterms after Close.
var ErrSessionClosed = errors.New("stream: session is closed")

// ErrNotSupported is returned by SetKeyterms when the underlying transport
// cannot replace the keyterm list without reconnecting. The orchestration
// layer treats this as a hard requirement on the chosen transport, so the
// bundled AssemblyAI provider never returns it; it exists for third-party
// implementations.
var ErrNotSupported = errors.New("stream: mid-session keyterm updates are not supported")

// StreamConfig describes the audio format and recognition behaviour for a new
// streaming session. Zero values select provider defaults.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Must match the audio source.
	SampleRate int

	// Encoding is the PCM encoding of the audio frames, e.g. "pcm_s16le".
	Encoding string

	// SpeechModel selects the recognition model, e.g.
	// "universal-streaming-english".
	SpeechModel string

	// FormatTurns requests punctuated and cased copies of finalized turns.
	FormatTurns bool

	// LanguageDetection attaches language metadata to turns where the model
	// supports it.
	LanguageDetection bool

	// EndOfTurnConfidenceThreshold is the confidence (0-1) above which the
	// recognizer may end a turn early.
	EndOfTurnConfidenceThreshold float64

	// MinEndOfTurnSilence is the minimum silence before a confident
	// end-of-turn is emitted.
	MinEndOfTurnSilence time.Duration

	// MaxTurnSilence is the silence after which a turn ends regardless of
	// confidence.
	MaxTurnSilence time.Duration

	// Keyterms is the initial vocabulary hint list applied at connect time.
	// It can be replaced later via SessionHandle.SetKeyterms.
	Keyterms []string
}

// SessionHandle represents an open streaming recognition session.
//
// Events are delivered strictly in arrival order on a single channel; keyterm
// updates never reorder or drop events. Callers must call Close when the
// session is no longer needed and must drain Events to avoid blocking the
// provider's read loop. All methods are safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes for transcription.
	// Returns ErrSessionClosed after Close.
	SendAudio(chunk []byte) error

	// Events returns the ordered stream of turn events. The channel is
	// closed when the session terminates, after which Err reports the
	// terminal condition.
	Events() <-chan TurnEvent

	// SetKeyterms replaces the active keyterm list without restarting the
	// session. Changes apply on a best-effort basis; audio already buffered
	// by the recognizer may still use the previous list.
	SetKeyterms(terms []string) error

	// Err returns the terminal transport error once Events is closed, or nil
	// if the session ended cleanly. Before Events closes the result is
	// undefined.
	Err() error

	// Close terminates the session, flushes pending audio, and releases all
	// resources. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any streaming recognition backend.
type Provider interface {
	// StartStream opens a new streaming session with the given configuration.
	// The returned SessionHandle is ready to accept audio immediately.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
