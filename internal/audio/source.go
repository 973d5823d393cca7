// Package audio provides PCM audio sources for streaming transcription:
// WAV file playback with real-time pacing and live microphone capture.
//
// All sources emit raw little-endian 16-bit mono PCM, the format the
// streaming recognizer expects.
package audio

import "context"

// Source delivers raw PCM audio in chunks.
//
// Read returns the next chunk, blocking as needed to honor the source's
// pacing. It returns io.EOF when the source is exhausted; callers treat that
// as the natural end of the session, not a failure. Sources are not safe for
// concurrent Reads.
type Source interface {
	// Read returns the next audio chunk or io.EOF when exhausted.
	Read(ctx context.Context) ([]byte, error)

	// SampleRate reports the PCM sample rate in Hz.
	SampleRate() int

	// Close releases the underlying file or device.
	Close() error
}
