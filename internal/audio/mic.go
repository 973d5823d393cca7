package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// MicSource captures live microphone audio via PortAudio as 16-bit mono PCM.
//
// PortAudio is initialized on construction and terminated on Close, so at
// most one MicSource should be open at a time.
type MicSource struct {
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int
	closeOnce  sync.Once
	closeErr   error
}

// NewMicSource opens the default input device at the given sample rate.
// Chunks are sized to 100ms of audio to match file playback.
func NewMicSource(sampleRate int) (*MicSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: initialize portaudio: %w", err)
	}

	frames := sampleRate * int(chunkDuration.Milliseconds()) / 1000
	s := &MicSource{
		buf:        make([]int16, frames),
		sampleRate: sampleRate,
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frames, s.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("audio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("audio: start input stream: %w", err)
	}

	s.stream = stream
	slog.Info("microphone capture started", "sample_rate", sampleRate, "frames_per_chunk", frames)
	return s, nil
}

// SampleRate reports the capture sample rate in Hz.
func (s *MicSource) SampleRate() int { return s.sampleRate }

// Read blocks until the next 100ms of microphone audio is available and
// returns it as little-endian bytes. A cancelled context ends the capture.
func (s *MicSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("audio: read input stream: %w", err)
	}

	out := make([]byte, len(s.buf)*2)
	for i, sample := range s.buf {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out, nil
}

// Close stops the stream and shuts PortAudio down. Safe to call more than
// once.
func (s *MicSource) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stream.Stop()
		s.closeErr = s.stream.Close()
		_ = portaudio.Terminate()
	})
	return s.closeErr
}

var _ Source = (*MicSource)(nil)
