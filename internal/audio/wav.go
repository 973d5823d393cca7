package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// chunkDuration is how much audio each Read returns. 100ms chunks match what
// real-time recognizers expect from a live microphone.
const chunkDuration = 100 * time.Millisecond

var errNotWAV = errors.New("audio: not a RIFF/WAVE file")

// FileSource reads 16-bit mono PCM from a WAV file in 100ms chunks. With
// real-time pacing enabled (the default) Reads are throttled to simulate a
// live audio feed; disable it in tests to run at full speed.
type FileSource struct {
	f          *os.File
	log        *slog.Logger
	sampleRate int
	chunkBytes int
	remaining  int64
	limiter    *rate.Limiter
}

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithoutPacing disables real-time throttling so the file is consumed as
// fast as Read is called.
func WithoutPacing() FileOption {
	return func(s *FileSource) { s.limiter = nil }
}

// WithFileLogger sets the logger used for format warnings.
func WithFileLogger(log *slog.Logger) FileOption {
	return func(s *FileSource) {
		if log != nil {
			s.log = log
		}
	}
}

// NewFileSource opens a WAV file and validates that it carries 16-bit mono
// PCM. wantRate is the sample rate the session was configured for; a mismatch
// is logged but not fatal, since the recognizer resamples internally.
func NewFileSource(path string, wantRate int, opts ...FileOption) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}

	hdr, dataLen, err := parseWAVHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audio: %s: %w", path, err)
	}

	if hdr.format != 1 {
		f.Close()
		return nil, fmt.Errorf("audio: %s: compressed WAV (format %d), want PCM", path, hdr.format)
	}
	if hdr.bitsPerSample != 16 {
		f.Close()
		return nil, fmt.Errorf("audio: %s: %d-bit samples, want 16-bit", path, hdr.bitsPerSample)
	}
	if hdr.channels != 1 {
		f.Close()
		return nil, fmt.Errorf("audio: %s: %d channels, want mono", path, hdr.channels)
	}

	s := &FileSource{
		f:          f,
		log:        slog.Default(),
		sampleRate: int(hdr.sampleRate),
		chunkBytes: int(hdr.sampleRate) * 2 * int(chunkDuration.Milliseconds()) / 1000,
		remaining:  int64(dataLen),
	}
	// One token per chunk, i.e. ten chunks of audio per second.
	s.limiter = rate.NewLimiter(rate.Every(chunkDuration), 1)

	for _, opt := range opts {
		opt(s)
	}

	if wantRate > 0 && s.sampleRate != wantRate {
		s.log.Warn("sample rate mismatch",
			"file", path,
			"file_rate", s.sampleRate,
			"session_rate", wantRate)
	}
	return s, nil
}

// SampleRate reports the file's PCM sample rate in Hz.
func (s *FileSource) SampleRate() int { return s.sampleRate }

// Read returns the next 100ms chunk of PCM, or io.EOF once the data chunk is
// exhausted. The final chunk may be shorter than 100ms.
func (s *FileSource) Read(ctx context.Context) ([]byte, error) {
	if s.remaining <= 0 {
		return nil, io.EOF
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	n := int64(s.chunkBytes)
	if s.remaining < n {
		n = s.remaining
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(s.f, buf)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			s.remaining = 0
			if read == 0 {
				return nil, io.EOF
			}
			return buf[:read], nil
		}
		return nil, fmt.Errorf("audio: read: %w", err)
	}
	s.remaining -= int64(read)
	return buf, nil
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	return s.f.Close()
}

var _ Source = (*FileSource)(nil)

type wavHeader struct {
	format        uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// parseWAVHeader reads the RIFF container up to the start of the data chunk,
// leaving the reader positioned at the first PCM byte. Chunks other than
// "fmt " and "data" are skipped.
func parseWAVHeader(r io.ReadSeeker) (wavHeader, uint32, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return wavHeader{}, 0, errNotWAV
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return wavHeader{}, 0, errNotWAV
	}

	var hdr wavHeader
	sawFmt := false
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return wavHeader{}, 0, fmt.Errorf("truncated WAV: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			var fmtBody [16]byte
			if size < 16 {
				return wavHeader{}, 0, errors.New("fmt chunk too small")
			}
			if _, err := io.ReadFull(r, fmtBody[:]); err != nil {
				return wavHeader{}, 0, fmt.Errorf("truncated fmt chunk: %w", err)
			}
			hdr.format = binary.LittleEndian.Uint16(fmtBody[0:2])
			hdr.channels = binary.LittleEndian.Uint16(fmtBody[2:4])
			hdr.sampleRate = binary.LittleEndian.Uint32(fmtBody[4:8])
			hdr.bitsPerSample = binary.LittleEndian.Uint16(fmtBody[14:16])
			sawFmt = true
			if size > 16 {
				if _, err := r.Seek(int64(size-16), io.SeekCurrent); err != nil {
					return wavHeader{}, 0, err
				}
			}
		case "data":
			if !sawFmt {
				return wavHeader{}, 0, errors.New("data chunk before fmt chunk")
			}
			return hdr, size, nil
		default:
			// Skip LIST, INFO, and other metadata chunks. Chunk sizes are
			// word-aligned.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return wavHeader{}, 0, err
			}
		}
	}
}
