// Package config provides the configuration schema and loader for the
// dynamic keyterm boosting demo.
package config

import (
	"log/slog"
	"time"

	"github.com/keybeam/keybeam/pkg/stream"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader]; [Default] gives the values the
// demo runs with when no file is provided.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	LLM     LLMConfig     `yaml:"llm"`
	Boost   BoostConfig   `yaml:"boost"`
	History HistoryConfig `yaml:"history"`
}

// ServerConfig holds the diagnostics HTTP server and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the /metrics and /healthz server listens
	// on (e.g. ":9090"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// StreamConfig holds the streaming recognizer settings.
type StreamConfig struct {
	// Endpoint overrides the recognizer's default WebSocket endpoint.
	Endpoint string `yaml:"endpoint"`

	// SampleRate is the audio sample rate in Hz. Must match the audio source.
	SampleRate int `yaml:"sample_rate"`

	// Encoding is the PCM encoding: "pcm_s16le" or "pcm_mulaw".
	Encoding string `yaml:"encoding"`

	// SpeechModel selects the recognition model:
	// "universal-streaming-english" or "universal-streaming-multilingual".
	SpeechModel string `yaml:"speech_model"`

	// FormatTurns requests punctuated and cased copies of finalized turns.
	FormatTurns bool `yaml:"format_turns"`

	// LanguageDetection attaches language metadata to turns. Only available
	// with the multilingual model.
	LanguageDetection bool `yaml:"language_detection"`

	// EndOfTurnConfidenceThreshold is the confidence (0-1) above which the
	// recognizer may end a turn early.
	EndOfTurnConfidenceThreshold float64 `yaml:"end_of_turn_confidence_threshold"`

	// MinEndOfTurnSilenceMs is the minimum silence in milliseconds before a
	// confident end-of-turn is emitted.
	MinEndOfTurnSilenceMs int `yaml:"min_end_of_turn_silence_ms"`

	// MaxTurnSilenceMs is the silence in milliseconds after which a turn
	// ends regardless of confidence.
	MaxTurnSilenceMs int `yaml:"max_turn_silence_ms"`
}

// LLMConfig holds the keyterm generation model settings.
type LLMConfig struct {
	// BaseURL is the OpenAI-compatible chat-completions endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects the generation model.
	Model string `yaml:"model"`

	// TimeoutSeconds bounds each generation call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// BoostConfig holds the dynamic vocabulary settings.
type BoostConfig struct {
	// WordThreshold is how many finalized words accumulate before a
	// vocabulary refresh.
	WordThreshold int `yaml:"word_threshold"`

	// MaxKeyterms caps the vocabulary pushed to the recognizer.
	MaxKeyterms int `yaml:"max_keyterms"`
}

// HistoryConfig selects the conversation history backend.
type HistoryConfig struct {
	// PostgresDSN is the PostgreSQL connection string for the conversations
	// table. Empty selects the bundled in-memory demo history.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the configuration the demo runs with out of the box.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":9090",
			LogLevel:   LogInfo,
		},
		Stream: StreamConfig{
			SampleRate:                   16000,
			Encoding:                     "pcm_s16le",
			SpeechModel:                  "universal-streaming-english",
			FormatTurns:                  true,
			EndOfTurnConfidenceThreshold: 0.4,
			MinEndOfTurnSilenceMs:        400,
			MaxTurnSilenceMs:             1280,
		},
		LLM: LLMConfig{
			BaseURL:        "https://llm-gateway.assemblyai.com/v1",
			Model:          "claude-sonnet-4-5-20250929",
			TimeoutSeconds: 30,
		},
		Boost: BoostConfig{
			WordThreshold: 50,
			MaxKeyterms:   100,
		},
	}
}

// StreamConfig converts the stream settings into the provider's
// configuration type. Keyterms are left empty; the session layer fills them.
func (c *Config) StreamConfig() stream.StreamConfig {
	return stream.StreamConfig{
		SampleRate:                   c.Stream.SampleRate,
		Encoding:                     c.Stream.Encoding,
		SpeechModel:                  c.Stream.SpeechModel,
		FormatTurns:                  c.Stream.FormatTurns,
		LanguageDetection:            c.Stream.LanguageDetection,
		EndOfTurnConfidenceThreshold: c.Stream.EndOfTurnConfidenceThreshold,
		MinEndOfTurnSilence:          time.Duration(c.Stream.MinEndOfTurnSilenceMs) * time.Millisecond,
		MaxTurnSilence:               time.Duration(c.Stream.MaxTurnSilenceMs) * time.Millisecond,
	}
}

// SlogLevel maps the configured log level to its slog equivalent.
func (c *Config) SlogLevel() slog.Level {
	switch c.Server.LogLevel {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
