package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables carrying credentials. Keys never live in the config
// file.
const (
	// EnvStreamAPIKey holds the streaming recognizer API key.
	EnvStreamAPIKey = "ASSEMBLYAI_API_KEY"

	// EnvLLMAPIKey holds the keyterm generation API key. When unset, the
	// recognizer key is reused, matching the vendor's shared-gateway setup.
	EnvLLMAPIKey = "LLM_GATEWAY_API_KEY"
)

// Credentials holds the API keys read from the environment.
type Credentials struct {
	StreamAPIKey string
	LLMAPIKey    string
}

// CredentialsFromEnv reads the API keys from the environment. The streaming
// key is required; the LLM key falls back to it.
func CredentialsFromEnv() (Credentials, error) {
	streamKey := os.Getenv(EnvStreamAPIKey)
	if streamKey == "" {
		return Credentials{}, fmt.Errorf("config: %s environment variable is required", EnvStreamAPIKey)
	}
	llmKey := os.Getenv(EnvLLMAPIKey)
	if llmKey == "" {
		llmKey = streamKey
	}
	return Credentials{StreamAPIKey: streamKey, LLMAPIKey: llmKey}, nil
}

// Load reads the YAML configuration file at path, layered over [Default],
// and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Stream.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("stream.sample_rate %d must be positive", cfg.Stream.SampleRate))
	}
	switch cfg.Stream.Encoding {
	case "pcm_s16le", "pcm_mulaw":
	default:
		errs = append(errs, fmt.Errorf("stream.encoding %q is invalid; valid values: pcm_s16le, pcm_mulaw", cfg.Stream.Encoding))
	}
	switch cfg.Stream.SpeechModel {
	case "universal-streaming-english", "universal-streaming-multilingual":
	default:
		errs = append(errs, fmt.Errorf("stream.speech_model %q is invalid; valid values: universal-streaming-english, universal-streaming-multilingual", cfg.Stream.SpeechModel))
	}
	if cfg.Stream.LanguageDetection && cfg.Stream.SpeechModel != "universal-streaming-multilingual" {
		errs = append(errs, fmt.Errorf("stream.language_detection requires the multilingual speech model"))
	}
	if t := cfg.Stream.EndOfTurnConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("stream.end_of_turn_confidence_threshold %.2f is out of range [0, 1]", t))
	}
	if cfg.Stream.MinEndOfTurnSilenceMs < 0 {
		errs = append(errs, fmt.Errorf("stream.min_end_of_turn_silence_ms must not be negative"))
	}
	if cfg.Stream.MaxTurnSilenceMs < 0 {
		errs = append(errs, fmt.Errorf("stream.max_turn_silence_ms must not be negative"))
	}

	if cfg.LLM.Model == "" {
		errs = append(errs, fmt.Errorf("llm.model is required"))
	}
	if cfg.LLM.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_seconds must not be negative"))
	}

	if cfg.Boost.WordThreshold < 0 {
		errs = append(errs, fmt.Errorf("boost.word_threshold must not be negative"))
	}
	if cfg.Boost.MaxKeyterms <= 0 {
		errs = append(errs, fmt.Errorf("boost.max_keyterms %d must be positive", cfg.Boost.MaxKeyterms))
	}

	return errors.Join(errs...)
}
