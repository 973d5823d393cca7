package assemblyai

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/keybeam/keybeam/pkg/stream"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key, got nil")
	}
	if _, err := New("key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildURL(t *testing.T) {
	t.Parallel()

	p, err := New("key")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		raw, err := p.buildURL(stream.StreamConfig{})
		if err != nil {
			t.Fatalf("buildURL: %v", err)
		}
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse result: %v", err)
		}
		q := u.Query()
		if got := q.Get("sample_rate"); got != "16000" {
			t.Errorf("sample_rate = %q, want 16000", got)
		}
		if got := q.Get("encoding"); got != "pcm_s16le" {
			t.Errorf("encoding = %q, want pcm_s16le", got)
		}
		if got := q.Get("speech_model"); got != "universal-streaming-english" {
			t.Errorf("speech_model = %q", got)
		}
		if q.Has("keyterms_prompt") {
			t.Error("keyterms_prompt should be absent when no keyterms are configured")
		}
	})

	t.Run("full config", func(t *testing.T) {
		t.Parallel()
		raw, err := p.buildURL(stream.StreamConfig{
			SampleRate:                   8000,
			Encoding:                     "pcm_mulaw",
			SpeechModel:                  "universal-streaming-multilingual",
			FormatTurns:                  true,
			LanguageDetection:            true,
			EndOfTurnConfidenceThreshold: 0.4,
			MinEndOfTurnSilence:          400 * time.Millisecond,
			MaxTurnSilence:               1280 * time.Millisecond,
			Keyterms:                     []string{"Siobhan", "Omeprazole"},
		})
		if err != nil {
			t.Fatalf("buildURL: %v", err)
		}
		u, _ := url.Parse(raw)
		q := u.Query()
		if got := q.Get("sample_rate"); got != "8000" {
			t.Errorf("sample_rate = %q, want 8000", got)
		}
		if got := q.Get("format_turns"); got != "true" {
			t.Errorf("format_turns = %q, want true", got)
		}
		if got := q.Get("end_of_turn_confidence_threshold"); got != "0.4" {
			t.Errorf("end_of_turn_confidence_threshold = %q, want 0.4", got)
		}
		if got := q.Get("min_end_of_turn_silence_when_confident"); got != "400" {
			t.Errorf("min_end_of_turn_silence_when_confident = %q, want 400", got)
		}
		if got := q.Get("max_turn_silence"); got != "1280" {
			t.Errorf("max_turn_silence = %q, want 1280", got)
		}

		var terms []string
		if err := json.Unmarshal([]byte(q.Get("keyterms_prompt")), &terms); err != nil {
			t.Fatalf("keyterms_prompt is not a JSON array: %v", err)
		}
		if len(terms) != 2 || terms[0] != "Siobhan" || terms[1] != "Omeprazole" {
			t.Errorf("keyterms_prompt = %v", terms)
		}
	})
}

func TestParseTurn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    stream.TurnEvent
		ignored bool
	}{
		{
			name: "partial turn",
			raw:  `{"type":"Turn","transcript":"hello wor","end_of_turn":false,"turn_is_formatted":false}`,
			want: stream.TurnEvent{Text: "hello wor"},
		},
		{
			name: "final unformatted turn with words",
			raw: `{"type":"Turn","transcript":"hello world","end_of_turn":true,
				"turn_is_formatted":false,"end_of_turn_confidence":0.87,
				"words":[{"text":"hello","start":0,"end":420,"confidence":0.99,"word_is_final":true},
				         {"text":"world","start":440,"end":900,"confidence":0.95,"word_is_final":true}]}`,
			want: stream.TurnEvent{
				Text:       "hello world",
				EndOfTurn:  true,
				Confidence: 0.87,
				Words: []stream.WordDetail{
					{Text: "hello", Start: 0, End: 420 * time.Millisecond, Confidence: 0.99, IsFinal: true},
					{Text: "world", Start: 440 * time.Millisecond, End: 900 * time.Millisecond, Confidence: 0.95, IsFinal: true},
				},
			},
		},
		{
			name: "formatted final turn",
			raw:  `{"type":"Turn","transcript":"Hello, world.","end_of_turn":true,"turn_is_formatted":true}`,
			want: stream.TurnEvent{Text: "Hello, world.", EndOfTurn: true, Formatted: true},
		},
		{
			name:    "empty transcript keepalive",
			raw:     `{"type":"Turn","transcript":"","end_of_turn":false}`,
			ignored: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var sm serverMessage
			if err := json.Unmarshal([]byte(tt.raw), &sm); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			ev, ok := parseTurn(sm)
			if tt.ignored {
				if ok {
					t.Fatalf("expected message to be ignored, got %+v", ev)
				}
				return
			}
			if !ok {
				t.Fatal("expected event, message was ignored")
			}
			if ev.Text != tt.want.Text || ev.EndOfTurn != tt.want.EndOfTurn ||
				ev.Formatted != tt.want.Formatted || ev.Confidence != tt.want.Confidence {
				t.Errorf("event = %+v, want %+v", ev, tt.want)
			}
			if len(ev.Words) != len(tt.want.Words) {
				t.Fatalf("words = %d, want %d", len(ev.Words), len(tt.want.Words))
			}
			for i, w := range ev.Words {
				if w != tt.want.Words[i] {
					t.Errorf("words[%d] = %+v, want %+v", i, w, tt.want.Words[i])
				}
			}
		})
	}
}

func TestUpdateConfigurationEncoding(t *testing.T) {
	t.Parallel()
	msg, err := json.Marshal(updateConfiguration{
		Type:           "UpdateConfiguration",
		KeytermsPrompt: []string{"Niamh", "Kowalczyk"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"UpdateConfiguration","keyterms_prompt":["Niamh","Kowalczyk"]}`
	if string(msg) != want {
		t.Errorf("encoded = %s, want %s", msg, want)
	}
}
