package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/screener/internal/reliability"
)

const (
	defaultElevenLabsWSURL = "wss://api.elevenlabs.io"
	defaultSTTModel        = "scribe_v1"
	defaultTTSModel        = "eleven_multilingual_v2"
	defaultOutputFormat    = "mp3_44100_128"
)

type ElevenLabsConfig struct {
	APIKey       string
	WSBaseURL    string
	STTModelID   string
	OutputFormat string
}

// ElevenLabsProvider implements both STTProvider and TTSProvider over the
// ElevenLabs realtime websockets.
type ElevenLabsProvider struct {
	cfg    ElevenLabsConfig
	dialer *websocket.Dialer
}

func NewElevenLabsProvider(cfg ElevenLabsConfig) *ElevenLabsProvider {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = defaultElevenLabsWSURL
	}
	if strings.TrimSpace(cfg.STTModelID) == "" {
		cfg.STTModelID = defaultSTTModel
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = defaultOutputFormat
	}
	return &ElevenLabsProvider{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (p *ElevenLabsProvider) endpoint(path string, query url.Values) (string, error) {
	u, err := url.Parse(strings.TrimRight(p.cfg.WSBaseURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("parse elevenlabs url: %w", err)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (p *ElevenLabsProvider) dial(ctx context.Context, target string) (*websocket.Conn, error) {
	headers := http.Header{}
	headers.Set("xi-api-key", p.cfg.APIKey)
	conn, _, err := p.dialer.DialContext(ctx, target, headers)
	return conn, err
}

func (p *ElevenLabsProvider) StartSession(ctx context.Context, _ string) (STTSession, <-chan STTEvent, error) {
	target, err := p.endpoint("/v1/speech-to-text/realtime", url.Values{
		"model_id":        {p.cfg.STTModelID},
		"commit_strategy": {"vad"},
	})
	if err != nil {
		return nil, nil, err
	}
	conn, err := p.dial(ctx, target)
	if err != nil {
		return nil, nil, fmt.Errorf("dial stt websocket: %w", err)
	}

	s := &elevenSTTSession{conn: conn, events: make(chan STTEvent, 64), done: make(chan struct{})}
	go s.readLoop()
	return s, s.events, nil
}

func (p *ElevenLabsProvider) StartStream(ctx context.Context, voiceID, modelID string, settings TTSSettings) (TTSStream, error) {
	if strings.TrimSpace(voiceID) == "" {
		return nil, fmt.Errorf("voice_id is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultTTSModel
	}
	target, err := p.endpoint("/v1/text-to-speech/"+url.PathEscape(voiceID)+"/stream-input", url.Values{
		"model_id":      {modelID},
		"output_format": {p.cfg.OutputFormat},
		"auto_mode":     {"true"},
	})
	if err != nil {
		return nil, err
	}
	conn, err := p.dial(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("dial tts websocket: %w", err)
	}

	s := &elevenTTSStream{conn: conn, events: make(chan TTSEvent, 256), done: make(chan struct{})}
	go s.readLoop()
	// The first message opens the stream and carries the voice settings.
	if err := s.write(ttsTextMessage{Text: " ", VoiceSettings: normalizeSettings(settings)}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open tts stream: %w", err)
	}
	return s, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
}

func normalizeSettings(s TTSSettings) *voiceSettings {
	return &voiceSettings{
		Stability:       clamp(orDefault(s.Stability, 0.5), 0, 1),
		SimilarityBoost: clamp(orDefault(s.SimilarityBoost, 0.8), 0, 1),
		Speed:           clamp(orDefault(s.Speed, 1.0), 0.7, 1.2),
	}
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type sttAudioMessage struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
	Commit      bool   `json:"commit"`
	SampleRate  int    `json:"sample_rate"`
}

type sttServerMessage struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
	Error       string `json:"error"`
}

type elevenSTTSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	events    chan STTEvent
	done      chan struct{}
}

func (s *elevenSTTSession) SendAudioChunk(_ context.Context, audioBase64 string, sampleRate int, commit bool) error {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(sttAudioMessage{
		MessageType: "input_audio_chunk",
		AudioBase64: audioBase64,
		Commit:      commit,
		SampleRate:  sampleRate,
	})
}

func (s *elevenSTTSession) readLoop() {
	defer s.shutdown()
	for {
		var msg sttServerMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				continue
			}
			return
		}
		switch msg.MessageType {
		case "partial_transcript":
			s.emit(STTEvent{Type: STTEventPartial, Text: msg.Text})
		case "committed_transcript", "committed_transcript_with_timestamps":
			s.emit(STTEvent{Type: STTEventCommitted, Text: msg.Text})
		case "", "session_started", "input_audio_chunk":
		default:
			s.emit(STTEvent{
				Type:      STTEventError,
				Code:      msg.MessageType,
				Detail:    msg.Error,
				Retryable: reliability.IsRetryableRealtimeMessageType(msg.MessageType),
			})
		}
	}
}

// emit delivers ev unless the session was closed by its owner.
func (s *elevenSTTSession) emit(ev STTEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *elevenSTTSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *elevenSTTSession) shutdown() {
	_ = s.Close()
	close(s.events)
}

type ttsTextMessage struct {
	Text          string         `json:"text"`
	TryTrigger    bool           `json:"try_trigger_generation,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type ttsServerMessage struct {
	Audio       string `json:"audio"`
	IsFinal     bool   `json:"isFinal"`
	Error       string `json:"error"`
	MessageType string `json:"message_type"`
}

type elevenTTSStream struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	events    chan TTSEvent
	done      chan struct{}
}

func (s *elevenTTSStream) SendText(_ context.Context, text string) error {
	return s.write(ttsTextMessage{Text: text, TryTrigger: true})
}

// CloseInput sends the empty-text message that flushes the stream.
func (s *elevenTTSStream) CloseInput(_ context.Context) error {
	return s.write(ttsTextMessage{Text: ""})
}

func (s *elevenTTSStream) Events() <-chan TTSEvent { return s.events }

func (s *elevenTTSStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *elevenTTSStream) emit(ev TTSEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *elevenTTSStream) write(msg ttsTextMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *elevenTTSStream) readLoop() {
	defer func() {
		_ = s.Close()
		close(s.events)
	}()
	for {
		var msg ttsServerMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				continue
			}
			return
		}
		if msg.Audio != "" {
			s.emit(TTSEvent{Type: TTSEventAudio, AudioBase64: msg.Audio, Format: "base64_audio"})
		}
		if msg.Error != "" {
			s.emit(TTSEvent{Type: TTSEventError, Code: msg.MessageType, Detail: msg.Error})
		}
		if msg.IsFinal {
			s.emit(TTSEvent{Type: TTSEventFinal})
		}
	}
}
