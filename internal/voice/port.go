package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	DefaultListenTimeout = 60 * time.Second
	DefaultStopGrace     = 1500 * time.Millisecond
	DefaultSampleRate    = 16000
)

var errNotListening = errors.New("not listening")

type PortConfig struct {
	SessionID     string
	VoiceID       string
	ModelID       string
	Settings      TTSSettings
	ListenTimeout time.Duration
	StopGrace     time.Duration
	SampleRate    int
}

// Port speaks and listens through a pair of streaming providers. Audio
// captured by the client is pushed in with PushAudio and only reaches the
// backend while a Listen is in progress.
type Port struct {
	stt    STTProvider
	tts    TTSProvider
	cfg    PortConfig
	logger *slog.Logger

	mu     sync.Mutex
	sink   AudioSink
	active STTSession
}

func NewPort(stt STTProvider, tts TTSProvider, cfg PortConfig, logger *slog.Logger) *Port {
	if cfg.ListenTimeout <= 0 {
		cfg.ListenTimeout = DefaultListenTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Port{stt: stt, tts: tts, cfg: cfg, logger: logger}
}

// SetAudioSink routes synthesized audio to sink. A nil sink discards it.
func (p *Port) SetAudioSink(sink AudioSink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// PushAudio forwards one chunk of client audio to the open transcription
// session. Chunks arriving between listens are dropped.
func (p *Port) PushAudio(ctx context.Context, audioBase64 string, sampleRate int) error {
	p.mu.Lock()
	sess := p.active
	p.mu.Unlock()
	if sess == nil {
		return errNotListening
	}
	if sampleRate <= 0 {
		sampleRate = p.cfg.SampleRate
	}
	return sess.SendAudioChunk(ctx, audioBase64, sampleRate, false)
}

// Speak synthesizes text and streams the audio to the sink, returning once
// the backend reports the utterance complete.
func (p *Port) Speak(ctx context.Context, text string) error {
	text = SpeakableText(text)
	if text == "" {
		return nil
	}
	stream, err := p.tts.StartStream(ctx, p.cfg.VoiceID, p.cfg.ModelID, p.cfg.Settings)
	if err != nil {
		return fmt.Errorf("start tts stream: %w", err)
	}
	defer stream.Close()

	if err := stream.SendText(ctx, text+" "); err != nil {
		return fmt.Errorf("send tts text: %w", err)
	}
	if err := stream.CloseInput(ctx); err != nil {
		return fmt.Errorf("flush tts stream: %w", err)
	}

	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-stream.Events():
			if !ok {
				return nil
			}
			switch ev.Type {
			case TTSEventAudio:
				if sink == nil {
					continue
				}
				if err := sink.SendAudio(ctx, ev.AudioBase64, ev.Format); err != nil {
					return fmt.Errorf("deliver tts audio: %w", err)
				}
			case TTSEventFinal:
				return nil
			case TTSEventError:
				return fmt.Errorf("tts error %s: %s", ev.Code, ev.Detail)
			}
		}
	}
}

// Listen opens a transcription session and gathers committed text until the
// stop signal (followed by a final commit and a short grace window), the
// listen timeout or cancellation of ctx. A backend that cannot be started is
// treated as silence.
func (p *Port) Listen(ctx context.Context, stop <-chan struct{}) (string, bool) {
	lctx, cancel := context.WithTimeout(ctx, p.cfg.ListenTimeout)
	defer cancel()

	sess, events, err := p.stt.StartSession(lctx, p.cfg.SessionID)
	if err != nil {
		p.logger.Warn("stt session unavailable", "error", err)
		return "", false
	}
	p.mu.Lock()
	p.active = sess
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.active = nil
		p.mu.Unlock()
		_ = sess.Close()
	}()

	var (
		committed []string
		partial   string
		grace     <-chan time.Time
	)
	result := func() (string, bool) {
		if ctx.Err() != nil {
			return "", false
		}
		text := strings.TrimSpace(strings.Join(committed, " "))
		if text == "" {
			text = strings.TrimSpace(partial)
		}
		return text, text != ""
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return result()
			}
			switch ev.Type {
			case STTEventPartial:
				partial = ev.Text
			case STTEventCommitted:
				if t := strings.TrimSpace(ev.Text); t != "" {
					committed = append(committed, t)
					partial = ""
				}
				if grace != nil {
					return result()
				}
			case STTEventError:
				p.logger.Warn("stt error", "code", ev.Code, "detail", ev.Detail, "retryable", ev.Retryable)
				if !ev.Retryable {
					return result()
				}
			}
		case <-stop:
			stop = nil
			if err := sess.SendAudioChunk(lctx, "", p.cfg.SampleRate, true); err != nil {
				return result()
			}
			grace = time.After(p.cfg.StopGrace)
		case <-grace:
			return result()
		case <-lctx.Done():
			return result()
		}
	}
}
