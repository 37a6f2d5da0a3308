package voice

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
)

// MockProvider stands in for a speech backend in development. Transcription
// reports a fixed answer once any audio was pushed and a commit arrives;
// synthesis echoes the text bytes back as "audio".
type MockProvider struct {
	Answer string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{Answer: "This is a simulated answer from the candidate."}
}

func (p *MockProvider) StartSession(_ context.Context, _ string) (STTSession, <-chan STTEvent, error) {
	events := make(chan STTEvent, 16)
	return &mockSTTSession{answer: p.Answer, events: events}, events, nil
}

func (p *MockProvider) StartStream(_ context.Context, _, _ string, _ TTSSettings) (TTSStream, error) {
	return &mockTTSStream{events: make(chan TTSEvent, 16)}, nil
}

type mockSTTSession struct {
	mu       sync.Mutex
	answer   string
	events   chan STTEvent
	gotAudio bool
	closed   bool
}

func (s *mockSTTSession) SendAudioChunk(_ context.Context, audioBase64 string, _ int, commit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if audioBase64 != "" {
		s.gotAudio = true
		s.emit(STTEvent{Type: STTEventPartial, Text: "..."})
	}
	if commit {
		text := ""
		if s.gotAudio {
			text = s.answer
		}
		s.gotAudio = false
		s.emit(STTEvent{Type: STTEventCommitted, Text: text})
	}
	return nil
}

// emit drops events when nobody is draining the channel.
func (s *mockSTTSession) emit(ev STTEvent) {
	select {
	case s.events <- ev:
	default:
	}
}

func (s *mockSTTSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

type mockTTSStream struct {
	mu     sync.Mutex
	events chan TTSEvent
	closed bool
}

func (s *mockTTSStream) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || strings.TrimSpace(text) == "" {
		return nil
	}
	s.events <- TTSEvent{
		Type:        TTSEventAudio,
		AudioBase64: base64.StdEncoding.EncodeToString([]byte(text)),
		Format:      "mock_text_bytes",
	}
	return nil
}

func (s *mockTTSStream) CloseInput(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- TTSEvent{Type: TTSEventFinal}
	}
	return nil
}

func (s *mockTTSStream) Events() <-chan TTSEvent { return s.events }

func (s *mockTTSStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
