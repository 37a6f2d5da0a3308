package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newElevenLabsServer(t *testing.T, handle func(r *http.Request, conn *websocket.Conn)) *ElevenLabsProvider {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "secret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(r, conn)
	}))
	t.Cleanup(srv.Close)
	return NewElevenLabsProvider(ElevenLabsConfig{
		APIKey:    "secret",
		WSBaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
}

func TestElevenLabsSTTSessionEvents(t *testing.T) {
	p := newElevenLabsServer(t, func(r *http.Request, conn *websocket.Conn) {
		if r.URL.Path != "/v1/speech-to-text/realtime" || r.URL.Query().Get("model_id") != defaultSTTModel {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		var chunk sttAudioMessage
		if err := conn.ReadJSON(&chunk); err != nil {
			return
		}
		if chunk.MessageType != "input_audio_chunk" || !chunk.Commit || chunk.SampleRate != 16000 {
			t.Errorf("chunk = %+v", chunk)
		}
		_ = conn.WriteJSON(map[string]any{"message_type": "session_started"})
		_ = conn.WriteJSON(map[string]any{"message_type": "partial_transcript", "text": "I stud"})
		_ = conn.WriteJSON(map[string]any{"message_type": "committed_transcript", "text": "I studied math"})
		_ = conn.WriteJSON(map[string]any{"message_type": "rate_limited", "error": "slow down"})
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess, events, err := p.StartSession(ctx, "s1")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	defer sess.Close()
	if err := sess.SendAudioChunk(ctx, "AAAA", 0, true); err != nil {
		t.Fatalf("SendAudioChunk() error = %v", err)
	}

	want := []STTEvent{
		{Type: STTEventPartial, Text: "I stud"},
		{Type: STTEventCommitted, Text: "I studied math"},
		{Type: STTEventError, Code: "rate_limited", Detail: "slow down", Retryable: true},
	}
	for i, w := range want {
		select {
		case got := <-events:
			if got != w {
				t.Fatalf("event %d = %+v, want %+v", i, got, w)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestElevenLabsTTSStream(t *testing.T) {
	p := newElevenLabsServer(t, func(r *http.Request, conn *websocket.Conn) {
		if !strings.HasSuffix(r.URL.Path, "/v1/text-to-speech/voice-1/stream-input") {
			t.Errorf("path = %s", r.URL.Path)
		}
		var open ttsTextMessage
		if err := conn.ReadJSON(&open); err != nil {
			return
		}
		if open.VoiceSettings == nil || open.VoiceSettings.Speed != 1.2 {
			t.Errorf("open message = %+v", open)
		}
		var text ttsTextMessage
		if err := conn.ReadJSON(&text); err != nil {
			return
		}
		var flush ttsTextMessage
		if err := conn.ReadJSON(&flush); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"audio": "QUJD"})
		_ = conn.WriteJSON(map[string]any{"isFinal": true})
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := p.StartStream(ctx, "voice-1", "", TTSSettings{Speed: 3})
	if err != nil {
		t.Fatalf("StartStream() error = %v", err)
	}
	defer stream.Close()
	if err := stream.SendText(ctx, "Hello "); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if err := stream.CloseInput(ctx); err != nil {
		t.Fatalf("CloseInput() error = %v", err)
	}

	ev := <-stream.Events()
	if ev.Type != TTSEventAudio || ev.AudioBase64 != "QUJD" {
		t.Fatalf("first event = %+v", ev)
	}
	if ev := <-stream.Events(); ev.Type != TTSEventFinal {
		t.Fatalf("second event = %+v, want final", ev)
	}
}

func TestElevenLabsRequiresVoiceID(t *testing.T) {
	p := NewElevenLabsProvider(ElevenLabsConfig{APIKey: "k"})
	if _, err := p.StartStream(context.Background(), " ", "", TTSSettings{}); err == nil {
		t.Fatalf("StartStream() without voice id succeeded")
	}
}
