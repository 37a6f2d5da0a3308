package protocol

import (
	"errors"
	"testing"
)

func TestParseClientControl(t *testing.T) {
	for _, action := range []string{ActionStartInterview, ActionUserEndTurn, ActionEndCall} {
		msg, err := ParseClientMessage([]byte(`{"type":"client_control","action":"` + action + `"}`))
		if err != nil {
			t.Fatalf("ParseClientMessage(%s) error = %v", action, err)
		}
		ctrl, ok := msg.(ClientControl)
		if !ok || ctrl.Action != action {
			t.Fatalf("ParseClientMessage(%s) = %#v", action, msg)
		}
	}
	if _, err := ParseClientMessage([]byte(`{"type":"client_control","action":"dance"}`)); err == nil {
		t.Fatalf("unknown action accepted")
	}
}

func TestParseClientAudioChunk(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"client_audio_chunk","seq":3,"pcm16_base64":"AAAA","sample_rate":16000}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	chunk, ok := msg.(ClientAudioChunk)
	if !ok || chunk.Seq != 3 || chunk.SampleRate != 16000 {
		t.Fatalf("ParseClientMessage() = %#v", msg)
	}
	if _, err := ParseClientMessage([]byte(`{"type":"client_audio_chunk","pcm16_base64":"","sample_rate":16000}`)); err == nil {
		t.Fatalf("empty audio accepted")
	}
}

func TestParseClientMessageRejectsUnknownAndGarbage(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"bot_speaking"}`)); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("server type error = %v, want ErrUnsupportedType", err)
	}
	if _, err := ParseClientMessage([]byte(`not json`)); err == nil {
		t.Fatalf("garbage accepted")
	}
}
