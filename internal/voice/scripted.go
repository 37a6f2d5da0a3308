package voice

import (
	"context"
	"strings"
	"sync"
)

// ScriptedClosing is heard once the scripted answers run out, so the open
// question round ends instead of waiting forever.
const ScriptedClosing = "no questions"

// Scripted replays a fixed list of answers. It drives headless runs started
// over HTTP. An empty answer is heard as silence.
type Scripted struct {
	mu      sync.Mutex
	answers []string
	next    int
	spoken  []string
}

func NewScripted(answers []string) *Scripted {
	return &Scripted{answers: append([]string(nil), answers...)}
}

func (s *Scripted) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	return nil
}

func (s *Scripted) Listen(ctx context.Context, _ <-chan struct{}) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.answers) {
		return ScriptedClosing, true
	}
	text := strings.TrimSpace(s.answers[s.next])
	s.next++
	return text, text != ""
}

// Spoken returns every line passed to Speak so far.
func (s *Scripted) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}
