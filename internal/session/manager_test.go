package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestManagerAllowsOneActiveInterview(t *testing.T) {
	m := NewManager(time.Minute)
	s, err := m.Begin("ws", func() {})
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if s.ID == "" || s.Status != StatusRunning {
		t.Fatalf("Begin() = %+v", s)
	}
	if _, err := m.Begin("http", func() {}); !errors.Is(err, ErrActive) {
		t.Fatalf("second Begin() error = %v, want ErrActive", err)
	}
	if active, ok := m.Active(); !ok || active.ID != s.ID {
		t.Fatalf("Active() = %+v, %v", active, ok)
	}

	done, err := m.Finish(s.ID, StatusFinished, nil)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if done.Status != StatusFinished || done.EndedAt == nil {
		t.Fatalf("Finish() = %+v", done)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
	if _, err := m.Begin("http", func() {}); err != nil {
		t.Fatalf("Begin() after Finish error = %v", err)
	}
}

func TestManagerEndCancelsAndStopForwards(t *testing.T) {
	m := NewManager(time.Minute)
	var cancelled, stopped atomic.Int32
	s, err := m.Begin("ws", func() { cancelled.Add(1) })
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := m.SetStopper(s.ID, func() { stopped.Add(1) }); err != nil {
		t.Fatalf("SetStopper() error = %v", err)
	}
	if err := m.StopListening(s.ID); err != nil {
		t.Fatalf("StopListening() error = %v", err)
	}
	if err := m.SetState(s.ID, "qa_open"); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if cancelled.Load() != 1 || stopped.Load() != 1 {
		t.Fatalf("cancelled = %d, stopped = %d", cancelled.Load(), stopped.Load())
	}
	got, _ := m.Get(s.ID)
	if got.State != "qa_open" || got.Status != StatusRunning {
		t.Fatalf("Get() = %+v, want running until finished", got)
	}

	if _, err := m.Finish(s.ID, StatusCancelled, nil); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if err := m.StopListening(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("StopListening() after finish error = %v, want ErrNotFound", err)
	}
}

func TestManagerUnknownSession(t *testing.T) {
	m := NewManager(time.Minute)
	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := m.End("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("End() error = %v", err)
	}
	if err := m.SetState("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetState() error = %v", err)
	}
}

func TestManagerFinishRecordsError(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.Begin("cli", nil)
	done, err := m.Finish(s.ID, StatusFailed, errors.New("judge unavailable"))
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if done.Error != "judge unavailable" || done.Status != StatusFailed {
		t.Fatalf("Finish() = %+v", done)
	}
}

func TestManagerJanitorCancelsIdleInterview(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	cancelled := make(chan struct{})
	s, err := m.Begin("ws", func() { close(cancelled) })
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	expired := make(chan Session, 1)
	m.SetExpireHook(func(s Session) { expired <- s })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("janitor did not cancel idle interview")
	}
	select {
	case got := <-expired:
		if got.ID != s.ID {
			t.Fatalf("expired = %q, want %q", got.ID, s.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expire hook not called")
	}
}

func TestManagerForgetsOldestEndedSessions(t *testing.T) {
	m := NewManager(time.Minute)
	m.SetRetention(2)

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := m.Begin("http", func() {})
		if err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		if _, err := m.Finish(s.ID, StatusFinished, nil); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		ids = append(ids, s.ID)
	}
	// a repeated Finish must not count twice
	if _, err := m.Finish(ids[2], StatusFinished, nil); err != nil {
		t.Fatalf("repeat Finish() error = %v", err)
	}

	if _, err := m.Get(ids[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(oldest) error = %v, want ErrNotFound", err)
	}
	for _, id := range ids[1:] {
		if _, err := m.Get(id); err != nil {
			t.Fatalf("Get(%s) error = %v", id, err)
		}
	}

	active, err := m.Begin("ws", func() {})
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	m.SetRetention(1)
	if _, err := m.Get(active.ID); err != nil {
		t.Fatalf("running session pruned: %v", err)
	}
	if _, err := m.Get(ids[1]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(%s) error = %v, want ErrNotFound", ids[1], err)
	}
}
