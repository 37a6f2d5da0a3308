package transcript

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ent0n29/screener/internal/policy"
)

// Log is the append-only transcript of a single interview run. Turns are kept
// in memory in arrival order and written through to a Store as they arrive.
type Log struct {
	mu        sync.RWMutex
	turns     []Turn
	sessionID string
	store     Store
	redactor  policy.Redactor
	now       func() time.Time
}

// NewLog builds a Log writing through to store. A nil store keeps rows in memory only.
func NewLog(store Store, redactor policy.Redactor) *Log {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Log{
		store:    store,
		redactor: redactor,
		now:      time.Now,
	}
}

// Reset clears prior turns and binds the log to sessionID. Calling it twice is harmless.
func (l *Log) Reset(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = nil
	l.sessionID = sessionID
	if err := l.store.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("reset transcript store: %w", err)
	}
	return nil
}

// Append records a turn stamped with the current time. The in-memory turn is
// kept even when the store write fails so the interview can carry on.
func (l *Log) Append(ctx context.Context, speaker, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	turn := Turn{Time: l.now(), Speaker: speaker, Text: text}
	l.turns = append(l.turns, turn)

	persisted := turn
	persisted.Text = l.redactor.Apply(speaker, text)
	if err := l.store.Append(ctx, l.sessionID, persisted); err != nil {
		return fmt.Errorf("persist turn: %w", err)
	}
	return nil
}

// Export returns the turns recorded so far in arrival order.
func (l *Log) Export() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Relabel rewrites the speaker of every turn equal to from. Re-running it with
// the same arguments changes nothing.
func (l *Log) Relabel(ctx context.Context, from, to string) error {
	to = strings.TrimSpace(to)
	if to == "" || to == from {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.turns {
		if l.turns[i].Speaker == from {
			l.turns[i].Speaker = to
		}
	}
	if err := l.store.Relabel(ctx, l.sessionID, from, to); err != nil {
		return fmt.Errorf("relabel transcript store: %w", err)
	}
	return nil
}

// SessionID reports the session the log is currently bound to.
func (l *Log) SessionID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionID
}

// Close releases the underlying store.
func (l *Log) Close() error {
	return l.store.Close()
}
