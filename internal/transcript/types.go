// Package transcript keeps the ordered record of who said what during an
// interview and mirrors it into a persistent row store.
package transcript

import (
	"context"
	"time"
)

// Speaker labels used by the interview. After export the User label may be
// rewritten to the candidate's name.
const (
	SpeakerBot  = "Bot"
	SpeakerUser = "User"
)

// Turn is one timestamped utterance.
type Turn struct {
	Time    time.Time `json:"time"`
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
}

// Store persists transcript rows incrementally. Rows are scoped by session so
// database-backed stores can keep several interviews side by side.
type Store interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	Relabel(ctx context.Context, sessionID, from, to string) error
	Reset(ctx context.Context, sessionID string) error
	Close() error
}
