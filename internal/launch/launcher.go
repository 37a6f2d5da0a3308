// Package launch starts interview runs against the shared session slot,
// transcript and exporter.
package launch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ent0n29/screener/internal/config"
	"github.com/ent0n29/screener/internal/export"
	"github.com/ent0n29/screener/internal/interview"
	"github.com/ent0n29/screener/internal/observability"
	"github.com/ent0n29/screener/internal/session"
	"github.com/ent0n29/screener/internal/transcript"
)

// Hooks let a driver follow a run. Both are optional and called from the
// interview goroutine.
type Hooks struct {
	OnState  func(id string, state interview.State)
	OnFinish func(id string, res interview.Result, err error)
}

// Outcome is the stored end state of a finished run.
type Outcome struct {
	Result interview.Result
	Err    error
}

// Launcher claims the single interview slot, prepares the transcript and
// runs an interview over whatever speech port the driver supplies.
type Launcher struct {
	sessions        *session.Manager
	judge           interview.Judge
	extractor       export.Extractor
	log             *transcript.Log
	writer          export.Writer
	script          config.Script
	metrics         *observability.Metrics
	finalizeTimeout time.Duration
	logger          *slog.Logger

	mu       sync.Mutex
	outcomes map[string]Outcome
}

type Deps struct {
	Sessions        *session.Manager
	Judge           interview.Judge
	Extractor       export.Extractor
	Log             *transcript.Log
	Writer          export.Writer
	Script          config.Script
	Metrics         *observability.Metrics
	FinalizeTimeout time.Duration
	Logger          *slog.Logger
}

func New(d Deps) *Launcher {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Launcher{
		sessions:        d.Sessions,
		judge:           d.Judge,
		extractor:       d.Extractor,
		log:             d.Log,
		writer:          d.Writer,
		script:          d.Script,
		metrics:         d.Metrics,
		finalizeTimeout: d.FinalizeTimeout,
		logger:          d.Logger,
		outcomes:        make(map[string]Outcome),
	}
}

// Start begins an interview in the background and returns as soon as the
// slot is claimed. session.ErrActive is returned while another run is live.
func (l *Launcher) Start(parent context.Context, origin string, speech interview.Speech, hooks Hooks) (session.Session, error) {
	ctx, cancel := context.WithCancel(parent)
	sess, err := l.sessions.Begin(origin, cancel)
	if err != nil {
		cancel()
		return session.Session{}, err
	}
	go func() {
		defer cancel()
		_, _ = l.run(ctx, sess, speech, hooks)
	}()
	return sess, nil
}

// Run is Start without the goroutine: it blocks until the interview ends.
func (l *Launcher) Run(parent context.Context, origin string, speech interview.Speech, hooks Hooks) (interview.Result, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	sess, err := l.sessions.Begin(origin, cancel)
	if err != nil {
		return interview.Result{}, err
	}
	return l.run(ctx, sess, speech, hooks)
}

func (l *Launcher) run(ctx context.Context, sess session.Session, speech interview.Speech, hooks Hooks) (interview.Result, error) {
	logger := l.logger.With("session_id", sess.ID, "origin", sess.Origin)
	l.observeEvent("started")

	iv := interview.New(interview.Options{
		SessionID:       sess.ID,
		Questions:       l.script.InterviewQuestions(),
		MaxAttempts:     l.script.MaxAttempts,
		FAQ:             l.script.FAQ,
		Utterances:      l.script.Utterances,
		FinalizeTimeout: l.finalizeTimeout,
		Logger:          l.logger,
		Observer:        l.observer(),
	}, speech, l.judge, l.log, export.NewExporter(l.extractor, l.writer, l.log, transcript.SpeakerUser, logger))

	// before the transcript reset so early stop requests reach the interview
	_ = l.sessions.SetStopper(sess.ID, iv.StopListening)
	iv.OnState(func(st interview.State) {
		_ = l.sessions.SetState(sess.ID, st.String())
		if hooks.OnState != nil {
			hooks.OnState(sess.ID, st)
		}
	})

	if err := l.log.Reset(context.WithoutCancel(ctx), sess.ID); err != nil {
		logger.Warn("transcript reset failed", "error", err)
	}

	res, err := iv.Run(ctx)

	status := session.StatusFinished
	switch {
	case err != nil:
		status = session.StatusFailed
		logger.Error("interview failed", "error", err)
	case res.Cancelled:
		status = session.StatusCancelled
	}
	// stored before the slot is released so readers of a finished session see it
	l.mu.Lock()
	l.outcomes[sess.ID] = Outcome{Result: res, Err: err}
	l.mu.Unlock()

	if _, ferr := l.sessions.Finish(sess.ID, status, err); ferr != nil && !errors.Is(ferr, session.ErrNotFound) {
		logger.Warn("release interview slot failed", "error", ferr)
	}
	l.pruneOutcomes()
	l.observeEvent(string(status))

	if hooks.OnFinish != nil {
		hooks.OnFinish(sess.ID, res, err)
	}
	return res, err
}

// pruneOutcomes drops results of sessions the manager no longer retains.
func (l *Launcher) pruneOutcomes() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.outcomes {
		if _, err := l.sessions.Get(id); errors.Is(err, session.ErrNotFound) {
			delete(l.outcomes, id)
		}
	}
}

// Outcome returns the stored result of a finished run.
func (l *Launcher) Outcome(id string) (Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out, ok := l.outcomes[id]
	return out, ok
}

// Transcript returns the turns of the current or most recent run.
func (l *Launcher) Transcript() (string, []transcript.Turn) {
	return l.log.SessionID(), l.log.Export()
}

func (l *Launcher) observer() interview.Observer {
	if l.metrics == nil {
		return nil
	}
	return l.metrics
}

func (l *Launcher) observeEvent(event string) {
	if l.metrics == nil {
		return
	}
	l.metrics.SessionEvents.WithLabelValues(event).Inc()
	l.metrics.ActiveSessions.Set(float64(l.sessions.ActiveCount()))
}
