package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ent0n29/screener/internal/transcript"
)

// Session runs a single interview. It is not reusable concurrently; a second
// Run while one is in flight returns ErrAlreadyRunning.
type Session struct {
	opts     Options
	speech   Speech
	judge    Judge
	sink     Sink
	exporter Exporter
	logger   *slog.Logger

	stop    chan struct{}
	running atomic.Bool

	mu      sync.Mutex
	state   State
	onState []func(State)
}

// New builds a session. exporter may be nil, in which case only the summary
// is produced.
func New(opts Options, speech Speech, j Judge, sink Sink, exporter Exporter) *Session {
	opts = opts.withDefaults()
	return &Session{
		opts:     opts,
		speech:   speech,
		judge:    j,
		sink:     sink,
		exporter: exporter,
		logger:   opts.Logger.With("session_id", opts.SessionID),
		stop:     make(chan struct{}, 1),
	}
}

// StopListening ends the listen in progress, keeping whatever was heard. A
// signal sent while nothing is listening is discarded at the next listen.
func (s *Session) StopListening() {
	select {
	case s.stop <- struct{}{}:
	default:
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnState registers fn to be called on every state change. Hooks run on the
// interview goroutine and must not block.
func (s *Session) OnState(fn func(State)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onState = append(s.onState, fn)
	s.mu.Unlock()
}

// Run drives the interview to completion. Cancelling ctx skips to the
// summary and export, which run on a detached context bounded by the
// finalize timeout, and marks the result cancelled. A judge failure ends the
// run with an error wrapping ErrJudgeUnavailable and the partial result.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	res := Result{SessionID: s.opts.SessionID, Record: NewRecord(s.opts.Questions)}
	s.logger.Info("interview started", "questions", len(s.opts.Questions), "max_attempts", s.opts.MaxAttempts)

	if err := s.converse(ctx, &res); err != nil {
		s.logger.Error("interview aborted", "error", err, "answered", res.Record.Len())
		s.setState(StateDone)
		return res, err
	}
	res.Cancelled = ctx.Err() != nil
	if res.Cancelled {
		s.logger.Info("interview cancelled", "answered", res.Record.Len(), "exchanges", len(res.Exchanges))
	}
	return s.finalize(ctx, res)
}

// converse runs the greeting, the question loop and the open floor. It
// returns nil when ctx is cancelled.
func (s *Session) converse(ctx context.Context, res *Result) error {
	s.setState(StateGreeting)
	s.say(ctx, s.opts.Utterances.Greeting, true)

	for i, q := range s.opts.Questions {
		if ctx.Err() != nil {
			return nil
		}
		entry, done, err := s.ask(ctx, q)
		if err != nil || !done {
			return err
		}
		if err := res.Record.Set(entry); err != nil {
			return err
		}
		s.logger.Info("question finished",
			"question", i+1,
			"accepted", entry.Accepted,
			"attempts", entry.Attempts,
		)
	}
	if ctx.Err() != nil {
		return nil
	}
	return s.openFloor(ctx, res)
}

// ask puts one question to the candidate. done is false when ctx was
// cancelled before the question was settled.
func (s *Session) ask(ctx context.Context, q Question) (entry Entry, done bool, err error) {
	s.setState(StateAskingQuestion)
	s.say(ctx, string(q), true)

	var lastHeard string
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		s.setState(StateAskingQuestion)
		text, ok := s.listen(ctx)
		if ctx.Err() != nil {
			return Entry{}, false, nil
		}
		if !ok {
			s.opts.Observer.AttemptFinished(OutcomeNoSpeech)
			s.logger.Debug("no speech heard", "attempt", attempt)
			s.say(ctx, s.opts.Utterances.NoSpeech, false)
			continue
		}
		lastHeard = text

		s.setState(StateValidatingAnswer)
		verdict, err := s.judge.Validate(ctx, string(q), text)
		if err != nil {
			if ctx.Err() != nil {
				return Entry{}, false, nil
			}
			return Entry{}, false, fmt.Errorf("%w: validate answer: %w", ErrJudgeUnavailable, err)
		}
		if verdict.Accepted() {
			s.opts.Observer.AttemptFinished(OutcomeAccepted)
			s.opts.Observer.QuestionFinished(OutcomeAccepted)
			s.record(ctx, transcript.SpeakerUser, text)
			return Entry{Question: q, Answer: text, Accepted: true, Attempts: attempt, LastHeard: text}, true, nil
		}
		s.opts.Observer.AttemptFinished(OutcomeRejected)
		s.logger.Debug("answer rejected", "attempt", attempt)
		s.say(ctx, s.opts.Utterances.Rejection(verdict.Feedback), false)
	}
	if ctx.Err() != nil {
		return Entry{}, false, nil
	}

	s.opts.Observer.QuestionFinished(OutcomeExhausted)
	return Entry{
		Question:  q,
		Answer:    Exhausted(s.opts.MaxAttempts, lastHeard),
		Attempts:  s.opts.MaxAttempts,
		LastHeard: lastHeard,
	}, true, nil
}

// openFloor lets the candidate ask questions until they say they have none.
func (s *Session) openFloor(ctx context.Context, res *Result) error {
	s.setState(StateQAOpen)
	s.say(ctx, s.opts.Utterances.QAIntro, true)
	hasFAQ := strings.TrimSpace(s.opts.FAQ) != ""

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.setState(StateQAOpen)
		text, ok := s.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !ok {
			s.say(ctx, s.opts.Utterances.NoSpeech, false)
			continue
		}
		s.record(ctx, transcript.SpeakerUser, text)

		s.setState(StateQAEvaluating)
		finished, err := s.judge.DetectNoQuestion(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: detect intent: %w", ErrJudgeUnavailable, err)
		}
		if finished {
			return nil
		}

		exchange := QAExchange{UserQuestion: text}
		if hasFAQ {
			answer, err := s.judge.AnswerFAQ(ctx, s.opts.FAQ, text)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: answer question: %w", ErrJudgeUnavailable, err)
			}
			s.say(ctx, answer, true)
			exchange.BotAnswer = &answer
		} else {
			s.say(ctx, s.opts.Utterances.NoFAQSpoken, false)
			s.record(ctx, transcript.SpeakerBot, s.opts.Utterances.NoFAQRecorded)
		}
		res.Exchanges = append(res.Exchanges, exchange)
	}
}

func (s *Session) finalize(ctx context.Context, res Result) (Result, error) {
	s.setState(StateFinalizing)
	if !res.Cancelled {
		s.say(ctx, s.opts.Utterances.Closing, true)
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FinalizeTimeout)
	defer cancel()

	flat := Flatten(res.Record.Entries(), res.Exchanges)
	summary, err := s.judge.Summarize(fctx, flat)
	if err != nil {
		s.setState(StateDone)
		return res, fmt.Errorf("%w: summarize: %w", ErrJudgeUnavailable, err)
	}
	res.Summary = summary

	if s.exporter != nil {
		outcome, err := s.exporter.Export(fctx, flat, summary)
		if err != nil {
			s.setState(StateDone)
			return res, fmt.Errorf("%w: export: %w", ErrJudgeUnavailable, err)
		}
		res.Export = outcome
	}

	s.setState(StateDone)
	s.logger.Info("interview finished",
		"answered", res.Record.Len(),
		"exchanges", len(res.Exchanges),
		"cancelled", res.Cancelled,
	)
	return res, nil
}

// Flatten renders answers and candidate questions as the text handed to the
// summary and structured-record calls.
func Flatten(entries []Entry, exchanges []QAExchange) string {
	parts := make([]string, 0, len(entries)+len(exchanges))
	for _, e := range entries {
		parts = append(parts, string(e.Question)+"\n"+e.Answer)
	}
	for _, x := range exchanges {
		answer := "(no information available)"
		if x.BotAnswer != nil {
			answer = *x.BotAnswer
		}
		parts = append(parts, "Candidate question: "+x.UserQuestion+"\nAnswer: "+answer)
	}
	return strings.Join(parts, "\n")
}

func (s *Session) listen(ctx context.Context) (string, bool) {
	select {
	case <-s.stop:
	default:
	}
	text, ok := s.speech.Listen(ctx, s.stop)
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		return "", false
	}
	return text, true
}

// say optionally records text as a Bot turn and speaks it. Speech failures
// are logged; the interview carries on.
func (s *Session) say(ctx context.Context, text string, record bool) {
	if record {
		s.record(ctx, transcript.SpeakerBot, text)
	}
	if ctx.Err() != nil {
		return
	}
	if err := s.speech.Speak(ctx, text); err != nil && ctx.Err() == nil {
		s.logger.Warn("speak failed", "error", err)
	}
}

func (s *Session) record(ctx context.Context, speaker, text string) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Append(context.WithoutCancel(ctx), speaker, text); err != nil {
		s.logger.Warn("transcript append failed", "speaker", speaker, "error", err)
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	hooks := make([]func(State), len(s.onState))
	copy(hooks, s.onState)
	s.mu.Unlock()

	s.logger.Debug("state changed", "state", next.String())
	for _, fn := range hooks {
		fn(next)
	}
}
