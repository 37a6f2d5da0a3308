// Package interview runs one screening interview: greeting, the fixed question
// list with validated answers, an open question-and-answer phase and the
// closing summary and export.
package interview

import (
	"context"
	"errors"
	"fmt"

	"github.com/ent0n29/screener/internal/export"
	"github.com/ent0n29/screener/internal/judge"
)

var (
	ErrAlreadyRunning   = errors.New("interview already running")
	ErrJudgeUnavailable = errors.New("judge unavailable")
	errRecordOrder      = errors.New("answer recorded out of question order")
)

// Question is an interview prompt. Its text is its identity.
type Question string

// DefaultQuestions is the built-in script.
var DefaultQuestions = []Question{
	"What is your full name and background?",
	"Why are you interested in joining the program?",
	"What's your experience with data science or AI?",
	"What are your short-term and long-term goals?",
	"Are you ready to start immediately? If not, when?",
}

// State is a step of the interview state machine.
type State int

const (
	StateIdle State = iota
	StateGreeting
	StateAskingQuestion
	StateValidatingAnswer
	StateQAOpen
	StateQAEvaluating
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGreeting:
		return "greeting"
	case StateAskingQuestion:
		return "asking_question"
	case StateValidatingAnswer:
		return "validating_answer"
	case StateQAOpen:
		return "qa_open"
	case StateQAEvaluating:
		return "qa_evaluating"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Entry is the final answer for one question. Answer holds the accepted text
// or the exhausted placeholder.
type Entry struct {
	Question  Question `json:"question"`
	Answer    string   `json:"answer"`
	Accepted  bool     `json:"accepted"`
	Attempts  int      `json:"attempts"`
	LastHeard string   `json:"last_heard,omitempty"`
}

// Record holds one entry per question, filled strictly in question order.
type Record struct {
	questions []Question
	entries   []Entry
}

func NewRecord(questions []Question) *Record {
	qs := make([]Question, len(questions))
	copy(qs, questions)
	return &Record{questions: qs}
}

// Set stores the entry for the next unanswered question. Entries are never
// overwritten.
func (r *Record) Set(e Entry) error {
	next := len(r.entries)
	if next >= len(r.questions) {
		return fmt.Errorf("%w: all %d questions already answered", errRecordOrder, len(r.questions))
	}
	if r.questions[next] != e.Question {
		return fmt.Errorf("%w: got %q, next is %q", errRecordOrder, e.Question, r.questions[next])
	}
	r.entries = append(r.entries, e)
	return nil
}

// Entries returns the entries recorded so far in question order.
func (r *Record) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Record) Answers() map[Question]string {
	out := make(map[Question]string, len(r.entries))
	for _, e := range r.entries {
		out[e.Question] = e.Answer
	}
	return out
}

func (r *Record) Len() int { return len(r.entries) }

func (r *Record) Complete() bool { return len(r.entries) == len(r.questions) }

// QAExchange is one candidate question from the open phase. BotAnswer is nil
// when no FAQ was available.
type QAExchange struct {
	UserQuestion string  `json:"user_question"`
	BotAnswer    *string `json:"bot_answer"`
}

// Result is what a run leaves behind. On a fatal judge error it holds
// whatever was gathered before the failure.
type Result struct {
	SessionID string
	Record    *Record
	Exchanges []QAExchange
	Summary   string
	Export    export.Outcome
	Cancelled bool
}

// Speech speaks to and listens to the candidate. Listen returns false on
// silence, timeout, backend failure or when stop fires with nothing heard.
type Speech interface {
	Speak(ctx context.Context, text string) error
	Listen(ctx context.Context, stop <-chan struct{}) (string, bool)
}

// Judge makes the model-backed decisions of an interview.
type Judge interface {
	Validate(ctx context.Context, question, answer string) (judge.Verdict, error)
	DetectNoQuestion(ctx context.Context, text string) (bool, error)
	AnswerFAQ(ctx context.Context, faq, question string) (string, error)
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Sink records transcript turns.
type Sink interface {
	Append(ctx context.Context, speaker, text string) error
}

// Exporter persists the end-of-interview artifacts.
type Exporter interface {
	Export(ctx context.Context, transcript, summary string) (export.Outcome, error)
}

// Observer receives counters for answer attempts and finished questions.
type Observer interface {
	AttemptFinished(outcome string)
	QuestionFinished(outcome string)
}

// Attempt and question outcomes reported to an Observer.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeNoSpeech  = "no_speech"
	OutcomeExhausted = "exhausted"
)

type nopObserver struct{}

func (nopObserver) AttemptFinished(string)  {}
func (nopObserver) QuestionFinished(string) {}
