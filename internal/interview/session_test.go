package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ent0n29/screener/internal/export"
	"github.com/ent0n29/screener/internal/judge"
	"github.com/ent0n29/screener/internal/policy"
	"github.com/ent0n29/screener/internal/transcript"
)

const finalWords = "no questions"

type listenStep struct {
	text     string
	heard    bool
	cancel   bool
	block    bool
	waitStop bool
}

func said(text string) listenStep { return listenStep{text: text, heard: true} }

var silence = listenStep{}

type fakeSpeech struct {
	mu         sync.Mutex
	steps      []listenStep
	spoken     []string
	cancel     context.CancelFunc
	listening  chan struct{}
	pendingLen []int
}

func (f *fakeSpeech) Speak(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeSpeech) Listen(ctx context.Context, stop <-chan struct{}) (string, bool) {
	f.mu.Lock()
	f.pendingLen = append(f.pendingLen, len(stop))
	step := listenStep{text: finalWords, heard: true}
	if len(f.steps) > 0 {
		step = f.steps[0]
		f.steps = f.steps[1:]
	}
	cancel := f.cancel
	f.mu.Unlock()

	if f.listening != nil {
		f.listening <- struct{}{}
	}
	if step.cancel && cancel != nil {
		cancel()
	}
	if step.block {
		<-ctx.Done()
		return "", false
	}
	if step.waitStop {
		select {
		case <-stop:
			return step.text, true
		case <-ctx.Done():
			return "", false
		}
	}
	return step.text, step.heard
}

func (f *fakeSpeech) Spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func (f *fakeSpeech) count(text string) int {
	n := 0
	for _, s := range f.Spoken() {
		if s == text {
			n++
		}
	}
	return n
}

type fakeJudge struct {
	mu           sync.Mutex
	verdicts     []string
	intents      map[string]string
	faqAnswer    string
	validateErr  error
	summarizeErr error
	validated    []string
	summarized   []string
}

func (f *fakeJudge) Validate(_ context.Context, _, answer string) (judge.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, answer)
	if f.validateErr != nil {
		return judge.Verdict{}, f.validateErr
	}
	raw := "yes"
	if len(f.verdicts) > 0 {
		raw = f.verdicts[0]
		f.verdicts = f.verdicts[1:]
	}
	return judge.ParseVerdict(raw), nil
}

func (f *fakeJudge) DetectNoQuestion(_ context.Context, text string) (bool, error) {
	raw, ok := f.intents[text]
	if !ok {
		raw = "has_question"
		if text == finalWords {
			raw = "no_question"
		}
	}
	return judge.ParseNoQuestionIntent(raw), nil
}

func (f *fakeJudge) AnswerFAQ(_ context.Context, _, _ string) (string, error) {
	return f.faqAnswer, nil
}

func (f *fakeJudge) Summarize(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.summarized = append(f.summarized, text)
	if f.summarizeErr != nil {
		return "", f.summarizeErr
	}
	return "summary", nil
}

type fakeExporter struct {
	calls    int
	text     string
	ctxAlive bool
}

func (f *fakeExporter) Export(ctx context.Context, text, _ string) (export.Outcome, error) {
	f.calls++
	f.text = text
	f.ctxAlive = ctx.Err() == nil
	return export.Parse(`{"Name":"Ada","InterestLevel":"High","NoticePeriod":"Ready now","Background":"Math"}`), nil
}

type harness struct {
	speech   *fakeSpeech
	judge    *fakeJudge
	log      *transcript.Log
	exporter *fakeExporter
	session  *Session
}

func newHarness(t *testing.T, opts Options, steps ...listenStep) *harness {
	t.Helper()
	h := &harness{
		speech:   &fakeSpeech{steps: steps},
		judge:    &fakeJudge{},
		log:      transcript.NewLog(transcript.NewMemoryStore(), policy.Redactor{}),
		exporter: &fakeExporter{},
	}
	if opts.SessionID == "" {
		opts.SessionID = "test-session"
	}
	if err := h.log.Reset(context.Background(), opts.SessionID); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	h.session = New(opts, h.speech, h.judge, h.log, h.exporter)
	return h
}

func (h *harness) userTurns() []string {
	var out []string
	for _, turn := range h.log.Export() {
		if turn.Speaker == transcript.SpeakerUser {
			out = append(out, turn.Text)
		}
	}
	return out
}

func TestRunRecordsEveryQuestionInOrder(t *testing.T) {
	questions := []Question{"Name?", "Why us?", "When can you start?"}
	h := newHarness(t, Options{Questions: questions},
		said("Ada Lovelace"), said("I like engines"), said("next month"))

	res, err := h.session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	entries := res.Record.Entries()
	if len(entries) != len(questions) {
		t.Fatalf("entries = %d, want %d", len(entries), len(questions))
	}
	for i, e := range entries {
		if e.Question != questions[i] {
			t.Fatalf("entries[%d].Question = %q, want %q", i, e.Question, questions[i])
		}
		if !e.Accepted {
			t.Fatalf("entries[%d] not accepted", i)
		}
	}
	if entries[2].Answer != "next month" {
		t.Fatalf("entries[2].Answer = %q", entries[2].Answer)
	}
	if res.Cancelled {
		t.Fatalf("Cancelled = true, want false")
	}
	if h.session.State() != StateDone {
		t.Fatalf("State() = %v, want %v", h.session.State(), StateDone)
	}
	turns := h.log.Export()
	if turns[0].Speaker != transcript.SpeakerBot || turns[0].Text != DefaultUtterances().Greeting {
		t.Fatalf("first turn = %+v, want greeting", turns[0])
	}
	if turns[1].Text != "Name?" || turns[2].Text != "Ada Lovelace" {
		t.Fatalf("turns[1:3] = %+v", turns[1:3])
	}
	if last := turns[len(turns)-1]; last.Text != DefaultUtterances().Closing {
		t.Fatalf("last turn = %+v, want closing", last)
	}
}

func TestSilenceExhaustsQuestionAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, Options{Questions: []Question{"Name?", "Goals?"}},
		silence, silence, silence, silence, said("to build things"))

	res, err := h.session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	entries := res.Record.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	want := "No valid response after 4 attempts: (no speech detected)"
	if entries[0].Answer != want || entries[0].Accepted || entries[0].Attempts != 4 {
		t.Fatalf("entries[0] = %+v, want exhausted placeholder %q", entries[0], want)
	}
	if got := h.speech.count(DefaultUtterances().NoSpeech); got != 4 {
		t.Fatalf("no-speech prompts = %d, want 4", got)
	}
	if len(h.judge.validated) != 1 || h.judge.validated[0] != "to build things" {
		t.Fatalf("validated = %q", h.judge.validated)
	}
	users := h.userTurns()
	if len(users) == 0 || users[0] != "to build things" {
		t.Fatalf("user turns = %q", users)
	}
}

func TestFirstTryAcceptSpeaksNoFeedback(t *testing.T) {
	h := newHarness(t, Options{Questions: []Question{"Name?"}}, said("Ada Lovelace"))

	res, err := h.session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := res.Record.Entries()[0].Attempts; got != 1 {
		t.Fatalf("Attempts = %d, want 1", got)
	}
	for _, line := range h.speech.Spoken() {
		if strings.HasPrefix(line, DefaultUtterances().RejectLead) || line == DefaultUtterances().NoSpeech {
			t.Fatalf("spoke %q on first-try acceptance", line)
		}
	}
}

func TestSilenceThenAnswerUsesThreeAttempts(t *testing.T) {
	h := newHarness(t, Options{Questions: []Question{"What did you study?"}},
		silence, silence, said("I studied math"))

	res, err := h.session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	e := res.Record.Entries()[0]
	if e.Answer != "I studied math" || e.Attempts != 3 || !e.Accepted {
		t.Fatalf("entry = %+v, want accepted %q after 3 attempts", e, "I studied math")
	}
}

func TestRejectionSpeaksFeedbackAndKeepsLastHeard(t *testing.T) {
	h := newHarness(t, Options{Questions: []Question{"Degree?"}, MaxAttempts: 2},
		said("stuff"), said("things"))
	h.judge.verdicts = []string{"No. Tell me about your degree.", "no"}

	res, err := h.session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	wantFeedback := "That doesn't quite answer the question. Tell me about your degree. Please give a more detailed answer."
	if h.speech.count(wantFeedback) != 1 {
		t.Fatalf("spoken = %q, want %q once", h.speech.Spoken(), wantFeedback)
	}
	if h.speech.count("That doesn't quite answer the question. Please give a more detailed answer.") != 1 {
		t.Fatalf("spoken = %q, want bare rejection once", h.speech.Spoken())
	}
	e := res.Record.Entries()[0]
	if e.Answer != "No valid response after 2 attempts: things" || e.LastHeard != "things" {
		t.Fatalf("entry = %+v", e)
	}
	if users := h.userTurns(); len(users) != 1 || users[0] != finalWords {
		t.Fatalf("user turns = %q, want only the closing QA reply", users)
	}
}

func TestQAIntentRequiresExactLabel(t *testing.T) {
	h := newHarness(t, Options{Questions: []Question{"Name?"}},
		said("Ada Lovelace"), said("nothing from me."), said("nope"))
	h.judge.intents = map[string]string{
		"nothing from me.": "no_question.",
		"nope":             "NO_QUESTION",
	}

	res, err := h.session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Exchanges) != 1 || res.Exchanges[0].UserQuestion != "nothing from me." {
		t.Fatalf("exchanges = %+v, want the near miss kept open", res.Exchanges)
	}
	if res.Exchanges[0].BotAnswer != nil {
		t.Fatalf("BotAnswer = %q, want nil without FAQ", *res.Exchanges[0].BotAnswer)
	}
	if h.speech.count(DefaultUtterances().NoFAQSpoken) != 1 {
		t.Fatalf("no-FAQ reply not spoken once: %q", h.speech.Spoken())
	}
	var recorded bool
	for _, turn := range h.log.Export() {
		if turn.Speaker == transcript.SpeakerBot && turn.Text == DefaultUtterances().NoFAQRecorded {
			recorded = true
		}
	}
	if !recorded {
		t.Fatalf("no-FAQ bot turn missing")
	}
}

func TestSummarizeRunsOnceOverAnswersAndExchanges(t *testing.T) {
	answers := []string{"Ada Lovelace", "I like engines", "Ten years", "Lead a team", "Ready now"}
	steps := make([]listenStep, 0, 8)
	for _, a := range answers {
		steps = append(steps, said(a))
	}
	steps = append(steps, said("Is it remote?"), said("What is the salary?"), said(finalWords))

	h := newHarness(t, Options{FAQ: "Remote: yes"}, steps...)
	h.judge.faqAnswer = "The program is remote."

	res, err := h.session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(h.judge.summarized) != 1 {
		t.Fatalf("summarize calls = %d, want 1", len(h.judge.summarized))
	}
	text := h.judge.summarized[0]
	for i, q := range DefaultQuestions {
		if !strings.Contains(text, string(q)+"\n"+answers[i]) {
			t.Fatalf("summary input missing pair %d: %q", i, text)
		}
	}
	for _, q := range []string{"Is it remote?", "What is the salary?"} {
		if !strings.Contains(text, "Candidate question: "+q+"\nAnswer: The program is remote.") {
			t.Fatalf("summary input missing exchange %q: %q", q, text)
		}
	}
	if res.Summary != "summary" || h.exporter.calls != 1 || h.exporter.text != text {
		t.Fatalf("summary = %q, export calls = %d", res.Summary, h.exporter.calls)
	}
	if res.Export.Name() != "Ada" {
		t.Fatalf("Export.Name() = %q", res.Export.Name())
	}
}

func TestCancelDuringQAListenStillSummarizes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, Options{Questions: []Question{"Name?"}},
		said("Ada Lovelace"), listenStep{cancel: true, block: true})
	h.speech.cancel = cancel

	res, err := h.session.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Cancelled {
		t.Fatalf("Cancelled = false, want true")
	}
	if res.Record.Len() != 1 || len(res.Exchanges) != 0 {
		t.Fatalf("record = %d entries, exchanges = %d", res.Record.Len(), len(res.Exchanges))
	}
	if len(h.judge.summarized) != 1 || !strings.Contains(h.judge.summarized[0], "Ada Lovelace") {
		t.Fatalf("summarized = %q", h.judge.summarized)
	}
	if !h.exporter.ctxAlive {
		t.Fatalf("export ran on a cancelled context")
	}
	if h.speech.count(DefaultUtterances().Closing) != 0 {
		t.Fatalf("closing spoken after cancellation")
	}
	if h.session.State() != StateDone {
		t.Fatalf("State() = %v, want done", h.session.State())
	}
}

func TestCancelMidQuestionKeepsEarlierEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, Options{Questions: []Question{"Name?", "Goals?", "Start?"}},
		said("Ada Lovelace"), silence, listenStep{cancel: true, block: true})
	h.speech.cancel = cancel

	res, err := h.session.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Cancelled || res.Record.Len() != 1 {
		t.Fatalf("Cancelled = %v, entries = %d", res.Cancelled, res.Record.Len())
	}
	if len(h.judge.summarized) != 1 {
		t.Fatalf("summarize calls = %d, want 1", len(h.judge.summarized))
	}
}

func TestJudgeFailureIsFatal(t *testing.T) {
	h := newHarness(t, Options{Questions: []Question{"Name?", "Goals?"}}, said("Ada"))
	h.judge.validateErr = judge.ErrUnavailable

	res, err := h.session.Run(context.Background())
	if !errors.Is(err, ErrJudgeUnavailable) || !errors.Is(err, judge.ErrUnavailable) {
		t.Fatalf("Run() error = %v, want ErrJudgeUnavailable wrapping judge.ErrUnavailable", err)
	}
	if len(h.judge.summarized) != 0 || h.exporter.calls != 0 {
		t.Fatalf("finalization ran after a fatal judge error")
	}
	if res.Record.Len() != 0 {
		t.Fatalf("entries = %d, want 0", res.Record.Len())
	}
	turns := h.log.Export()
	if len(turns) != 2 || turns[1].Text != "Name?" {
		t.Fatalf("turns = %+v, want greeting and first question kept", turns)
	}
}

func TestSummaryFailureIsFatal(t *testing.T) {
	h := newHarness(t, Options{Questions: []Question{"Name?"}}, said("Ada"))
	h.judge.summarizeErr = errors.New("timeout")

	res, err := h.session.Run(context.Background())
	if !errors.Is(err, ErrJudgeUnavailable) {
		t.Fatalf("Run() error = %v, want ErrJudgeUnavailable", err)
	}
	if res.Record.Len() != 1 || h.exporter.calls != 0 {
		t.Fatalf("entries = %d, export calls = %d", res.Record.Len(), h.exporter.calls)
	}
}

func TestStopListeningEndsListenAndStaleSignalIsDropped(t *testing.T) {
	h := newHarness(t, Options{Questions: []Question{"Name?"}},
		listenStep{text: "Ada Lovelace", waitStop: true})
	h.speech.listening = make(chan struct{}, 8)

	h.session.StopListening()

	done := make(chan Result, 1)
	go func() {
		res, _ := h.session.Run(context.Background())
		done <- res
	}()

	select {
	case <-h.speech.listening:
	case <-time.After(2 * time.Second):
		t.Fatalf("listen never started")
	}
	h.session.StopListening()

	select {
	case res := <-done:
		if got := res.Record.Entries()[0].Answer; got != "Ada Lovelace" {
			t.Fatalf("answer = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not finish after stop signal")
	}
	if h.speech.pendingLen[0] != 0 {
		t.Fatalf("stale stop signal was not drained before listening")
	}
}

func TestRunRejectsSecondRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, Options{Questions: []Question{"Name?"}}, listenStep{block: true})
	h.speech.listening = make(chan struct{}, 8)

	done := make(chan error, 1)
	go func() {
		_, err := h.session.Run(ctx)
		done <- err
	}()
	<-h.speech.listening

	if _, err := h.session.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
}

func TestOnStateSeesPhasesInOrder(t *testing.T) {
	h := newHarness(t, Options{Questions: []Question{"Name?"}}, said("Ada Lovelace"))
	var states []State
	h.session.OnState(func(s State) { states = append(states, s) })

	if _, err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []State{
		StateGreeting, StateAskingQuestion, StateValidatingAnswer,
		StateQAOpen, StateQAEvaluating, StateFinalizing, StateDone,
	}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestRecordRefusesOverwriteAndDisorder(t *testing.T) {
	r := NewRecord([]Question{"a", "b"})
	if err := r.Set(Entry{Question: "b"}); err == nil {
		t.Fatalf("Set(b) before a succeeded")
	}
	if err := r.Set(Entry{Question: "a", Answer: "1"}); err != nil {
		t.Fatalf("Set(a) error = %v", err)
	}
	if err := r.Set(Entry{Question: "a", Answer: "2"}); err == nil {
		t.Fatalf("Set(a) twice succeeded")
	}
	if got := r.Answers()["a"]; got != "1" {
		t.Fatalf("Answers()[a] = %q, want 1", got)
	}
	if r.Complete() {
		t.Fatalf("Complete() = true with one of two answered")
	}
}

func TestExhaustedPlaceholder(t *testing.T) {
	if got := Exhausted(4, ""); got != "No valid response after 4 attempts: (no speech detected)" {
		t.Fatalf("Exhausted(4, \"\") = %q", got)
	}
	if got := Exhausted(3, "umm"); got != "No valid response after 3 attempts: umm" {
		t.Fatalf("Exhausted(3, umm) = %q", got)
	}
}
