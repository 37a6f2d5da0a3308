package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestLatencyWindowSnapshot(t *testing.T) {
	w := NewLatencyWindow(4)
	for _, ms := range []int{500, 700, 900} {
		w.Observe("validate", time.Duration(ms)*time.Millisecond)
	}
	w.ObserveFailure("summary")

	snap := w.Snapshot()
	if snap.WindowSize != 4 || len(snap.Calls) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	s := snap.Calls[1]
	if s.Call != "validate" || s.Samples != 3 || s.LastMS != 900 || s.P50MS != 700 || s.AvgMS != 700 {
		t.Fatalf("validate = %+v", s)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if f := snap.Calls[0]; f.Call != "summary" || f.Failures != 1 || f.Samples != 0 {
		t.Fatalf("summary = %+v", f)
	}
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	w := NewLatencyWindow(2)
	for _, ms := range []int{100, 200, 300} {
		w.Observe("faq", time.Duration(ms)*time.Millisecond)
	}
	c := w.Snapshot().Calls[0]
	if c.Samples != 2 || c.AvgMS != 250 || c.LastMS != 300 {
		t.Fatalf("faq = %+v", c)
	}
}

func TestMetricsObservers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg, "test")
	m.ObserveJudgeCall("validate", 10*time.Millisecond, nil)
	m.ObserveJudgeCall("validate", 10*time.Millisecond, errors.New("down"))
	m.AttemptFinished("no_speech")
	m.QuestionFinished("exhausted")

	if got := counterValue(t, reg, "test_judge_calls_total", map[string]string{"call": "validate", "result": "error"}); got != 1 {
		t.Fatalf("judge errors = %v, want 1", got)
	}
	if got := counterValue(t, reg, "test_answer_attempts_total", map[string]string{"outcome": "no_speech"}); got != 1 {
		t.Fatalf("no_speech attempts = %v, want 1", got)
	}
	if got := counterValue(t, reg, "test_question_outcomes_total", map[string]string{"outcome": "exhausted"}); got != 1 {
		t.Fatalf("exhausted questions = %v, want 1", got)
	}
	if c := m.Latency.Snapshot().Calls[0]; c.Samples != 1 || c.Failures != 1 {
		t.Fatalf("latency window = %+v", c)
	}
}
