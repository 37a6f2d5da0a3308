package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	AnswerAttempts   *prometheus.CounterVec
	QuestionOutcomes *prometheus.CounterVec
	JudgeCalls       *prometheus.CounterVec
	JudgeLatency     *prometheus.HistogramVec
	WSMessages       *prometheus.CounterVec

	Latency *LatencyWindow
}

// NewMetrics registers instruments with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_interviews",
			Help:      "Number of interviews in progress.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interview_events_total",
			Help:      "Interview lifecycle events by type.",
		}, []string{"event"}),
		AnswerAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_attempts_total",
			Help:      "Answer attempts by outcome.",
		}, []string{"outcome"}),
		QuestionOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "question_outcomes_total",
			Help:      "Finished questions by outcome.",
		}, []string{"outcome"}),
		JudgeCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judge_calls_total",
			Help:      "Language model calls by call and result.",
		}, []string{"call", "result"}),
		JudgeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judge_latency_ms",
			Help:      "Language model call latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		}, []string{"call"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		Latency: NewLatencyWindow(128),
	}
}

// ObserveJudgeCall matches the judge call observer signature.
func (m *Metrics) ObserveJudgeCall(call string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		m.Latency.ObserveFailure(call)
	} else {
		m.Latency.Observe(call, elapsed)
	}
	m.JudgeCalls.WithLabelValues(call, result).Inc()
	m.JudgeLatency.WithLabelValues(call).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) AttemptFinished(outcome string) {
	m.AnswerAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QuestionFinished(outcome string) {
	m.QuestionOutcomes.WithLabelValues(outcome).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
