package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry groups all Prometheus instruments used by the service.
type Telemetry struct {
	PipelinesStarted  prometheus.Counter
	PipelinesFinished *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	EventsPublished   prometheus.Counter
	ActiveRuns        prometheus.Gauge
	StreamConnections prometheus.Gauge
	SessionsReaped    prometheus.Counter
	LLMTokens         *prometheus.CounterVec
}

func New(namespace string) *Telemetry {
	return &Telemetry{
		PipelinesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipelines_started_total",
			Help:      "Pipelines admitted for execution.",
		}),
		PipelinesFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipelines_finished_total",
			Help:      "Pipelines reaching a terminal state, by outcome.",
		}, []string{"outcome"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per editorial stage.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"stage"}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Progress events pushed to user queues.",
		}),
		ActiveRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Pipelines currently executing.",
		}),
		StreamConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connections",
			Help:      "Open SSE connections.",
		}),
		SessionsReaped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Idle sessions evicted by the reaper.",
		}),
		LLMTokens: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "LLM token usage by stage and direction.",
		}, []string{"stage", "direction"}),
	}
}

func (t *Telemetry) ObserveStage(stage string, d time.Duration, tokensIn, tokensOut int64) {
	t.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	t.LLMTokens.WithLabelValues(stage, "in").Add(float64(tokensIn))
	t.LLMTokens.WithLabelValues(stage, "out").Add(float64(tokensOut))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
