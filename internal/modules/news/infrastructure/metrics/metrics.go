package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newspulse"

// Metrics 服务指标，每个实例持有独立的 Registry
type Metrics struct {
	registry *prometheus.Registry

	ChatRequests     *prometheus.CounterVec
	RetrievalDegrade *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	IngestPassages   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ChatRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_requests_total",
				Help:      "Chat requests by outcome (responded, client_error, generation_failed).",
			},
			[]string{"outcome"},
		),
		RetrievalDegrade: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_degraded_total",
				Help:      "Non-fatal failures that degraded a chat request, by stage.",
			},
			[]string{"stage"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chat_stage_seconds",
				Help:      "Time spent in each chat stage.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		IngestPassages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_passages_total",
				Help:      "Ingested passages by result (indexed, skipped, failed).",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(
		m.ChatRequests,
		m.RetrievalDegrade,
		m.StageDuration,
		m.IngestPassages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 供测试读取
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// 以下方法允许 nil 接收者，未启用指标时调用方无需判空

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) Degraded(stage string) {
	if m == nil {
		return
	}
	m.RetrievalDegrade.WithLabelValues(stage).Inc()
}

func (m *Metrics) ChatOutcome(outcome string) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Ingested(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IngestPassages.WithLabelValues(result).Add(float64(n))
}
