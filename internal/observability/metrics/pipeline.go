package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records index builds and answered questions.
type PipelineMetrics struct {
	service string

	buildTotal     *prometheus.CounterVec
	buildDuration  *prometheus.HistogramVec
	indexedChunks  prometheus.Gauge
	answerTotal    *prometheus.CounterVec
	answerDuration *prometheus.HistogramVec
	answerSources  prometheus.Histogram
	noContextTotal prometheus.Counter
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	labels := prometheus.Labels{"service": service}

	m := &PipelineMetrics{
		service: service,
		buildTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "index",
				Name:        "builds_total",
				Help:        "Index build attempts by outcome (built, reused, failed).",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "index",
				Name:        "build_duration_seconds",
				Help:        "Index build duration in seconds by outcome.",
				Buckets:     []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		indexedChunks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "index",
				Name:        "chunks",
				Help:        "Number of chunks in the live index.",
				ConstLabels: labels,
			},
		),
		answerTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "rag",
				Name:        "answers_total",
				Help:        "Answered questions by status.",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		answerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "rag",
				Name:        "answer_duration_seconds",
				Help:        "Question answering duration in seconds by status.",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		answerSources: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "rag",
				Name:        "retrieved_chunks",
				Help:        "Distribution of retrieved chunks per successful answer.",
				Buckets:     []float64{0, 1, 2, 3, 4, 6, 8, 12},
				ConstLabels: labels,
			},
		),
		noContextTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "rag",
				Name:        "no_context_total",
				Help:        "Successful answers generated without retrieved context.",
				ConstLabels: labels,
			},
		),
	}

	registerer.MustRegister(
		m.buildTotal,
		m.buildDuration,
		m.indexedChunks,
		m.answerTotal,
		m.answerDuration,
		m.answerSources,
		m.noContextTotal,
	)
	return m
}

func (m *PipelineMetrics) ObserveIndexBuild(outcome string, chunks int, d time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.buildTotal.WithLabelValues(outcome).Inc()
	m.buildDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if outcome != "failed" {
		m.indexedChunks.Set(float64(chunks))
	}
}

func (m *PipelineMetrics) ObserveAnswer(sources int, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.answerTotal.WithLabelValues(status).Inc()
	m.answerDuration.WithLabelValues(status).Observe(d.Seconds())
	if err != nil {
		return
	}
	m.answerSources.Observe(float64(sources))
	if sources == 0 {
		m.noContextTotal.Inc()
	}
}
