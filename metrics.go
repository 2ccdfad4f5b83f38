package main

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics счётчики бота на отдельном реестре
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	sends         *prometheus.CounterVec
	recognitions  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tgmediabot",
			Name:      "requests_total",
			Help:      "Incoming updates by kind.",
		}, []string{"kind"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tgmediabot",
			Name:      "fetch_total",
			Help:      "Media fetches by mode and result.",
		}, []string{"mode", "result"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tgmediabot",
			Name:      "send_total",
			Help:      "Outbound files by result.",
		}, []string{"result"}),
		recognitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tgmediabot",
			Name:      "recognitions_total",
			Help:      "Song recognition attempts by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tgmediabot",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent in the extraction tool.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.fetches, m.sends, m.recognitions, m.fetchDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Request(kind string) { m.requests.WithLabelValues(kind).Inc() }

func (m *Metrics) Fetch(mode Mode, err error, seconds float64) {
	m.fetches.WithLabelValues(string(mode), resultLabel(err)).Inc()
	m.fetchDuration.WithLabelValues(string(mode)).Observe(seconds)
}

func (m *Metrics) Send(err error) { m.sends.WithLabelValues(resultLabel(err)).Inc() }

func (m *Metrics) Recognition(err error) {
	label := resultLabel(err)
	if errors.Is(err, ErrNoMatch) {
		label = "no_match"
	}
	m.recognitions.WithLabelValues(label).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
