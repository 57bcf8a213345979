package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics registry and the standard meters
// for detection passes and probe attempts.
type Metrics struct {
	Registry       *prometheus.Registry
	DetectDuration *prometheus.HistogramVec
	DetectTotal    *prometheus.CounterVec
	ProbeTotal     *prometheus.CounterVec
	FramesTotal    *prometheus.CounterVec
}

// NewMetrics creates a custom Prometheus registry with the standard
// autovideo metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	detectDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autovideo_detect_duration_seconds",
		Help:    "Duration of detection passes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	detectTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autovideo_detect_total",
		Help: "Total number of detection passes.",
	}, []string{"operation", "status"})

	probeTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autovideo_probe_total",
		Help: "Total number of probe attempts by provider and result.",
	}, []string{"provider", "result"})

	framesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autovideo_frames_total",
		Help: "Total frames observed by source instance.",
	}, []string{"source"})

	reg.MustRegister(detectDuration, detectTotal, probeTotal, framesTotal)

	return &Metrics{
		Registry:       reg,
		DetectDuration: detectDuration,
		DetectTotal:    detectTotal,
		ProbeTotal:     probeTotal,
		FramesTotal:    framesTotal,
	}
}

// Probe results recorded in ProbeTotal.
const (
	ProbeResultOK           = "ok"
	ProbeResultError        = "error"
	ProbeResultIncompatible = "incompatible"
)

// RecordProbe increments the probe counter. Safe on a nil receiver so
// callers without metrics need no guard.
func (m *Metrics) RecordProbe(provider, result string) {
	if m == nil {
		return
	}
	m.ProbeTotal.WithLabelValues(provider, result).Inc()
}
