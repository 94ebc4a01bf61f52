package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// VoiceMetrics contains Prometheus metrics for capture and speech operations.
// It implements Recorder.
type VoiceMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	captureActive     prometheus.Gauge
	speaking          prometheus.Gauge
}

// NewVoiceMetrics creates and registers voice metrics on registry.
func NewVoiceMetrics(registry prometheus.Registerer) (*VoiceMetrics, error) {
	m := &VoiceMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *VoiceMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicekit_operations_total",
			Help: "Total number of capability manager operations by outcome",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicekit_operation_duration_seconds",
			Help:    "Duration of capability manager operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicekit_errors_total",
			Help: "Total number of failures by classification",
		},
		[]string{"operation", "error_type"},
	)

	m.captureActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "voicekit_capture_active",
		Help: "1 while a live capture handle is held",
	})

	m.speaking = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "voicekit_synthesis_speaking",
		Help: "1 while an utterance is in flight",
	})
}

// Describe implements the Collector interface
func (m *VoiceMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.captureActive.Describe(ch)
	m.speaking.Describe(ch)
}

// Collect implements the Collector interface
func (m *VoiceMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.captureActive.Collect(ch)
	m.speaking.Collect(ch)
}

// RecordOperation implements Recorder.
func (m *VoiceMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *VoiceMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *VoiceMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// SetCaptureActive updates the capture gauge.
func (m *VoiceMetrics) SetCaptureActive(active bool) {
	m.captureActive.Set(boolToFloat(active))
}

// SetSpeaking updates the synthesis gauge.
func (m *VoiceMetrics) SetSpeaking(speaking bool) {
	m.speaking.Set(boolToFloat(speaking))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
