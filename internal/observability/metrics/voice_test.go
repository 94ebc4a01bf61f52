package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceMetricsImplementsRecorder(t *testing.T) {
	t.Parallel()
	var _ Recorder = (*VoiceMetrics)(nil)
	var _ Recorder = NopRecorder{}
	var _ Recorder = (*TestRecorder)(nil)
}

func TestVoiceMetricsCounters(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewVoiceMetrics(registry)
	require.NoError(t, err)

	m.RecordOperation(OpAcquireCapture, StatusGranted)
	m.RecordOperation(OpAcquireCapture, StatusGranted)
	m.RecordOperation(OpAcquireCapture, StatusDenied)
	m.RecordError(OpAcquireCapture, "DeviceBusy")
	m.SetCaptureActive(true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpAcquireCapture, StatusGranted)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.errorsTotal.WithLabelValues(OpAcquireCapture, "DeviceBusy")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.captureActive), 0)

	expected := `
# HELP voicekit_synthesis_speaking 1 while an utterance is in flight
# TYPE voicekit_synthesis_speaking gauge
voicekit_synthesis_speaking 0
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "voicekit_synthesis_speaking"))
}

func TestVoiceMetricsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewVoiceMetrics(registry)
	require.NoError(t, err)
	_, err = NewVoiceMetrics(registry)
	assert.Error(t, err)
}

func TestTestRecorder(t *testing.T) {
	t.Parallel()

	r := NewTestRecorder()
	r.RecordOperation(OpSpeak, StatusCanceled)
	r.RecordDuration(OpSpeak, 0.5)
	r.RecordError(OpSpeak, "synthesis")

	assert.Equal(t, 1, r.GetOperationCount(OpSpeak, StatusCanceled))
	assert.Equal(t, []float64{0.5}, r.GetDurations(OpSpeak))
	assert.Equal(t, 1, r.GetErrorCount(OpSpeak, "synthesis"))
	assert.Zero(t, r.GetOperationCount("missing", "x"))
}
