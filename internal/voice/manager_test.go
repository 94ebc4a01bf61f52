package voice

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voicekit/internal/audiograph"
	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/events"
	"github.com/tphakala/voicekit/internal/observability/metrics"
)

func TestProbeIsComputedOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager()
	require.True(t, m.Capabilities().All())

	// flipping the platform afterwards must not change gating
	env.capture.available = false
	assert.True(t, m.Capabilities().Capture)
	assert.True(t, m.Status().Capabilities.Capture)
}

func TestNoMicrophoneEnvironment(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := New(Platform{Synthesis: env.synth}, WithLogger(nil))

	caps := m.Capabilities()
	assert.Equal(t, CapabilitySet{Capture: false, Recognition: false, Synthesis: true}, caps)
	assert.False(t, caps.All())

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.False(t, out.Granted())
	require.NotNil(t, out.Denial)
	assert.Equal(t, ClassUnsupported, out.Denial.Class)
	assert.False(t, out.Denial.Retryable)
	assert.Zero(t, env.capture.openCount())
}

func TestAcquireCaptureIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager()

	first := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.True(t, first.Granted())
	assert.True(t, first.Handle.Active())
	assert.NotEmpty(t, first.Handle.ID())

	second := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.True(t, second.Granted())
	assert.Same(t, first.Handle, second.Handle)
	assert.Equal(t, 1, env.capture.openCount())

	st := m.Status()
	assert.True(t, st.HandleActive)
	assert.Equal(t, first.Handle.ID(), st.HandleID)
}

func TestStaleHandleIsDiscarded(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager()

	first := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.True(t, first.Granted())
	env.capture.streams[0].active.Store(false)
	assert.False(t, m.Status().HandleActive)

	second := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.True(t, second.Granted())
	assert.NotSame(t, first.Handle, second.Handle)
	assert.Equal(t, 2, env.capture.openCount())
	assert.Equal(t, int32(1), env.capture.streams[0].track.stopped.Load())
}

func TestDeniedPermissionShortCircuits(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.permissions.state = PermissionDenied
	m := env.manager()

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.NotNil(t, out.Denial)
	assert.Equal(t, ClassPermissionDenied, out.Denial.Class)
	assert.False(t, out.Denial.Retryable)
	assert.NotEmpty(t, out.Denial.Guidance)
	assert.Zero(t, env.capture.openCount())
}

func TestPermissionQueryFailureIsTreatedAsUnknown(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.permissions.err = fmt.Errorf("permissions API unavailable")
	m := env.manager()

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	assert.True(t, out.Granted())
	assert.Equal(t, int32(1), env.permissions.calls.Load())
}

func TestMissingPermissionQuerier(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	p := env.platform()
	p.Permissions = nil
	m := New(p, WithLogger(nil))

	assert.True(t, m.AcquireCapture(context.Background(), CaptureConfig{}).Granted())
}

func TestDeviceFailureClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		class     Classification
		retryable bool
	}{
		{"permission refused", fmt.Errorf("open: %w", ErrDevicePermission), ClassPermissionDenied, false},
		{"no device", fmt.Errorf("open: %w", ErrDeviceNotFound), ClassNoDevice, false},
		{"busy", fmt.Errorf("open: %w", ErrDeviceBusy), ClassDeviceBusy, true},
		{"constraints", fmt.Errorf("open: %w", ErrDeviceConstraints), ClassConstraintsUnsupported, false},
		{"aborted", fmt.Errorf("open: %w", ErrDeviceAborted), ClassAborted, true},
		{"context canceled", context.Canceled, ClassAborted, true},
		{"other", fmt.Errorf("driver exploded"), ClassUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv()
			env.capture.err = tt.err
			m := env.manager()

			out := m.AcquireCapture(context.Background(), CaptureConfig{})
			require.NotNil(t, out.Denial)
			assert.Nil(t, out.Handle)
			assert.Equal(t, tt.class, out.Denial.Class)
			assert.Equal(t, tt.retryable, out.Denial.Retryable)
			assert.ErrorIs(t, out.Denial, tt.err)
			assert.False(t, m.Status().HandleActive, "failures never cache a handle")
		})
	}
}

func TestUnknownFailureCarriesMessageVerbatim(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.capture.err = fmt.Errorf("driver exploded")
	m := env.manager()

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.NotNil(t, out.Denial)
	assert.Equal(t, ClassUnknown, out.Denial.Class)
	assert.True(t, out.Denial.Retryable)
	assert.Equal(t, "driver exploded", out.Denial.Message)
	assert.Equal(t, 1, env.capture.openCount())
}

func TestInactiveStreamIsActivationFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.capture.inactive = true
	m := env.manager()

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.NotNil(t, out.Denial)
	assert.Equal(t, ClassActivationFailed, out.Denial.Class)
	assert.True(t, out.Denial.Retryable)
	assert.Equal(t, int32(1), env.capture.streams[0].track.stopped.Load())

	env.capture.inactive = false
	assert.True(t, m.AcquireCapture(context.Background(), CaptureConfig{}).Granted())
	assert.Equal(t, 2, env.capture.openCount())
}

func TestConstraintsMerge(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager()

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.True(t, out.Granted())
	assert.Equal(t, DefaultConstraints(), env.capture.last)
	assert.Equal(t, Constraints{
		EchoCancellation: true, NoiseSuppression: true, AutoGainControl: true,
		SampleRate: SampleRateRange{Ideal: 44100, Min: 16000}, ChannelCount: 1,
	}, out.Handle.Config())

	m.Release()
	m.AcquireCapture(context.Background(), CaptureConfig{
		EchoCancellation: Bool(false),
		SampleRate:       48000,
		ChannelCount:     2,
		DeviceID:         "usb",
	})
	assert.False(t, env.capture.last.EchoCancellation)
	assert.True(t, env.capture.last.NoiseSuppression)
	assert.Equal(t, SampleRateRange{Ideal: 48000, Min: 16000}, env.capture.last.SampleRate)
	assert.Equal(t, 2, env.capture.last.ChannelCount)
	assert.Equal(t, "usb", env.capture.last.DeviceID)
}

func TestDenialImplementsCategorizedError(t *testing.T) {
	t.Parallel()

	d := newDenial(ClassPermissionDenied, nil)
	var ce errors.CategorizedError = d
	assert.Equal(t, errors.CategoryPermission, ce.ErrorCategory())
	assert.Contains(t, d.Error(), "PermissionDenied")

	assert.Equal(t, errors.CategoryCapture, newDenial(ClassDeviceBusy, nil).ErrorCategory())
}

func pcmConstant(frames int, v int16) []byte {
	pcm := make([]byte, frames*2)
	for i := range frames {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestBuildAnalysisGraphRequiresActiveHandle(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager()

	_, err := m.BuildAnalysisGraph(nil)
	require.ErrorIs(t, err, ErrNoActiveCapture)

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.True(t, out.Granted())
	env.capture.streams[0].active.Store(false)

	_, err = m.BuildAnalysisGraph(out.Handle)
	require.ErrorIs(t, err, ErrNoActiveCapture)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestBuildAnalysisGraphTapsStream(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager()

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.True(t, out.Granted())

	g, err := m.BuildAnalysisGraph(out.Handle)
	require.NoError(t, err)
	assert.Equal(t, 256, g.Analyser.FFTSize())
	assert.Equal(t, out.Handle.ID(), g.HandleID())
	assert.True(t, g.Valid())
	assert.True(t, m.Status().GraphActive)

	env.capture.streams[0].push(pcmConstant(256, 8000))
	assert.Positive(t, g.Analyser.Level().Level)

	// a second graph replaces and closes the first
	g2, err := m.BuildAnalysisGraph(out.Handle)
	require.NoError(t, err)
	assert.False(t, g.Valid())
	assert.True(t, g2.Valid())
}

func TestStaleHandleClosesDerivedGraph(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager()

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	g, err := m.BuildAnalysisGraph(out.Handle)
	require.NoError(t, err)

	env.capture.streams[0].active.Store(false)
	require.True(t, m.AcquireCapture(context.Background(), CaptureConfig{}).Granted())

	assert.False(t, g.Valid())
	assert.False(t, m.Status().GraphActive)
}

func TestAnalyserOptionsAreApplied(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager(WithAnalyserOptions(audiograph.AnalyserOptions{FFTSize: 1024}))

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	g, err := m.BuildAnalysisGraph(out.Handle)
	require.NoError(t, err)
	assert.Equal(t, 512, g.Analyser.FrequencyBinCount())
}

func TestAcquireCapturePublishesAndRecords(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	rec := metrics.NewTestRecorder()
	m := env.manager(WithMetrics(rec))

	m.AcquireCapture(context.Background(), CaptureConfig{})
	m.AcquireCapture(context.Background(), CaptureConfig{})
	m.Release()
	env.permissions.state = PermissionDenied
	m.AcquireCapture(context.Background(), CaptureConfig{})

	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpAcquireCapture, metrics.StatusGranted))
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpAcquireCapture, metrics.StatusCached))
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpAcquireCapture, metrics.StatusDenied))
	assert.Equal(t, 1, rec.GetErrorCount(metrics.OpAcquireCapture, string(ClassPermissionDenied)))
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpDeviceRequest, metrics.StatusSuccess))
	assert.Len(t, rec.GetDurations(metrics.OpAcquireCapture), 3)

	assert.Equal(t, []events.EventType{
		events.CaptureGranted,
		events.CaptureReleased,
		events.ResourcesReleased,
		events.CaptureDenied,
	}, env.publisher.types())
}
