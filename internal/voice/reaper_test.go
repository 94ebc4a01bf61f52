package voice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voicekit/internal/audiograph"
	"github.com/tphakala/voicekit/internal/events"
	"github.com/tphakala/voicekit/internal/logger"
)

func TestReleaseIsTotal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T, env *testEnv, m *Manager) (cleanup func())
	}{
		{"nothing held", func(*testing.T, *testEnv, *Manager) func() { return nil }},
		{"only capture", func(t *testing.T, _ *testEnv, m *Manager) func() {
			require.True(t, m.AcquireCapture(context.Background(), CaptureConfig{}).Granted())
			return nil
		}},
		{"capture and graph", func(t *testing.T, _ *testEnv, m *Manager) func() {
			out := m.AcquireCapture(context.Background(), CaptureConfig{})
			_, err := m.BuildAnalysisGraph(out.Handle)
			require.NoError(t, err)
			return nil
		}},
		{"capture, recognition and synthesis", func(t *testing.T, env *testEnv, m *Manager) func() {
			require.True(t, m.AcquireCapture(context.Background(), CaptureConfig{}).Granted())
			_, err := m.StartRecognition(context.Background(), RecognitionOptions{})
			require.NoError(t, err)

			result := make(chan error, 1)
			go func() { result <- m.Speak(context.Background(), "hello", SpeakOptions{}) }()
			waitStarted(t, env.synth)
			return func() {
				assert.ErrorIs(t, waitResult(t, result), ErrSpeechCanceled)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv()
			m := env.manager()
			cleanup := tt.setup(t, env, m)

			assert.NotPanics(t, m.Release)
			assert.NotPanics(t, m.Release, "second release is a no-op")

			st := m.Status()
			assert.False(t, st.HandleActive)
			assert.False(t, st.GraphActive)
			assert.False(t, st.RecognitionActive)
			assert.False(t, st.Speaking)

			if cleanup != nil {
				cleanup()
			}
		})
	}
}

func TestReleaseWithNoCapabilities(t *testing.T) {
	t.Parallel()

	m := New(Platform{}, WithLogger(logger.NewDiscardLogger()))
	assert.NotPanics(t, m.Release)
	assert.False(t, m.Status().HandleActive)
}

func TestReleaseClosesGraphBeforeStoppingTracks(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager()

	out := m.AcquireCapture(context.Background(), CaptureConfig{})
	require.True(t, out.Granted())
	g, err := m.BuildAnalysisGraph(out.Handle)
	require.NoError(t, err)

	var graphStateAtStop audiograph.State
	env.capture.streams[0].track.onStop = func() {
		graphStateAtStop = g.Context.State()
	}

	m.Release()

	assert.Equal(t, audiograph.StateClosed, graphStateAtStop)
	assert.Equal(t, int32(1), env.capture.streams[0].track.stopped.Load())
	assert.False(t, out.Handle.Active())
}

func TestReleaseSurvivesPanickingPlatform(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager()

	require.True(t, m.AcquireCapture(context.Background(), CaptureConfig{}).Granted())
	_, err := m.StartRecognition(context.Background(), RecognitionOptions{})
	require.NoError(t, err)

	env.capture.streams[0].track.onStop = func() { panic("driver bug") }

	assert.NotPanics(t, m.Release)
	assert.Equal(t, int32(1), env.recognition.sessions[0].stopped.Load(), "later steps still run")
	assert.False(t, m.Status().HandleActive)
}

func TestReleasePublishesEvent(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	m := env.manager()
	require.True(t, m.AcquireCapture(context.Background(), CaptureConfig{}).Granted())

	m.Release()

	types := env.publisher.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.ResourcesReleased, types[len(types)-1])
	assert.Contains(t, types, events.CaptureReleased)
}
