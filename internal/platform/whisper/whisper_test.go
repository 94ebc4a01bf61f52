package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/jarcoal/httpmock"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/voicekit/internal/audiograph"
	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/voice"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const transcriptionURL = "https://api.openai.com/v1/audio/transcriptions"

// 100 ms of 16 kHz mono audio.
const chunkBytes = 3200

func loudChunk() []byte {
	b := make([]byte, chunkBytes)
	for i := 0; i < len(b); i += 2 {
		binary.LittleEndian.PutUint16(b[i:], uint16(int16(10000)))
	}
	return b
}

func silentChunk() []byte { return make([]byte, chunkBytes) }

type fakeTrack struct {
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTrack) ID() string    { return "track" }
func (t *fakeTrack) Kind() string  { return "audio" }
func (t *fakeTrack) Label() string { return "fake mic" }
func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeStream struct {
	mu    sync.Mutex
	sinks map[int]func([]byte)
	next  int
	track *fakeTrack
}

func (s *fakeStream) Active() bool          { return !s.track.isStopped() }
func (s *fakeStream) Tracks() []voice.Track { return []voice.Track{s.track} }
func (s *fakeStream) Format() audiograph.Format {
	return audiograph.Format{SampleRate: 16000, Channels: 1}
}

func (s *fakeStream) Subscribe(sink func([]byte)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.sinks[id] = sink
	return func() {
		s.mu.Lock()
		delete(s.sinks, id)
		s.mu.Unlock()
	}
}

func (s *fakeStream) push(chunks ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		for _, sink := range s.sinks {
			sink(c)
		}
	}
}

type fakeCapture struct {
	stream  *fakeStream
	openErr error
	opened  []voice.Constraints
}

func (c *fakeCapture) Available() bool { return true }

func (c *fakeCapture) Open(_ context.Context, cons voice.Constraints) (voice.CaptureStream, error) {
	c.opened = append(c.opened, cons)
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.stream, nil
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{stream: &fakeStream{sinks: map[int]func([]byte){}, track: &fakeTrack{}}}
}

func newTestEngine(t *testing.T, capture voice.CaptureDevice) *Engine {
	t.Helper()
	client := &http.Client{Timeout: 30 * time.Second}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	return New(Config{
		APIKey:          "sk-test",
		SilenceDuration: 300 * time.Millisecond,
		MaxSegment:      5 * time.Second,
		HTTPClient:      client,
	}, capture, logger.NewDiscardLogger())
}

func respondWith(text string) {
	httpmock.RegisterResponder(http.MethodPost, transcriptionURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"task":     "transcribe",
			"language": "english",
			"text":     text,
			"segments": []map[string]any{{"id": 0, "text": text, "avg_logprob": -0.1}},
		}))
}

func waitDone(t *testing.T, s voice.RecognitionSession) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
}

func collect(s voice.RecognitionSession) []voice.RecognitionResult {
	var out []voice.RecognitionResult
	for r := range s.Results() {
		out = append(out, r)
	}
	return out
}

func TestSingleShotEndsAfterFirstResult(t *testing.T) {
	capture := newFakeCapture()
	e := newTestEngine(t, capture)
	respondWith(" hello world ")

	session, err := e.NewSession(voice.RecognitionConfig{Language: "en-US", MaxAlternatives: 1})
	require.NoError(t, err)
	require.NoError(t, session.Start(context.Background()))

	require.Len(t, capture.opened, 1)
	assert.Equal(t, 16000, capture.opened[0].SampleRate.Ideal)

	capture.stream.push(silentChunk(), loudChunk(), loudChunk(), silentChunk(), silentChunk(), silentChunk())

	waitDone(t, session)
	results := collect(session)
	require.Len(t, results, 1)
	assert.True(t, results[0].Final)
	require.Len(t, results[0].Alternatives, 1)
	assert.Equal(t, "hello world", results[0].Alternatives[0].Transcript)
	assert.InDelta(t, 0.905, results[0].Alternatives[0].Confidence, 0.001)

	assert.NoError(t, session.Err())
	assert.True(t, capture.stream.track.isStopped())
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestStopTranscribesPendingSpeech(t *testing.T) {
	capture := newFakeCapture()
	e := newTestEngine(t, capture)
	respondWith("still talking")

	session, err := e.NewSession(voice.RecognitionConfig{Language: "de", Continuous: true})
	require.NoError(t, err)
	require.NoError(t, session.Start(context.Background()))

	capture.stream.push(loudChunk(), loudChunk())
	session.Stop()

	waitDone(t, session)
	results := collect(session)
	require.Len(t, results, 1)
	assert.Equal(t, "still talking", results[0].Alternatives[0].Transcript)
	assert.True(t, capture.stream.track.isStopped())
}

func TestAbortDiscardsPendingSpeech(t *testing.T) {
	capture := newFakeCapture()
	e := newTestEngine(t, capture)
	respondWith("never")

	session, err := e.NewSession(voice.RecognitionConfig{Continuous: true})
	require.NoError(t, err)
	require.NoError(t, session.Start(context.Background()))

	capture.stream.push(loudChunk(), loudChunk())
	session.Abort()

	waitDone(t, session)
	assert.Empty(t, collect(session))
	assert.NoError(t, session.Err())
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestTranscriptionFailureEndsSession(t *testing.T) {
	capture := newFakeCapture()
	e := newTestEngine(t, capture)
	httpmock.RegisterResponder(http.MethodPost, transcriptionURL,
		httpmock.NewJsonResponderOrPanic(http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "boom", "type": "server_error"},
		}))

	session, err := e.NewSession(voice.RecognitionConfig{Continuous: true})
	require.NoError(t, err)
	require.NoError(t, session.Start(context.Background()))

	capture.stream.push(loudChunk(), silentChunk(), silentChunk(), silentChunk())

	waitDone(t, session)
	assert.Empty(t, collect(session))
	require.Error(t, session.Err())
	assert.True(t, errors.IsCategory(session.Err(), errors.CategoryRecognition))
	assert.True(t, capture.stream.track.isStopped())

	var ee *errors.EnhancedError
	require.True(t, errors.As(session.Err(), &ee))
	ctx := ee.GetContext()
	assert.Equal(t, "transcribe", ctx["operation"])
	assert.Equal(t, "https-endpoint", ctx["url_category"])
	assert.InDelta(t, 30.0, ctx["timeout_seconds"], 0.001)
	assert.Contains(t, ctx, "duration_ms")
	assert.Equal(t, openai.Whisper1, ctx["model"])
}

func TestStartFailsWhenCaptureFails(t *testing.T) {
	capture := newFakeCapture()
	capture.openErr = voice.ErrDeviceBusy
	e := newTestEngine(t, capture)

	session, err := e.NewSession(voice.DefaultRecognitionConfig())
	require.NoError(t, err)
	err = session.Start(context.Background())
	require.ErrorIs(t, err, voice.ErrDeviceBusy)

	session.Abort()
	waitDone(t, session)
}

func TestStartTwiceFails(t *testing.T) {
	capture := newFakeCapture()
	e := newTestEngine(t, capture)

	session, err := e.NewSession(voice.DefaultRecognitionConfig())
	require.NoError(t, err)
	require.NoError(t, session.Start(context.Background()))
	assert.ErrorIs(t, session.Start(context.Background()), errAlreadyStarted)

	session.Abort()
	waitDone(t, session)
}

func TestStopBeforeStartEndsSession(t *testing.T) {
	capture := newFakeCapture()
	e := newTestEngine(t, capture)
	session, err := e.NewSession(voice.DefaultRecognitionConfig())
	require.NoError(t, err)
	session.Stop()
	waitDone(t, session)

	assert.ErrorIs(t, session.Start(context.Background()), errSessionEnded)
	assert.Empty(t, capture.opened, "a stopped session never opens the microphone")
	assert.Empty(t, collect(session))
}

func TestAvailability(t *testing.T) {
	assert.True(t, newTestEngine(t, newFakeCapture()).Available())
	assert.False(t, New(Config{}, newFakeCapture(), logger.NewDiscardLogger()).Available())
	assert.False(t, New(Config{APIKey: "k"}, nil, logger.NewDiscardLogger()).Available())
}

func TestTranscriptionLanguage(t *testing.T) {
	tests := map[string]string{"en-US": "en", "pt-BR": "pt", "de": "de", "": ""}
	for in, want := range tests {
		got, err := transcriptionLanguage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := transcriptionLanguage("not a tag!")
	assert.Error(t, err)

	e := newTestEngine(t, newFakeCapture())
	_, err = e.NewSession(voice.RecognitionConfig{Language: "not a tag!"})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSegmenter(t *testing.T) {
	s := newSegmenter(15, 300*time.Millisecond, time.Second, 32000)

	assert.Nil(t, s.push(silentChunk()), "leading silence")
	assert.Nil(t, s.push(loudChunk()))
	assert.Nil(t, s.push(silentChunk()))
	assert.Nil(t, s.push(silentChunk()))
	seg := s.push(silentChunk())
	require.NotNil(t, seg)
	assert.Len(t, seg, 5*chunkBytes, "pre-roll, speech and trailing silence")

	assert.Nil(t, s.flush(), "nothing pending")

	for range 9 {
		assert.Nil(t, s.push(loudChunk()))
	}
	seg = s.push(loudChunk())
	assert.Len(t, seg, 10*chunkBytes, "cut at max segment")

	s.push(loudChunk())
	assert.Len(t, s.flush(), chunkBytes)
}

func TestEncodeWAV(t *testing.T) {
	pcm := append(loudChunk(), silentChunk()...)
	data, err := encodeWAV(pcm, 16000, 1)
	require.NoError(t, err)

	dec := wav.NewDecoder(bytes.NewReader(data))
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint32(16000), dec.SampleRate)
	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, len(pcm)/2)
	assert.Equal(t, 10000, buf.Data[0])
	assert.Equal(t, 0, buf.Data[len(buf.Data)-1])
}
