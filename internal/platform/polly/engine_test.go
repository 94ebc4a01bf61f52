package polly

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/voice"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClient struct {
	mu          sync.Mutex
	synthInputs []*polly.SynthesizeSpeechInput
	synthErr    error
	audio       []byte
	pages       []*polly.DescribeVoicesOutput
	describes   int
}

func (f *fakeClient) SynthesizeSpeech(_ context.Context, in *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synthInputs = append(f.synthInputs, in)
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(bytes.NewReader(bytes.Clone(f.audio)))}, nil
}

func (f *fakeClient) DescribeVoices(_ context.Context, _ *polly.DescribeVoicesInput, _ ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := f.pages[f.describes%len(f.pages)]
	f.describes++
	return page, nil
}

func (f *fakeClient) inputs() []*polly.SynthesizeSpeechInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*polly.SynthesizeSpeechInput(nil), f.synthInputs...)
}

// fakeSink records played audio. When block is set, Play waits for the
// context to end.
type fakeSink struct {
	mu     sync.Mutex
	played [][]byte
	rate   int
	block  bool
	err    error
}

func (s *fakeSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	s.mu.Lock()
	s.played = append(s.played, bytes.Clone(pcm))
	s.rate = sampleRate
	block, err := s.block, s.err
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *fakeSink) plays() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.played...)
}

func pcmOf(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func newTestEngine(t *testing.T, client *fakeClient, sink *fakeSink, cfg Config) *Engine {
	t.Helper()
	e := NewWithClient(cfg, client, sink, logger.NewDiscardLogger())
	t.Cleanup(e.Close)
	return e
}

func recv(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("utterance did not complete")
		return nil
	}
}

func TestSpeakSynthesisesAndPlays(t *testing.T) {
	client := &fakeClient{audio: pcmOf(1000, -1000)}
	sink := &fakeSink{}
	e := newTestEngine(t, client, sink, Config{Voice: "Matthew"})

	done, err := e.Speak(context.Background(), voice.Utterance{Text: "a < b", Rate: 1.5, Pitch: 1.2, Volume: 0.5})
	require.NoError(t, err)
	require.NoError(t, recv(t, done))

	inputs := client.inputs()
	require.Len(t, inputs, 1)
	in := inputs[0]
	assert.Equal(t, pollytypes.OutputFormatPcm, in.OutputFormat)
	assert.Equal(t, pollytypes.TextTypeSsml, in.TextType)
	assert.Equal(t, pollytypes.VoiceId("Matthew"), in.VoiceId)
	assert.Equal(t, "16000", aws.ToString(in.SampleRate))
	assert.Equal(t, `<speak><prosody rate="150%" pitch="+20%">a &lt; b</prosody></speak>`, aws.ToString(in.Text))

	plays := sink.plays()
	require.Len(t, plays, 1)
	assert.Equal(t, pcmOf(500, -500), plays[0])
	assert.Equal(t, 16000, sink.rate)
	assert.False(t, e.Speaking())
}

func TestSpeakRejectsEmptyText(t *testing.T) {
	e := newTestEngine(t, &fakeClient{}, &fakeSink{}, Config{})
	_, err := e.Speak(context.Background(), voice.Utterance{Text: "  "})
	var se *voice.SynthesisError
	require.ErrorAs(t, err, &se)
}

func TestNewUtteranceCancelsCurrent(t *testing.T) {
	client := &fakeClient{audio: pcmOf(1, 2)}
	sink := &fakeSink{block: true}
	e := newTestEngine(t, client, sink, Config{})

	first, err := e.Speak(context.Background(), voice.Utterance{Text: "one", Rate: 1, Pitch: 1, Volume: 1})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sink.plays()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, e.Speaking())

	second, err := e.Speak(context.Background(), voice.Utterance{Text: "two", Rate: 1, Pitch: 1, Volume: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, recv(t, first), context.Canceled)

	require.Eventually(t, func() bool { return len(sink.plays()) == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, e.Speaking(), "second utterance still playing")

	e.Cancel()
	assert.False(t, e.Speaking())
	assert.ErrorIs(t, recv(t, second), context.Canceled)

	e.Cancel()
}

func TestSpeakReportsAPIErrors(t *testing.T) {
	client := &fakeClient{synthErr: &smithy.GenericAPIError{Code: "TextLengthExceededException", Message: "too long"}}
	e := newTestEngine(t, client, &fakeSink{}, Config{})

	done, err := e.Speak(context.Background(), voice.Utterance{Text: "hello", Rate: 1, Pitch: 1, Volume: 1})
	require.NoError(t, err)

	var se *voice.SynthesisError
	require.ErrorAs(t, recv(t, done), &se)
	assert.Equal(t, "request rejected", se.Reason)
	assert.False(t, e.Speaking())
}

func TestNeuralEngineOmitsPitch(t *testing.T) {
	client := &fakeClient{audio: pcmOf(1)}
	e := newTestEngine(t, client, &fakeSink{}, Config{Engine: "neural"})

	done, err := e.Speak(context.Background(), voice.Utterance{Text: "hi", Rate: 1, Pitch: 2, Volume: 1})
	require.NoError(t, err)
	require.NoError(t, recv(t, done))

	in := client.inputs()[0]
	assert.Equal(t, pollytypes.EngineNeural, in.Engine)
	assert.Equal(t, `<speak><prosody rate="100%">hi</prosody></speak>`, aws.ToString(in.Text))
}

func TestVoicesPagesAndCaches(t *testing.T) {
	client := &fakeClient{pages: []*polly.DescribeVoicesOutput{
		{
			Voices: []pollytypes.Voice{
				{Id: pollytypes.VoiceIdJoanna, Name: aws.String("Joanna"), LanguageCode: pollytypes.LanguageCodeEnUs, Gender: pollytypes.GenderFemale},
			},
			NextToken: aws.String("page2"),
		},
		{
			Voices: []pollytypes.Voice{
				{Id: pollytypes.VoiceIdHans, Name: aws.String("Hans"), LanguageCode: pollytypes.LanguageCodeDeDe, Gender: pollytypes.GenderMale},
			},
		},
	}}
	e := newTestEngine(t, client, &fakeSink{}, Config{})

	voices, err := e.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, voice.Voice{ID: "Joanna", Name: "Joanna", Language: "en-US", Gender: "female", Default: true}, voices[0])
	assert.Equal(t, "de-DE", voices[1].Language)
	assert.False(t, voices[1].Default)

	_, err = e.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, client.describes, "second call served from cache")
}

func TestBuildSSMLClampsProsody(t *testing.T) {
	got, err := buildSSML("x", 5, 0, true)
	require.NoError(t, err)
	assert.Equal(t, `<speak><prosody rate="200%" pitch="-33%">x</prosody></speak>`, got)
}

func TestApplyGain(t *testing.T) {
	pcm := pcmOf(32767, -32768, 100)
	applyGain(pcm, 0)
	assert.Equal(t, pcmOf(0, 0, 0), pcm)

	pcm = pcmOf(200)
	applyGain(pcm, 1)
	assert.Equal(t, pcmOf(200), pcm)
}
