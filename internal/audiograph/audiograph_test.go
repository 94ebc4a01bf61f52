package audiograph

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voicekit/internal/errors"
)

type fakeSource struct {
	mu           sync.Mutex
	sink         func([]byte)
	unsubscribed int
}

func (f *fakeSource) Subscribe(sink func([]byte)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sink = nil
		f.unsubscribed++
	}
}

func (f *fakeSource) push(pcm []byte) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink(pcm)
	}
}

func sinePCM(frames int, freq, sampleRate, amplitude float64) []byte {
	pcm := make([]byte, frames*2)
	for i := range frames {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*32767)))
	}
	return pcm
}

func constantPCM(frames int, value int16) []byte {
	pcm := make([]byte, frames*2)
	for i := range frames {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(value))
	}
	return pcm
}

func newTestGraph(t *testing.T, opts AnalyserOptions) (*fakeSource, *Context, *Analyser) {
	t.Helper()
	src := &fakeSource{}
	ctx, err := NewContext(src, Format{SampleRate: 8192, Channels: 1}, nil)
	require.NoError(t, err)
	an, err := ctx.CreateAnalyser(opts)
	require.NoError(t, err)
	return src, ctx, an
}

func TestAnalyserDefaults(t *testing.T) {
	t.Parallel()

	_, _, an := newTestGraph(t, AnalyserOptions{})
	assert.Equal(t, 256, an.FFTSize())
	assert.Equal(t, 128, an.FrequencyBinCount())
}

func TestAnalyserRejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	bad := -0.5
	tests := []struct {
		name string
		opts AnalyserOptions
	}{
		{"not power of two", AnalyserOptions{FFTSize: 300}},
		{"too small", AnalyserOptions{FFTSize: 16}},
		{"smoothing out of range", AnalyserOptions{Smoothing: &bad}},
		{"empty decibel range", AnalyserOptions{MinDecibels: -10, MaxDecibels: -20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx, err := NewContext(&fakeSource{}, Format{SampleRate: 16000, Channels: 1}, nil)
			require.NoError(t, err)
			_, err = ctx.CreateAnalyser(tt.opts)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestNewContextValidation(t *testing.T) {
	t.Parallel()

	_, err := NewContext(nil, Format{SampleRate: 16000, Channels: 1}, nil)
	require.Error(t, err)

	_, err = NewContext(&fakeSource{}, Format{SampleRate: 0, Channels: 1}, nil)
	require.Error(t, err)
}

func TestByteFrequencyDataPeaksAtToneBin(t *testing.T) {
	t.Parallel()

	noSmoothing := 0.0
	src, _, an := newTestGraph(t, AnalyserOptions{FFTSize: 256, Smoothing: &noSmoothing})

	// bin 32 of a 256 window at 8192 Hz is 1024 Hz
	src.push(sinePCM(256, 1024, 8192, 0.001))

	spectrum := make([]byte, an.FrequencyBinCount())
	an.ByteFrequencyData(spectrum)

	peak := 0
	for i, v := range spectrum {
		if v > spectrum[peak] {
			peak = i
		}
	}
	assert.Equal(t, 32, peak)
	assert.Positive(t, spectrum[peak])

	floats := make([]float32, an.FrequencyBinCount())
	an.FloatFrequencyData(floats)
	assert.Greater(t, floats[32], floats[10])
}

func TestTimeDomainDataAndSilence(t *testing.T) {
	t.Parallel()

	src, _, an := newTestGraph(t, AnalyserOptions{FFTSize: 32})

	wave := make([]byte, 32)
	an.ByteTimeDomainData(wave)
	for _, v := range wave {
		assert.Equal(t, byte(128), v, "silence centres on 128")
	}
	assert.Equal(t, Level{}, an.Level())

	src.push(constantPCM(32, 16384))
	an.ByteTimeDomainData(wave)
	assert.Equal(t, byte(192), wave[31])

	floats := make([]float32, 32)
	an.FloatTimeDomainData(floats)
	assert.InDelta(t, 0.5, floats[0], 0.001)
}

func TestLevelAndClipping(t *testing.T) {
	t.Parallel()

	src, _, an := newTestGraph(t, AnalyserOptions{FFTSize: 64})

	src.push(constantPCM(64, math.MaxInt16))
	level := an.Level()
	assert.True(t, level.Clipping)
	assert.Equal(t, 100, level.Level)

	src.push(constantPCM(64, 33)) // about -60 dBFS
	level = an.Level()
	assert.False(t, level.Clipping)
	assert.LessOrEqual(t, level.Level, 1)
}

func TestRingKeepsNewestAudio(t *testing.T) {
	t.Parallel()

	src, _, an := newTestGraph(t, AnalyserOptions{FFTSize: 32})

	// more than the ring holds, in small chunks, without polling
	for range 20 {
		src.push(constantPCM(16, 1000))
	}
	src.push(constantPCM(32, 8000))

	floats := make([]float32, 32)
	an.FloatTimeDomainData(floats)
	for _, v := range floats {
		assert.InDelta(t, 8000.0/32768.0, v, 0.0001)
	}
}

func TestStereoIsDownmixed(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	ctx, err := NewContext(src, Format{SampleRate: 16000, Channels: 2}, nil)
	require.NoError(t, err)
	an, err := ctx.CreateAnalyser(AnalyserOptions{FFTSize: 32})
	require.NoError(t, err)

	pcm := make([]byte, 32*4)
	for i := range 32 {
		binary.LittleEndian.PutUint16(pcm[i*4:], uint16(int16(16384)))
		binary.LittleEndian.PutUint16(pcm[i*4+2:], 0)
	}
	src.push(pcm)

	floats := make([]float32, 32)
	an.FloatTimeDomainData(floats)
	assert.InDelta(t, 0.25, floats[0], 0.0001)
}

func TestCloseDetachesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	src, ctx, an := newTestGraph(t, AnalyserOptions{FFTSize: 32})
	assert.Equal(t, StateRunning, ctx.State())

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())
	assert.Equal(t, StateClosed, ctx.State())
	assert.Equal(t, 1, src.unsubscribed)

	src.push(constantPCM(32, 16384))
	assert.Equal(t, Level{}, an.Level(), "closed context receives no audio")

	_, err := ctx.CreateAnalyser(AnalyserOptions{})
	require.Error(t, err)
}

func TestPCMLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Level{}, PCMLevel(nil))
	assert.Equal(t, Level{}, PCMLevel([]byte{1}))
	assert.Equal(t, Level{}, PCMLevel(constantPCM(10, 0)))

	loud := PCMLevel(constantPCM(10, math.MinInt16))
	assert.True(t, loud.Clipping)
	assert.Equal(t, 100, loud.Level)

	// -20 dBFS maps to 80
	mid := PCMLevel(constantPCM(10, 3277))
	assert.InDelta(t, 80, mid.Level, 1)
}

func TestFFTMatchesKnownTransform(t *testing.T) {
	t.Parallel()

	re := []float64{1, 1, 1, 1, 0, 0, 0, 0}
	im := make([]float64, 8)
	fft(re, im)

	assert.InDelta(t, 4, re[0], 1e-9)
	assert.InDelta(t, 0, im[0], 1e-9)
	assert.InDelta(t, 1, re[1], 1e-9)
	assert.InDelta(t, -2.41421356, im[1], 1e-6)
	assert.InDelta(t, 0, re[2], 1e-9)
	assert.InDelta(t, 0, im[2], 1e-9)
}
