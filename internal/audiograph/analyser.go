package audiograph

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/voicekit/internal/errors"
)

const (
	DefaultFFTSize     = 256
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0

	minFFTSize = 32
	maxFFTSize = 32768

	// ring holds this many transform windows of raw PCM between polls
	ringWindows = 4
)

// AnalyserOptions configures an analyser node. Zero values select defaults.
type AnalyserOptions struct {
	FFTSize     int
	Smoothing   *float64
	MinDecibels float64
	MaxDecibels float64
}

// Analyser exposes the most recent FFTSize samples of its context.
type Analyser struct {
	mu sync.Mutex

	fftSize    int
	frameBytes int
	channels   int
	smoothing  float64
	minDB      float64
	maxDB      float64

	ring    *ringbuffer.RingBuffer
	scratch []byte

	window   []float64 // mono samples in [-1, 1], oldest first
	blackman []float64
	smoothed []float64
	re, im   []float64
}

func newAnalyser(opts AnalyserOptions, format Format) (*Analyser, error) {
	if opts.FFTSize == 0 {
		opts.FFTSize = DefaultFFTSize
	}
	if opts.FFTSize < minFFTSize || opts.FFTSize > maxFFTSize || opts.FFTSize&(opts.FFTSize-1) != 0 {
		return nil, errors.Newf("fft size %d must be a power of two between %d and %d", opts.FFTSize, minFFTSize, maxFFTSize).
			Component(componentAudioGraph).
			Category(errors.CategoryValidation).
			Context("operation", "create_analyser").
			Build()
	}

	smoothing := DefaultSmoothing
	if opts.Smoothing != nil {
		smoothing = *opts.Smoothing
	}
	if smoothing < 0 || smoothing > 1 {
		return nil, errors.Newf("smoothing %.2f must be between 0 and 1", smoothing).
			Component(componentAudioGraph).
			Category(errors.CategoryValidation).
			Context("operation", "create_analyser").
			Build()
	}

	minDB, maxDB := opts.MinDecibels, opts.MaxDecibels
	if minDB == 0 && maxDB == 0 {
		minDB, maxDB = DefaultMinDecibels, DefaultMaxDecibels
	}
	if minDB >= maxDB {
		return nil, errors.Newf("decibel range [%.1f, %.1f] is empty", minDB, maxDB).
			Component(componentAudioGraph).
			Category(errors.CategoryValidation).
			Context("operation", "create_analyser").
			Build()
	}

	frameBytes := 2 * format.Channels
	bins := opts.FFTSize / 2

	return &Analyser{
		fftSize:    opts.FFTSize,
		frameBytes: frameBytes,
		channels:   format.Channels,
		smoothing:  smoothing,
		minDB:      minDB,
		maxDB:      maxDB,
		ring:       ringbuffer.New(opts.FFTSize * frameBytes * ringWindows),
		window:     make([]float64, opts.FFTSize),
		blackman:   blackmanWindow(opts.FFTSize),
		smoothed:   make([]float64, bins),
		re:         make([]float64, opts.FFTSize),
		im:         make([]float64, opts.FFTSize),
	}, nil
}

// FFTSize returns the transform window size in samples.
func (a *Analyser) FFTSize() int { return a.fftSize }

// FrequencyBinCount returns FFTSize/2.
func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

// ingest queues raw PCM, discarding the oldest queued audio when the ring
// is full.
func (a *Analyser) ingest(pcm []byte) {
	pcm = pcm[:len(pcm)-len(pcm)%a.frameBytes]
	if len(pcm) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	capacity := a.ring.Capacity()
	if len(pcm) > capacity {
		pcm = pcm[len(pcm)-capacity:]
	}
	if overflow := len(pcm) - a.ring.Free(); overflow > 0 {
		a.discard(overflow)
	}
	_, _ = a.ring.Write(pcm)
}

func (a *Analyser) discard(n int) {
	if cap(a.scratch) < n {
		a.scratch = make([]byte, n)
	}
	_, _ = a.ring.Read(a.scratch[:n])
}

// sync moves queued PCM into the sliding sample window. Caller holds a.mu.
func (a *Analyser) sync() {
	n := a.ring.Length()
	n -= n % a.frameBytes
	if n == 0 {
		return
	}
	if cap(a.scratch) < n {
		a.scratch = make([]byte, n)
	}
	buf := a.scratch[:n]
	read, _ := a.ring.Read(buf)
	buf = buf[:read-read%a.frameBytes]

	frames := len(buf) / a.frameBytes
	if frames >= a.fftSize {
		buf = buf[(frames-a.fftSize)*a.frameBytes:]
		frames = a.fftSize
	}

	copy(a.window, a.window[frames:])
	dst := a.window[a.fftSize-frames:]
	for f := range frames {
		var sum float64
		base := f * a.frameBytes
		for ch := range a.channels {
			off := base + ch*2
			sum += float64(int16(binary.LittleEndian.Uint16(buf[off:off+2]))) / 32768.0
		}
		dst[f] = sum / float64(a.channels)
	}
}

// FloatTimeDomainData copies the current waveform, normalised to [-1, 1].
func (a *Analyser) FloatTimeDomainData(dst []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sync()

	for i := range min(len(dst), a.fftSize) {
		dst[i] = float32(a.window[i])
	}
}

// ByteTimeDomainData copies the current waveform scaled to 0-255 with 128 as
// silence.
func (a *Analyser) ByteTimeDomainData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sync()

	for i := range min(len(dst), a.fftSize) {
		v := 128 * (1 + a.window[i])
		dst[i] = byte(math.Max(0, math.Min(255, math.Floor(v))))
	}
}

// FloatFrequencyData copies the smoothed spectrum in decibels.
func (a *Analyser) FloatFrequencyData(dst []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sync()
	a.spectrum()

	for i := range min(len(dst), len(a.smoothed)) {
		dst[i] = float32(toDecibels(a.smoothed[i]))
	}
}

// ByteFrequencyData copies the smoothed spectrum mapped from
// [MinDecibels, MaxDecibels] onto 0-255.
func (a *Analyser) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sync()
	a.spectrum()

	scale := 255 / (a.maxDB - a.minDB)
	for i := range min(len(dst), len(a.smoothed)) {
		v := scale * (toDecibels(a.smoothed[i]) - a.minDB)
		dst[i] = byte(math.Max(0, math.Min(255, math.Floor(v))))
	}
}

// Level returns the loudness of the current window.
func (a *Analyser) Level() Level {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sync()
	return floatLevel(a.window)
}

// spectrum updates the smoothed magnitudes. Caller holds a.mu.
func (a *Analyser) spectrum() {
	for i := range a.fftSize {
		a.re[i] = a.window[i] * a.blackman[i]
		a.im[i] = 0
	}
	fft(a.re, a.im)

	n := float64(a.fftSize)
	for k := range a.smoothed {
		mag := math.Hypot(a.re[k], a.im[k]) / n
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
	}
}

func toDecibels(mag float64) float64 {
	if mag <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(mag)
}
