// Package audiograph provides audio analysis primitives bound to a live
// capture stream: an audio context that taps the stream and analyser nodes
// exposing time-domain samples, a frequency spectrum and a loudness level.
package audiograph

import (
	"slices"
	"sync"

	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/logger"
)

const componentAudioGraph = "audiograph"

// Source delivers interleaved signed 16-bit little-endian PCM to subscribers.
type Source interface {
	Subscribe(sink func(pcm []byte)) (unsubscribe func())
}

// Format describes the PCM delivered by a Source.
type Format struct {
	SampleRate int
	Channels   int
}

// State is the lifecycle state of a Context.
type State string

const (
	StateRunning State = "running"
	StateClosed  State = "closed"
)

// Context taps a Source and fans its audio out to analyser nodes.
type Context struct {
	mu          sync.RWMutex
	format      Format
	unsubscribe func()
	analysers   []*Analyser
	state       State
	log         logger.Logger
}

// NewContext subscribes to src. The context keeps receiving audio until Close.
func NewContext(src Source, format Format, log logger.Logger) (*Context, error) {
	if src == nil {
		return nil, errors.Newf("audio context requires a source").
			Component(componentAudioGraph).
			Category(errors.CategoryAudioGraph).
			Context("operation", "new_context").
			Build()
	}
	if format.SampleRate <= 0 || format.Channels < 1 {
		return nil, errors.Newf("invalid audio format: %d Hz, %d channels", format.SampleRate, format.Channels).
			Component(componentAudioGraph).
			Category(errors.CategoryValidation).
			Context("operation", "new_context").
			Build()
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	c := &Context{
		format: format,
		state:  StateRunning,
		log:    log,
	}
	c.unsubscribe = src.Subscribe(c.dispatch)

	c.log.Debug("audio context created",
		logger.Int("sample_rate", format.SampleRate),
		logger.Int("channels", format.Channels))

	return c, nil
}

// CreateAnalyser creates an analyser node fed by this context.
func (c *Context) CreateAnalyser(opts AnalyserOptions) (*Analyser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return nil, errors.Newf("audio context is closed").
			Component(componentAudioGraph).
			Category(errors.CategoryState).
			Context("operation", "create_analyser").
			Build()
	}

	a, err := newAnalyser(opts, c.format)
	if err != nil {
		return nil, err
	}
	c.analysers = append(c.analysers, a)
	return a, nil
}

// SampleRate returns the sample rate of the tapped stream.
func (c *Context) SampleRate() int {
	return c.format.SampleRate
}

// State reports whether the context is still receiving audio.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Close detaches the context from its source. Analysers keep their last
// data but receive no further audio. Close is idempotent.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	// Unsubscribing may wait for an in-flight dispatch, which takes c.mu.
	if unsubscribe != nil {
		unsubscribe()
	}

	c.log.Debug("audio context closed")
	return nil
}

func (c *Context) dispatch(pcm []byte) {
	c.mu.RLock()
	if c.state == StateClosed {
		c.mu.RUnlock()
		return
	}
	analysers := slices.Clone(c.analysers)
	c.mu.RUnlock()

	for _, a := range analysers {
		a.ingest(pcm)
	}
}
