package miniaudio

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tphakala/voicekit/internal/audiograph"
	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/voice"
)

// deviceHandle is the part of *malgo.Device a stream controls.
type deviceHandle interface {
	Uninit()
}

// stream fans captured PCM out to subscribers. It implements
// voice.CaptureStream with a single audio track.
type stream struct {
	id     string
	label  string
	format audiograph.Format
	log    logger.Logger

	active atomic.Bool

	mu      sync.RWMutex
	sinks   map[uint64]func([]byte)
	nextID  uint64
	device  deviceHandle
	release func()

	closeOnce sync.Once
	track     *track
}

func newStream(label string, format audiograph.Format, log logger.Logger) *stream {
	s := &stream{
		id:     uuid.NewString(),
		label:  label,
		format: format,
		log:    log,
		sinks:  make(map[uint64]func([]byte)),
	}
	s.track = &track{id: uuid.NewString(), stream: s}
	return s
}

// attach binds the started device and marks the stream live.
func (s *stream) attach(device deviceHandle, release func()) {
	s.mu.Lock()
	s.device = device
	s.release = release
	s.mu.Unlock()
	s.active.Store(true)
}

func (s *stream) Active() bool { return s.active.Load() }

func (s *stream) Format() audiograph.Format { return s.format }

func (s *stream) Tracks() []voice.Track { return []voice.Track{s.track} }

// Subscribe registers sink for PCM frames. Sinks run on the audio thread and
// must not retain the slice.
func (s *stream) Subscribe(sink func([]byte)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.sinks[id] = sink
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.sinks, id)
		s.mu.Unlock()
	}
}

func (s *stream) dispatch(pcm []byte) {
	if !s.active.Load() {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sink := range s.sinks {
		sink(pcm)
	}
}

// deviceStopped runs when miniaudio stops the device, including on
// unplug. The device must not be torn down from inside this callback.
func (s *stream) deviceStopped() {
	if s.active.Swap(false) {
		s.log.Warn("capture device stopped", logger.String("device", s.label))
	}
}

func (s *stream) close() {
	s.closeOnce.Do(func() {
		s.active.Store(false)

		s.mu.Lock()
		device, release := s.device, s.release
		s.device, s.release = nil, nil
		clear(s.sinks)
		s.mu.Unlock()

		if device != nil {
			device.Uninit()
		}
		if release != nil {
			release()
		}
		s.log.Debug("capture stream closed", logger.String("device", s.label))
	})
}

// track is the stream's only audio track. Stopping it closes the stream.
type track struct {
	id     string
	stream *stream
}

func (t *track) ID() string    { return t.id }
func (t *track) Kind() string  { return "audio" }
func (t *track) Label() string { return t.stream.label }
func (t *track) Stop()         { t.stream.close() }
