// Package voice mediates access to the microphone, the speech recognition
// engine and the speech synthesis engine, and owns the lifecycle of the
// resources they hand out: the capture stream, the analysis graph derived from
// it, the tracked recognition session and the single synthesis slot.
//
// A Manager probes the platform once at construction. Capture requests return
// a tagged Outcome rather than an error, and Release tears down whatever is
// held from any state without failing.
package voice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/voicekit/internal/audiograph"
	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/events"
	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/observability/metrics"
)

// gaugeRecorder is implemented by recorders that also track live resources.
type gaugeRecorder interface {
	SetCaptureActive(active bool)
	SetSpeaking(speaking bool)
}

// Manager is the capability manager. All methods are safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	platform Platform
	caps     CapabilitySet

	captureDefaults     Constraints
	recognitionDefaults RecognitionConfig
	analyser            audiograph.AnalyserOptions
	voiceLanguage       string
	stopPrevious        bool

	handle  *CaptureHandle
	graph   *AnalysisGraph
	session RecognitionSession
	slot    *synthSlot

	log       logger.Logger
	metrics   metrics.Recorder
	publisher events.Publisher
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The manager logs under the "voice" module.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithCaptureDefaults replaces the built-in capture defaults.
func WithCaptureDefaults(c Constraints) Option {
	return func(m *Manager) { m.captureDefaults = c }
}

// WithRecognitionDefaults replaces the built-in recognition defaults.
func WithRecognitionDefaults(c RecognitionConfig) Option {
	return func(m *Manager) { m.recognitionDefaults = c }
}

// WithAnalyserOptions configures analysers created by BuildAnalysisGraph.
func WithAnalyserOptions(o audiograph.AnalyserOptions) Option {
	return func(m *Manager) { m.analyser = o }
}

// WithVoiceLanguage sets the language family ListVoices filters on.
func WithVoiceLanguage(prefix string) Option {
	return func(m *Manager) { m.voiceLanguage = prefix }
}

// WithStopPreviousRecognition makes StartRecognition stop the tracked
// session before starting a new one. Off by default, in which case the
// previous session keeps running untracked and the caller must stop it.
func WithStopPreviousRecognition(stop bool) Option {
	return func(m *Manager) { m.stopPrevious = stop }
}

// New creates a manager and probes the platform. The probe result is fixed
// for the manager's lifetime.
func New(p Platform, opts ...Option) *Manager {
	m := &Manager{
		platform:            p,
		captureDefaults:     DefaultConstraints(),
		recognitionDefaults: DefaultRecognitionConfig(),
		analyser:            audiograph.AnalyserOptions{FFTSize: audiograph.DefaultFFTSize},
		voiceLanguage:       "en",
		metrics:             metrics.NopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Global().Module(componentVoice)
	}

	m.caps = Probe(p)
	m.metrics.RecordOperation(metrics.OpProbe, metrics.StatusSuccess)
	m.log.Info("capabilities probed",
		logger.Bool("capture", m.caps.Capture),
		logger.Bool("recognition", m.caps.Recognition),
		logger.Bool("synthesis", m.caps.Synthesis))

	return m
}

// Capabilities returns the cached probe result.
func (m *Manager) Capabilities() CapabilitySet {
	return m.caps
}

// Status is a snapshot of what the manager currently holds.
type Status struct {
	Capabilities      CapabilitySet `json:"capabilities"`
	HandleActive      bool          `json:"handle_active"`
	HandleID          string        `json:"handle_id,omitempty"`
	GraphActive       bool          `json:"graph_active"`
	RecognitionActive bool          `json:"recognition_active"`
	Speaking          bool          `json:"speaking"`
}

// Status returns capability flags and the state of held resources.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{Capabilities: m.caps}
	if m.handle.Active() {
		st.HandleActive = true
		st.HandleID = m.handle.ID()
	}
	st.GraphActive = m.graph != nil && m.graph.Valid()
	if m.session != nil {
		select {
		case <-m.session.Done():
		default:
			st.RecognitionActive = true
		}
	}
	st.Speaking = m.slot != nil
	return st
}

// AcquireCapture returns the live capture handle, opening the device only
// when no active handle is cached. Failures are returned as a classified
// Denial in the Outcome; AcquireCapture never returns an error.
func (m *Manager) AcquireCapture(ctx context.Context, cfg CaptureConfig) Outcome {
	start := time.Now()
	defer func() {
		m.metrics.RecordDuration(metrics.OpAcquireCapture, time.Since(start).Seconds())
	}()

	if !m.caps.Capture {
		return m.deny(newDenial(ClassUnsupported, nil))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		if m.handle.Active() {
			m.metrics.RecordOperation(metrics.OpAcquireCapture, metrics.StatusCached)
			return granted(m.handle)
		}
		m.log.Info("discarding stale capture handle", logger.String("handle_id", m.handle.ID()))
		m.discardHandleLocked()
	}

	state := m.queryPermission(ctx)
	if state == PermissionDenied {
		return m.deny(newDenial(ClassPermissionDenied, nil))
	}

	constraints := cfg.merge(m.captureDefaults)
	stream, err := m.platform.Capture.Open(ctx, constraints)
	if err != nil {
		m.metrics.RecordOperation(metrics.OpDeviceRequest, metrics.StatusError)
		class := classifyDeviceError(err)
		m.log.Warn("capture device request failed",
			logger.String("classification", string(class)),
			logger.String("permission_state", string(state)),
			logger.Error(err))
		return m.deny(newDenial(class, err))
	}
	m.metrics.RecordOperation(metrics.OpDeviceRequest, metrics.StatusSuccess)

	if stream == nil || !stream.Active() {
		if stream != nil {
			for _, t := range stream.Tracks() {
				t.Stop()
			}
		}
		return m.deny(newDenial(ClassActivationFailed, nil))
	}

	h := &CaptureHandle{
		id:         uuid.NewString(),
		stream:     stream,
		config:     constraints,
		acquiredAt: time.Now(),
	}
	m.handle = h
	m.setCaptureGauge(true)
	m.metrics.RecordOperation(metrics.OpAcquireCapture, metrics.StatusGranted)

	format := stream.Format()
	m.log.Info("capture granted",
		logger.String("handle_id", h.id),
		logger.Int("sample_rate", format.SampleRate),
		logger.Int("channels", format.Channels),
		logger.Int("tracks", len(stream.Tracks())))

	ev := events.NewLifecycleEvent(events.CaptureGranted, componentVoice)
	ev.HandleID = h.id
	m.publish(ev)

	return granted(h)
}

// queryPermission asks the platform for the permission state. Any failure is
// treated as unknown.
func (m *Manager) queryPermission(ctx context.Context) PermissionState {
	if m.platform.Permissions == nil {
		return PermissionUnknown
	}

	state, err := m.platform.Permissions.Query(ctx)
	if err != nil {
		m.metrics.RecordOperation(metrics.OpPermissionQuery, metrics.StatusError)
		m.log.Debug("permission query failed, continuing", logger.Error(err))
		return PermissionUnknown
	}
	m.metrics.RecordOperation(metrics.OpPermissionQuery, metrics.StatusSuccess)
	return state
}

func (m *Manager) deny(d *Denial) Outcome {
	m.metrics.RecordOperation(metrics.OpAcquireCapture, metrics.StatusDenied)
	m.metrics.RecordError(metrics.OpAcquireCapture, string(d.Class))

	ev := events.NewLifecycleEvent(events.CaptureDenied, componentVoice)
	ev.Classification = string(d.Class)
	ev.Message = d.Message
	ev.Retryable = d.Retryable
	m.publish(ev)

	return denied(d)
}

// discardHandleLocked drops the cached handle and any graph derived from it.
func (m *Manager) discardHandleLocked() {
	h := m.handle
	if m.graph != nil && m.graph.handle == h {
		m.closeGraphLocked()
	}
	h.stopTracks()
	m.handle = nil
	m.setCaptureGauge(false)

	ev := events.NewLifecycleEvent(events.CaptureReleased, componentVoice)
	ev.HandleID = h.id
	m.publish(ev)
}

// BuildAnalysisGraph taps h with an audio context and analyser. h must be
// active; otherwise ErrNoActiveCapture is returned. A previously built graph
// is closed.
func (m *Manager) BuildAnalysisGraph(h *CaptureHandle) (*AnalysisGraph, error) {
	if !h.Active() {
		m.metrics.RecordOperation(metrics.OpBuildGraph, metrics.StatusError)
		return nil, errors.New(ErrNoActiveCapture).
			Component(componentVoice).
			Category(errors.CategoryState).
			Context("operation", "build_analysis_graph").
			Build()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	actx, err := audiograph.NewContext(h, h.Format(), m.log.Module("graph"))
	if err != nil {
		m.metrics.RecordOperation(metrics.OpBuildGraph, metrics.StatusError)
		return nil, err
	}
	analyser, err := actx.CreateAnalyser(m.analyser)
	if err != nil {
		_ = actx.Close()
		m.metrics.RecordOperation(metrics.OpBuildGraph, metrics.StatusError)
		return nil, err
	}

	if m.graph != nil {
		m.closeGraphLocked()
	}

	g := &AnalysisGraph{Context: actx, Analyser: analyser, handle: h}
	m.graph = g
	m.metrics.RecordOperation(metrics.OpBuildGraph, metrics.StatusSuccess)

	ev := events.NewLifecycleEvent(events.GraphBuilt, componentVoice)
	ev.HandleID = h.id
	m.publish(ev)

	return g, nil
}

func (m *Manager) closeGraphLocked() {
	if err := m.graph.Close(); err != nil {
		m.log.Debug("closing analysis graph", logger.Error(err))
	}
	m.graph = nil
}

func (m *Manager) publish(ev events.LifecycleEvent) {
	if m.publisher != nil {
		m.publisher.TryPublish(ev)
	}
}

func (m *Manager) setCaptureGauge(active bool) {
	if g, ok := m.metrics.(gaugeRecorder); ok {
		g.SetCaptureActive(active)
	}
}

func (m *Manager) setSpeakingGauge(speaking bool) {
	if g, ok := m.metrics.(gaugeRecorder); ok {
		g.SetSpeaking(speaking)
	}
}
