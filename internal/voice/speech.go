package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/events"
	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/observability/metrics"
)

// StartRecognition creates and starts a recognition session with opts
// merged over the defaults. The new session becomes the tracked one. Unless
// WithStopPreviousRecognition is set, a previously tracked session is not
// stopped; callers must stop it themselves.
func (m *Manager) StartRecognition(ctx context.Context, opts RecognitionOptions) (RecognitionSession, error) {
	if !m.caps.Recognition {
		m.metrics.RecordOperation(metrics.OpStartRecognition, metrics.StatusError)
		m.metrics.RecordError(metrics.OpStartRecognition, string(ClassUnsupported))
		return nil, unsupported("start_recognition", errors.CategoryRecognition)
	}

	cfg := opts.merge(m.recognitionDefaults)
	if _, err := language.Parse(cfg.Language); err != nil {
		m.metrics.RecordOperation(metrics.OpStartRecognition, metrics.StatusError)
		return nil, errors.New(err).
			Component(componentVoice).
			Category(errors.CategoryValidation).
			Context("operation", "start_recognition").
			Context("language", cfg.Language).
			Build()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopPrevious && m.session != nil {
		m.log.Debug("stopping previous recognition session", logger.String("session_id", m.session.ID()))
		m.session.Stop()
		m.session = nil
	}

	session, err := m.platform.Recognition.NewSession(cfg)
	if err != nil {
		m.metrics.RecordOperation(metrics.OpStartRecognition, metrics.StatusError)
		return nil, errors.New(err).
			Component(componentVoice).
			Category(errors.CategoryRecognition).
			Context("operation", "new_session").
			Build()
	}

	if err := session.Start(ctx); err != nil {
		m.metrics.RecordOperation(metrics.OpStartRecognition, metrics.StatusError)
		session.Abort()
		return nil, errors.New(err).
			Component(componentVoice).
			Category(errors.CategoryRecognition).
			Context("operation", "start_session").
			Context("language", cfg.Language).
			Build()
	}

	m.session = session
	m.metrics.RecordOperation(metrics.OpStartRecognition, metrics.StatusSuccess)
	m.log.Info("recognition started",
		logger.String("session_id", session.ID()),
		logger.String("language", cfg.Language),
		logger.Bool("continuous", cfg.Continuous),
		logger.Bool("interim_results", cfg.InterimResults),
		logger.Int("max_alternatives", cfg.MaxAlternatives))

	ev := events.NewLifecycleEvent(events.RecognitionStart, componentVoice)
	ev.SessionID = session.ID()
	m.publish(ev)

	return session, nil
}

// synthSlot is the one-deep synthesis mailbox.
type synthSlot struct {
	text     string
	canceled chan struct{}
	once     sync.Once
}

func newSynthSlot(text string) *synthSlot {
	return &synthSlot{text: text, canceled: make(chan struct{})}
}

func (s *synthSlot) cancel() {
	s.once.Do(func() { close(s.canceled) })
}

func (s *synthSlot) isCanceled() bool {
	select {
	case <-s.canceled:
		return true
	default:
		return false
	}
}

// Speak plays text and blocks until the utterance finishes. An utterance in
// flight is canceled first and its caller receives ErrSpeechCanceled. Engine
// failures are returned as *SynthesisError.
func (m *Manager) Speak(ctx context.Context, text string, opts SpeakOptions) error {
	if !m.caps.Synthesis {
		m.metrics.RecordOperation(metrics.OpSpeak, metrics.StatusError)
		m.metrics.RecordError(metrics.OpSpeak, string(ClassUnsupported))
		return unsupported("speak", errors.CategorySynthesis)
	}

	start := time.Now()
	engine := m.platform.Synthesis

	m.mu.Lock()
	m.cancelSlotLocked()

	slot := newSynthSlot(text)
	done, err := engine.Speak(ctx, opts.utterance(text))
	if err != nil {
		m.mu.Unlock()
		return m.synthesisFailed(err)
	}
	m.slot = slot
	m.setSpeakingGauge(true)
	m.mu.Unlock()

	m.publish(events.NewLifecycleEvent(events.SynthesisStarted, componentVoice))

	select {
	case err = <-done:
		if slot.isCanceled() {
			return m.synthesisCanceled()
		}
	case <-slot.canceled:
		return m.synthesisCanceled()
	case <-ctx.Done():
		m.mu.Lock()
		if m.slot == slot {
			engine.Cancel()
			m.clearSlotLocked()
		}
		m.mu.Unlock()
		slot.cancel()
		m.metrics.RecordOperation(metrics.OpSpeak, metrics.StatusCanceled)
		return ctx.Err()
	}

	m.mu.Lock()
	if m.slot == slot {
		m.clearSlotLocked()
	}
	m.mu.Unlock()

	m.metrics.RecordDuration(metrics.OpSpeak, time.Since(start).Seconds())
	if err != nil {
		return m.synthesisFailed(err)
	}

	m.metrics.RecordOperation(metrics.OpSpeak, metrics.StatusSuccess)
	m.publish(events.NewLifecycleEvent(events.SynthesisFinished, componentVoice))
	return nil
}

func (m *Manager) synthesisCanceled() error {
	m.metrics.RecordOperation(metrics.OpSpeak, metrics.StatusCanceled)
	m.publish(events.NewLifecycleEvent(events.SynthesisCanceled, componentVoice))
	return ErrSpeechCanceled
}

func (m *Manager) synthesisFailed(err error) error {
	m.metrics.RecordOperation(metrics.OpSpeak, metrics.StatusError)
	m.metrics.RecordError(metrics.OpSpeak, string(errors.CategorySynthesis))
	m.log.Warn("synthesis failed", logger.Error(err))

	ev := events.NewLifecycleEvent(events.SynthesisFailed, componentVoice)
	ev.Message = err.Error()
	m.publish(ev)

	var se *SynthesisError
	if errors.As(err, &se) {
		return se
	}
	return &SynthesisError{Reason: err.Error(), Err: err}
}

// StopSpeaking cancels the utterance in flight, if any. Safe to call when idle.
func (m *Manager) StopSpeaking() {
	if !m.caps.Synthesis {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelSlotLocked()
	m.metrics.RecordOperation(metrics.OpStopSpeaking, metrics.StatusSuccess)
}

// cancelSlotLocked cancels the engine and rejects the occupant of the slot.
func (m *Manager) cancelSlotLocked() {
	if m.slot == nil && !m.platform.Synthesis.Speaking() {
		return
	}
	m.platform.Synthesis.Cancel()
	if m.slot != nil {
		m.slot.cancel()
		m.clearSlotLocked()
	}
}

func (m *Manager) clearSlotLocked() {
	m.slot = nil
	m.setSpeakingGauge(false)
}

// ListVoices returns the engine's voices in the configured language family.
// It returns an empty list when synthesis is unsupported or enumeration fails.
func (m *Manager) ListVoices(ctx context.Context) []Voice {
	if !m.caps.Synthesis {
		return []Voice{}
	}

	all, err := m.platform.Synthesis.Voices(ctx)
	if err != nil {
		m.metrics.RecordOperation(metrics.OpListVoices, metrics.StatusError)
		m.log.Warn("voice enumeration failed", logger.Error(err))
		return []Voice{}
	}
	m.metrics.RecordOperation(metrics.OpListVoices, metrics.StatusSuccess)

	return filterVoices(all, m.voiceLanguage)
}

// filterVoices keeps voices whose language base matches prefix. An empty
// prefix keeps everything.
func filterVoices(voices []Voice, prefix string) []Voice {
	out := make([]Voice, 0, len(voices))
	if prefix == "" {
		return append(out, voices...)
	}

	want, err := language.ParseBase(prefix)
	for _, v := range voices {
		if err == nil {
			if tag, perr := language.Parse(v.Language); perr == nil {
				if base, _ := tag.Base(); base == want {
					out = append(out, v)
				}
				continue
			}
		}
		if strings.HasPrefix(strings.ToLower(v.Language), strings.ToLower(prefix)) {
			out = append(out, v)
		}
	}
	return out
}
