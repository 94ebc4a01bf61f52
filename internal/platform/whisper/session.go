package whisper

import (
	"bytes"
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/voice"
)

const (
	resultBuffer  = 16
	segmentBuffer = 4
)

var (
	errAlreadyStarted = errors.NewStd("recognition session already started")
	errSessionEnded   = errors.NewStd("recognition session already ended")
)

// Session is one listening run. It implements voice.RecognitionSession.
type Session struct {
	id     string
	engine *Engine
	rc     voice.RecognitionConfig
	lang   string
	log    logger.Logger

	results chan voice.RecognitionResult
	done    chan struct{}

	mu      sync.Mutex
	started bool
	err     error
	cancel  context.CancelFunc

	stopCh   chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
	aborted  atomic.Bool

	segMu     sync.Mutex
	seg       *segmenter
	segments  chan []byte
	segClosed bool
}

func newSession(e *Engine, rc voice.RecognitionConfig, lang string) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		engine:   e,
		rc:       rc,
		lang:     lang,
		log:      e.log.With(logger.String("session_id", id)),
		results:  make(chan voice.RecognitionResult, resultBuffer),
		done:     make(chan struct{}),
		stopCh:   make(chan struct{}),
		segments: make(chan []byte, segmentBuffer),
	}
}

func (s *Session) ID() string                              { return s.id }
func (s *Session) Results() <-chan voice.RecognitionResult { return s.results }
func (s *Session) Done() <-chan struct{}                   { return s.done }

// Err returns the failure that ended the session. Stop and Abort end it
// without error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start opens the microphone and begins listening. The session outlives
// ctx; end it with Stop or Abort. A session stopped before Start cannot be
// started.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errAlreadyStarted
	}
	// Stop closes stopCh before it reads started, so either Stop sees the
	// session as started or Start sees it as stopped.
	select {
	case <-s.stopCh:
		s.mu.Unlock()
		return errSessionEnded
	default:
	}
	s.started = true
	s.mu.Unlock()

	cons := voice.DefaultConstraints()
	if s.engine.cfg.Device != "" && s.engine.cfg.Device != "sysdefault" {
		cons.DeviceID = s.engine.cfg.Device
	}
	cons.SampleRate = voice.SampleRateRange{Ideal: captureSampleRate, Min: captureSampleRate}
	cons.ChannelCount = 1

	stream, err := s.engine.capture.Open(ctx, cons)
	if err != nil {
		err = errors.New(err).
			Component(componentWhisper).
			Category(errors.CategoryRecognition).
			Context("operation", "open_capture").
			Build()
		s.finish(err)
		return err
	}

	format := stream.Format()
	s.seg = newSegmenter(s.engine.cfg.SilenceThreshold, s.engine.cfg.SilenceDuration,
		s.engine.cfg.MaxSegment, format.SampleRate*format.Channels*2)

	if s.rc.InterimResults {
		s.log.Debug("interim results not available, only final results are delivered")
	}

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(sessCtx)
	unsubscribe := stream.Subscribe(s.onAudio)

	g.Go(func() error {
		return s.transcribeLoop(gctx, format.SampleRate, format.Channels)
	})
	g.Go(func() error {
		graceful := false
		select {
		case <-s.stopCh:
			graceful = !s.aborted.Load()
		case <-gctx.Done():
		}

		unsubscribe()
		for _, t := range stream.Tracks() {
			t.Stop()
		}
		s.closeSegments(graceful)
		return nil
	})

	go func() {
		s.finish(g.Wait())
	}()

	s.log.Info("listening",
		logger.String("language", s.rc.Language),
		logger.Bool("continuous", s.rc.Continuous),
		logger.Int("sample_rate", format.SampleRate))
	return nil
}

// Stop ends listening; speech heard so far is still transcribed.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.finish(nil)
	}
}

// Abort ends listening and discards pending audio.
func (s *Session) Abort() {
	s.aborted.Store(true)
	s.Stop()

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// onAudio runs on the audio thread.
func (s *Session) onAudio(pcm []byte) {
	s.segMu.Lock()
	defer s.segMu.Unlock()
	if s.segClosed {
		return
	}
	if seg := s.seg.push(pcm); seg != nil {
		s.enqueueLocked(seg)
	}
}

func (s *Session) enqueueLocked(seg []byte) {
	select {
	case s.segments <- seg:
	default:
		s.log.Warn("transcription backlog full, dropping segment", logger.Int("bytes", len(seg)))
	}
}

func (s *Session) closeSegments(flush bool) {
	s.segMu.Lock()
	defer s.segMu.Unlock()
	if s.segClosed {
		return
	}
	if flush {
		if seg := s.seg.flush(); seg != nil {
			s.enqueueLocked(seg)
		}
	}
	s.segClosed = true
	close(s.segments)
}

func (s *Session) transcribeLoop(ctx context.Context, sampleRate, channels int) error {
	for seg := range s.segments {
		if s.aborted.Load() {
			continue
		}

		result, err := s.transcribe(ctx, seg, sampleRate, channels)
		if err != nil {
			return err
		}
		if len(result.Alternatives) == 0 {
			continue
		}

		select {
		case s.results <- result:
		case <-ctx.Done():
			return nil
		}

		if !s.rc.Continuous {
			s.Stop()
			return nil
		}
	}
	return nil
}

func (s *Session) transcribe(ctx context.Context, pcm []byte, sampleRate, channels int) (voice.RecognitionResult, error) {
	wavData, err := encodeWAV(pcm, sampleRate, channels)
	if err != nil {
		return voice.RecognitionResult{}, errors.New(err).
			Component(componentWhisper).
			Category(errors.CategoryRecognition).
			Context("operation", "encode_segment").
			Build()
	}

	start := time.Now()
	resp, err := s.engine.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.engine.cfg.Model,
		FilePath: "segment.wav",
		Reader:   bytes.NewReader(wavData),
		Language: s.lang,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return voice.RecognitionResult{}, errors.New(err).
			Component(componentWhisper).
			Category(errors.CategoryRecognition).
			NetworkContext(s.engine.endpoint(), s.engine.timeout()).
			Timing("transcribe", time.Since(start)).
			Context("model", s.engine.cfg.Model).
			Build()
	}

	result := voice.RecognitionResult{Final: true}
	if text := trimTranscript(resp.Text); text != "" {
		confidence := 0.0
		if len(resp.Segments) > 0 {
			var sum float64
			for i := range resp.Segments {
				sum += resp.Segments[i].AvgLogprob
			}
			confidence = min(max(math.Exp(sum/float64(len(resp.Segments))), 0), 1)
		}
		result.Alternatives = []voice.Alternative{{Transcript: text, Confidence: confidence}}
	}

	s.log.Debug("segment transcribed",
		logger.Int("bytes", len(pcm)),
		logger.Int("alternatives", len(result.Alternatives)))
	return result, nil
}

func (s *Session) finish(err error) {
	s.doneOnce.Do(func() {
		if errors.Is(err, context.Canceled) && s.aborted.Load() {
			err = nil
		}

		s.mu.Lock()
		s.err = err
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		if err != nil {
			s.log.Warn("recognition ended with error", logger.Error(err))
		} else {
			s.log.Debug("recognition ended")
		}
		close(s.results)
		close(s.done)
	})
}
