// Package whisper implements voice.RecognitionEngine with the OpenAI
// transcription API. Each session captures its own audio, cuts it into
// utterances on silence and transcribes them one at a time.
package whisper

import (
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"

	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/voice"
)

const (
	componentWhisper = "whisper"

	// captureSampleRate is what the transcription model expects.
	captureSampleRate = 16000

	defaultSilenceThreshold = 15
	defaultSilenceDuration  = 800 * time.Millisecond
	defaultMaxSegment       = 15 * time.Second
)

// Config controls transcription and segmentation.
type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	SilenceThreshold float64 // level 0..100
	SilenceDuration  time.Duration
	MaxSegment       time.Duration
	Device           string
	HTTPClient       *http.Client
}

// ConfigFromSettings maps recognition settings onto a Config.
func ConfigFromSettings(s *conf.RecognitionSettings, device string) Config {
	if s == nil {
		return Config{Device: device}
	}
	return Config{
		APIKey:           s.APIKey,
		BaseURL:          s.BaseURL,
		Model:            s.Model,
		SilenceThreshold: s.SilenceThreshold,
		SilenceDuration:  s.SilenceDuration,
		MaxSegment:       s.MaxSegment,
		Device:           device,
	}
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = openai.Whisper1
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = defaultSilenceThreshold
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = defaultSilenceDuration
	}
	if c.MaxSegment <= 0 {
		c.MaxSegment = defaultMaxSegment
	}
}

// Engine creates recognition sessions.
type Engine struct {
	cfg     Config
	capture voice.CaptureDevice
	client  *openai.Client
	log     logger.Logger
}

// New returns an engine transcribing audio opened from capture.
func New(cfg Config, capture voice.CaptureDevice, log logger.Logger) *Engine {
	cfg.applyDefaults()
	if log == nil {
		log = logger.Global().Module(componentWhisper)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &Engine{
		cfg:     cfg,
		capture: capture,
		client:  openai.NewClientWithConfig(clientCfg),
		log:     log,
	}
}

// endpoint returns the transcription API base URL in use.
func (e *Engine) endpoint() string {
	if e.cfg.BaseURL != "" {
		return e.cfg.BaseURL
	}
	return openai.DefaultConfig("").BaseURL
}

// timeout returns the HTTP client timeout, zero when unbounded.
func (e *Engine) timeout() time.Duration {
	if e.cfg.HTTPClient == nil {
		return 0
	}
	return e.cfg.HTTPClient.Timeout
}

// Available reports whether an API key and a capture device are present.
func (e *Engine) Available() bool {
	return e != nil && e.cfg.APIKey != "" && e.capture != nil && e.capture.Available()
}

// NewSession returns an unstarted session for rc.
func (e *Engine) NewSession(rc voice.RecognitionConfig) (voice.RecognitionSession, error) {
	lang, err := transcriptionLanguage(rc.Language)
	if err != nil {
		return nil, errors.New(err).
			Component(componentWhisper).
			Category(errors.CategoryValidation).
			Context("language", rc.Language).
			Build()
	}
	return newSession(e, rc, lang), nil
}

// transcriptionLanguage reduces a BCP 47 tag to the ISO 639-1 code the
// API accepts.
func transcriptionLanguage(tag string) (string, error) {
	if tag == "" {
		return "", nil
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", err
	}
	base, _ := t.Base()
	return base.String(), nil
}

func trimTranscript(text string) string {
	return strings.TrimSpace(text)
}
