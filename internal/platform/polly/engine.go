// Package polly implements voice.SynthesisEngine with Amazon Polly. Speech
// is requested as raw PCM and rendered through a playback sink.
package polly

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/voice"
)

const (
	componentPolly = "polly"

	defaultRegion     = "us-east-1"
	defaultVoice      = "Joanna"
	defaultSampleRate = 16000
	defaultCacheTTL   = time.Hour

	voicesCacheKey = "voices"
)

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
	DescribeVoices(ctx context.Context, params *polly.DescribeVoicesInput, optFns ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error)
}

// Sink renders mono 16-bit PCM. Play blocks until playback ends or ctx is
// done.
type Sink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// Config selects the Polly voice and output format.
type Config struct {
	Region        string
	Engine        string // standard or neural
	Voice         string
	SampleRate    int // 8000 or 16000
	VoiceCacheTTL time.Duration
}

// ConfigFromSettings maps synthesis settings onto a Config.
func ConfigFromSettings(s *conf.SynthesisSettings) Config {
	if s == nil {
		return Config{}
	}
	return Config{
		Region:        s.Region,
		Engine:        s.Engine,
		Voice:         s.Voice,
		SampleRate:    s.SampleRate,
		VoiceCacheTTL: s.VoiceCacheTTL,
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Region) == "" {
		c.Region = defaultRegion
	}
	if strings.TrimSpace(c.Voice) == "" {
		c.Voice = defaultVoice
	}
	if c.SampleRate <= 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.VoiceCacheTTL <= 0 {
		c.VoiceCacheTTL = defaultCacheTTL
	}
}

func (c *Config) engine() pollytypes.Engine {
	if strings.EqualFold(c.Engine, string(pollytypes.EngineNeural)) {
		return pollytypes.EngineNeural
	}
	return pollytypes.EngineStandard
}

// Engine speaks one utterance at a time. Starting a new utterance cancels
// the current one.
type Engine struct {
	cfg  Config
	sink Sink
	log  logger.Logger

	clientMu sync.Mutex
	client   synthClient

	voices *cache.Cache

	mu      sync.Mutex
	cancel  context.CancelFunc
	current uint64
	wg      sync.WaitGroup
}

// New returns an engine that loads AWS credentials lazily on first use.
func New(cfg Config, sink Sink, log logger.Logger) *Engine {
	return NewWithClient(cfg, nil, sink, log)
}

// NewWithClient returns an engine using client. A nil client is resolved
// from the default AWS configuration chain.
func NewWithClient(cfg Config, client synthClient, sink Sink, log logger.Logger) *Engine {
	cfg.applyDefaults()
	if log == nil {
		log = logger.Global().Module(componentPolly)
	}
	return &Engine{
		cfg:    cfg,
		sink:   sink,
		log:    log,
		client: client,
		// no janitor; expired entries are replaced on read
		voices: cache.New(cfg.VoiceCacheTTL, 0),
	}
}

// Available reports whether the engine has somewhere to play audio.
func (e *Engine) Available() bool { return e != nil && e.sink != nil }

// Speaking reports whether an utterance is being synthesised or played.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Speak starts u and returns immediately. The channel receives nil when
// playback completes, the context error when canceled, or a
// *voice.SynthesisError.
func (e *Engine) Speak(ctx context.Context, u voice.Utterance) (<-chan error, error) {
	if strings.TrimSpace(u.Text) == "" {
		return nil, &voice.SynthesisError{Reason: "empty text"}
	}

	uctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.current++
	id := e.current
	e.cancel = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		err := e.run(uctx, u)

		e.mu.Lock()
		if e.current == id {
			e.cancel = nil
		}
		e.mu.Unlock()
		cancel()

		done <- err
	}()

	return done, nil
}

// Cancel stops the current utterance. Safe when idle.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Close cancels playback and waits for utterance goroutines to exit.
func (e *Engine) Close() {
	e.Cancel()
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context, u voice.Utterance) error {
	start := time.Now()

	pcm, err := e.synthesize(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	applyGain(pcm, u.Volume)

	if err := e.sink.Play(ctx, pcm, e.cfg.SampleRate); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &voice.SynthesisError{Reason: "playback failed", Err: err}
	}

	e.log.Debug("utterance finished",
		logger.Int("bytes", len(pcm)),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

func (e *Engine) synthesize(ctx context.Context, u voice.Utterance) ([]byte, error) {
	client, err := e.resolveClient(ctx)
	if err != nil {
		return nil, &voice.SynthesisError{Reason: "client unavailable", Err: err}
	}

	engine := e.cfg.engine()
	ssml, err := buildSSML(u.Text, u.Rate, u.Pitch, engine == pollytypes.EngineStandard)
	if err != nil {
		return nil, &voice.SynthesisError{Reason: "invalid text", Err: err}
	}

	voiceID := u.Voice
	if voiceID == "" {
		voiceID = e.cfg.Voice
	}

	out, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatPcm,
		SampleRate:   aws.String(strconv.Itoa(e.cfg.SampleRate)),
		Text:         aws.String(ssml),
		TextType:     pollytypes.TextTypeSsml,
		VoiceId:      pollytypes.VoiceId(voiceID),
	})
	if err != nil {
		return nil, normalizeError("synthesize_speech", err)
	}
	if out == nil || out.AudioStream == nil {
		return nil, &voice.SynthesisError{Reason: "empty audio"}
	}
	defer out.AudioStream.Close()

	pcm, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, &voice.SynthesisError{Reason: "audio stream read failed", Err: err}
	}
	if len(pcm) == 0 {
		return nil, &voice.SynthesisError{Reason: "empty audio"}
	}
	return pcm, nil
}

// Voices lists Polly voices for the configured engine. Results are cached.
func (e *Engine) Voices(ctx context.Context) ([]voice.Voice, error) {
	if cached, ok := e.voices.Get(voicesCacheKey); ok {
		return cached.([]voice.Voice), nil
	}

	client, err := e.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out   []voice.Voice
		token *string
	)
	for {
		page, err := client.DescribeVoices(ctx, &polly.DescribeVoicesInput{
			Engine:    e.cfg.engine(),
			NextToken: token,
		})
		if err != nil {
			return nil, normalizeError("describe_voices", err)
		}
		for i := range page.Voices {
			out = append(out, e.toVoice(&page.Voices[i]))
		}
		token = page.NextToken
		if aws.ToString(token) == "" {
			break
		}
	}

	e.voices.SetDefault(voicesCacheKey, out)
	e.log.Debug("voices loaded", logger.Int("count", len(out)))
	return out, nil
}

func (e *Engine) toVoice(v *pollytypes.Voice) voice.Voice {
	id := string(v.Id)
	name := aws.ToString(v.Name)
	if name == "" {
		name = id
	}
	return voice.Voice{
		ID:       id,
		Name:     name,
		Language: string(v.LanguageCode),
		Gender:   strings.ToLower(string(v.Gender)),
		Default:  strings.EqualFold(id, e.cfg.Voice),
	}
}

func (e *Engine) resolveClient(ctx context.Context) (synthClient, error) {
	e.clientMu.Lock()
	defer e.clientMu.Unlock()

	if e.client != nil {
		return e.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(e.cfg.Region))
	if err != nil {
		return nil, errors.New(fmt.Errorf("load aws config: %w", err)).
			Component(componentPolly).
			Category(errors.CategoryConfiguration).
			Context("region", e.cfg.Region).
			Build()
	}
	e.client = polly.NewFromConfig(awsCfg)
	return e.client, nil
}
