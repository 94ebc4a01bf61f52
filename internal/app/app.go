// Package app wires configuration, logging, telemetry and the platform
// adapters into a voice.Manager for the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/voicekit/internal/audiograph"
	"github.com/tphakala/voicekit/internal/buildinfo"
	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/events"
	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/observability"
	"github.com/tphakala/voicekit/internal/platform/miniaudio"
	"github.com/tphakala/voicekit/internal/platform/polly"
	"github.com/tphakala/voicekit/internal/platform/whisper"
	"github.com/tphakala/voicekit/internal/voice"
)

const (
	providerWhisper = "whisper"
	providerPolly   = "polly"

	shutdownTimeout = 5 * time.Second
)

// Runtime holds the long-lived components behind a CLI invocation.
type Runtime struct {
	Settings *conf.Settings
	Log      logger.Logger
	Manager  *voice.Manager
	Capture  *miniaudio.Capture
	Metrics  *observability.Metrics

	central  *logger.CentralLogger
	platform voice.Platform
	bus      *events.EventBus
	synth    *polly.Engine
	endpoint *observability.Endpoint
	sentry   bool
}

// New builds a runtime from settings.
func New(settings *conf.Settings, build *buildinfo.Context) (*Runtime, error) {
	logCfg := settings.Logging
	if settings.Debug {
		logCfg.DefaultLevel = string(logger.LogLevelDebug)
		if logCfg.Console != nil {
			console := *logCfg.Console
			console.Level = string(logger.LogLevelDebug)
			logCfg.Console = &console
		}
	}
	central, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	log := central.Module("app")

	r := &Runtime{Settings: settings, Log: log, central: central}

	if settings.Telemetry.Enabled {
		if err := errors.InitSentry(settings.Telemetry.DSN, build.Release()); err != nil {
			log.Warn("error telemetry disabled", logger.Error(err))
		} else {
			r.sentry = settings.Telemetry.DSN != ""
		}
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		_ = central.Close()
		return nil, fmt.Errorf("error initializing metrics: %w", err)
	}
	r.Metrics = metrics

	if settings.Telemetry.MetricsListen != "" {
		r.endpoint, err = observability.NewEndpoint(settings, metrics, central.Module("metrics"))
		if err != nil {
			_ = central.Close()
			return nil, err
		}
	}

	r.bus = events.New(events.DefaultConfig(), central.Module("events"))
	if err := r.bus.RegisterConsumer(events.NewLogConsumer(central.Module("events"))); err != nil {
		log.Warn("event logging disabled", logger.Error(err))
	}

	platform, capture, synth := BuildPlatform(settings, central)
	r.platform = platform
	r.Capture = capture
	r.synth = synth

	r.Manager = voice.New(platform, ManagerOptions(settings, central.Module("voice"), metrics, r.bus)...)

	log.Debug("runtime ready",
		logger.String("version", build.Version()),
		logger.String("capture_backend", settings.Capture.Backend))
	return r, nil
}

// moduleSource hands out module-scoped loggers. Both *logger.CentralLogger
// and logger.Logger satisfy it.
type moduleSource interface {
	Module(name string) logger.Logger
}

// BuildPlatform constructs the platform adapters selected by settings.
// Disabled or unknown providers leave the capability absent.
func BuildPlatform(settings *conf.Settings, central moduleSource) (voice.Platform, *miniaudio.Capture, *polly.Engine) {
	capture := miniaudio.NewCapture(&settings.Capture, central.Module("miniaudio"))
	platform := voice.Platform{Capture: capture}

	if settings.Capture.Permission != "" && settings.Capture.Permission != conf.PermissionAuto {
		platform.Permissions = voice.StaticPermissions(voice.ParsePermissionState(settings.Capture.Permission))
	} else {
		platform.Permissions = miniaudio.Permissions{}
	}

	if settings.Recognition.Enabled && settings.Recognition.Provider == providerWhisper {
		platform.Recognition = whisper.New(
			whisper.ConfigFromSettings(&settings.Recognition, settings.Capture.Device),
			capture, central.Module("whisper"))
	}

	var synth *polly.Engine
	if settings.Synthesis.Enabled && settings.Synthesis.Provider == providerPolly {
		synth = polly.New(polly.ConfigFromSettings(&settings.Synthesis),
			miniaudio.NewPlayer(&settings.Capture, central.Module("miniaudio")),
			central.Module("polly"))
		platform.Synthesis = synth
	}

	return platform, capture, synth
}

// ManagerOptions maps settings onto manager options.
func ManagerOptions(settings *conf.Settings, log logger.Logger, rec *observability.Metrics, pub events.Publisher) []voice.Option {
	smoothing := settings.Analysis.Smoothing
	opts := []voice.Option{
		voice.WithLogger(log),
		voice.WithCaptureDefaults(voice.ConstraintsFromSettings(&settings.Capture)),
		voice.WithRecognitionDefaults(voice.RecognitionConfig{
			Language:        settings.Recognition.Language,
			Continuous:      settings.Recognition.Continuous,
			InterimResults:  settings.Recognition.InterimResults,
			MaxAlternatives: max(settings.Recognition.MaxAlternatives, 1),
		}),
		voice.WithAnalyserOptions(audiograph.AnalyserOptions{
			FFTSize:     settings.Analysis.FFTSize,
			Smoothing:   &smoothing,
			MinDecibels: settings.Analysis.MinDecibels,
			MaxDecibels: settings.Analysis.MaxDecibels,
		}),
		voice.WithVoiceLanguage(settings.Synthesis.LanguagePrefix),
		voice.WithStopPreviousRecognition(settings.Recognition.StopPrevious),
	}
	if rec != nil {
		opts = append(opts, voice.WithMetrics(rec.Voice))
	}
	if pub != nil {
		opts = append(opts, voice.WithPublisher(pub))
	}
	return opts
}

// Permissions returns the permission querier in use.
func (r *Runtime) Permissions() voice.PermissionQuerier {
	return r.platform.Permissions
}

// ServeMetrics runs the metrics endpoint until ctx is done. It returns
// immediately when no endpoint is configured.
func (r *Runtime) ServeMetrics(ctx context.Context) error {
	if r.endpoint == nil {
		return nil
	}
	return r.endpoint.Run(ctx)
}

// Close releases held resources and flushes logs and telemetry.
func (r *Runtime) Close() {
	r.Manager.Release()
	if r.synth != nil {
		r.synth.Close()
	}
	if err := r.bus.Shutdown(shutdownTimeout); err != nil {
		r.Log.Warn("event bus shutdown incomplete", logger.Error(err))
	}
	if r.sentry {
		sentry.Flush(shutdownTimeout)
	}
	_ = r.central.Flush()
	_ = r.central.Close()
}
