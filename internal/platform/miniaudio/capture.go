package miniaudio

import (
	"context"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/voicekit/internal/audiograph"
	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/logger"
	"github.com/tphakala/voicekit/internal/voice"
)

// Capture opens microphone streams through miniaudio. It implements
// voice.CaptureDevice.
type Capture struct {
	backends []malgo.Backend
	log      logger.Logger

	once      sync.Once
	available bool
}

// NewCapture returns a capture device using the configured backend.
func NewCapture(settings *conf.CaptureSettings, log logger.Logger) *Capture {
	backend := conf.BackendAuto
	if settings != nil && settings.Backend != "" {
		backend = settings.Backend
	}
	if log == nil {
		log = logger.Global().Module(componentMiniaudio)
	}
	return &Capture{
		backends: backendsFor(backend),
		log:      log,
	}
}

// Available reports whether a miniaudio context can be initialised. The
// result is cached; no device is opened.
func (c *Capture) Available() bool {
	c.once.Do(func() {
		ctx, err := initContext(c.backends, c.log)
		if err != nil {
			c.log.Debug("audio context unavailable", logger.Error(err))
			return
		}
		_ = ctx.Uninit()
		ctx.Free()
		c.available = true
	})
	return c.available
}

// Devices lists capture devices.
func (c *Capture) Devices() ([]DeviceInfo, error) {
	ctx, err := initContext(c.backends, c.log)
	if err != nil {
		return nil, classifyError("init context", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, classifyError("enumerate devices", err)
	}
	return entriesFrom(infos, c.log), nil
}

// Open starts a capture stream satisfying cons.
func (c *Capture) Open(ctx context.Context, cons voice.Constraints) (voice.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError("open", err)
	}

	mctx, err := initContext(c.backends, c.log)
	if err != nil {
		return nil, classifyError("init context", err)
	}
	release := func() {
		_ = mctx.Uninit()
		mctx.Free()
	}

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		release()
		return nil, classifyError("enumerate devices", err)
	}
	if len(infos) == 0 {
		release()
		return nil, errors.New(voice.ErrDeviceNotFound).
			Component(componentMiniaudio).
			Category(errors.CategoryCapture).
			Build()
	}

	selected, ok := selectDevice(entriesFrom(infos, c.log), cons.DeviceID)
	if !ok {
		release()
		return nil, errors.Newf("%w: device %q", voice.ErrDeviceConstraints, cons.DeviceID).
			Component(componentMiniaudio).
			Category(errors.CategoryCapture).
			Context("device", cons.DeviceID).
			Build()
	}

	// miniaudio has no voice processing; the flags are advisory.
	if cons.EchoCancellation || cons.NoiseSuppression || cons.AutoGainControl {
		c.log.Debug("voice processing requested but not provided by backend",
			logger.Bool("echo_cancellation", cons.EchoCancellation),
			logger.Bool("noise_suppression", cons.NoiseSuppression),
			logger.Bool("auto_gain", cons.AutoGainControl))
	}

	channels := max(cons.ChannelCount, 1)
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(cons.SampleRate.Ideal)
	deviceConfig.Capture.DeviceID = infos[selected.Index].ID.Pointer()
	deviceConfig.Alsa.NoMMap = 1

	s := newStream(selected.Name, audiograph.Format{SampleRate: cons.SampleRate.Ideal, Channels: channels}, c.log)

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) { s.dispatch(input) },
		Stop: s.deviceStopped,
	})
	if err != nil {
		release()
		return nil, classifyError("init device", err)
	}

	rate := int(device.SampleRate())
	if rate < cons.SampleRate.Min {
		device.Uninit()
		release()
		return nil, errors.Newf("%w: sample rate %d below minimum %d", voice.ErrDeviceConstraints, rate, cons.SampleRate.Min).
			Component(componentMiniaudio).
			Category(errors.CategoryCapture).
			DeviceContext(selected.Name, rate, channels).
			Build()
	}
	s.format.SampleRate = rate

	if err := device.Start(); err != nil {
		device.Uninit()
		release()
		return nil, classifyError("start device", err)
	}

	s.attach(device, release)
	c.log.Info("capture stream started",
		logger.String("device", selected.Name),
		logger.String("device_id", selected.ID),
		logger.Int("sample_rate", rate),
		logger.Int("channels", channels))
	return s, nil
}
