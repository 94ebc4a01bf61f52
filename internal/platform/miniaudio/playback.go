package miniaudio

import (
	"context"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/logger"
)

// Player renders mono 16-bit PCM to the default output device.
type Player struct {
	backends []malgo.Backend
	log      logger.Logger
}

// NewPlayer returns a player on the configured capture backend.
func NewPlayer(settings *conf.CaptureSettings, log logger.Logger) *Player {
	backend := conf.BackendAuto
	if settings != nil && settings.Backend != "" {
		backend = settings.Backend
	}
	if log == nil {
		log = logger.Global().Module(componentMiniaudio)
	}
	return &Player{backends: backendsFor(backend), log: log}
}

// Play blocks until pcm has been rendered or ctx is done.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	mctx, err := initContext(p.backends, p.log)
	if err != nil {
		return playbackError("init context", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	cursor := newPCMCursor(pcm)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, _ uint32) { cursor.fill(output) },
	})
	if err != nil {
		return playbackError("init device", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return playbackError("start device", err)
	}

	select {
	case <-cursor.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func playbackError(op string, err error) error {
	return errors.New(err).
		Component(componentMiniaudio).
		Category(errors.CategoryPlayback).
		Context("operation", op).
		Build()
}

// pcmCursor feeds a PCM buffer to the output callback and signals done once
// the device has pulled past the end.
type pcmCursor struct {
	mu   sync.Mutex
	pcm  []byte
	pos  int
	once sync.Once
	done chan struct{}
}

func newPCMCursor(pcm []byte) *pcmCursor {
	return &pcmCursor{pcm: pcm, done: make(chan struct{})}
}

// fill copies the next chunk into dst and zero-pads the remainder.
func (c *pcmCursor) fill(dst []byte) {
	c.mu.Lock()
	n := copy(dst, c.pcm[c.pos:])
	c.pos += n
	finished := c.pos >= len(c.pcm) && n < len(dst)
	c.mu.Unlock()

	clear(dst[n:])
	if finished {
		c.once.Do(func() { close(c.done) })
	}
}
