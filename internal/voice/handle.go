package voice

import (
	"slices"
	"time"

	"github.com/tphakala/voicekit/internal/audiograph"
)

// CaptureHandle represents exclusive ownership of a live microphone stream.
// A handle can go stale when the platform revokes the stream; check Active
// before relying on it.
type CaptureHandle struct {
	id         string
	stream     CaptureStream
	config     Constraints
	acquiredAt time.Time
}

// ID returns the handle's unique identifier.
func (h *CaptureHandle) ID() string { return h.id }

// Active reports whether the underlying stream is still live.
func (h *CaptureHandle) Active() bool {
	return h != nil && h.stream != nil && h.stream.Active()
}

// Tracks returns a copy of the stream's track list.
func (h *CaptureHandle) Tracks() []Track {
	return slices.Clone(h.stream.Tracks())
}

// Config returns the constraints the handle was opened with.
func (h *CaptureHandle) Config() Constraints { return h.config }

// AcquiredAt returns when the handle was granted.
func (h *CaptureHandle) AcquiredAt() time.Time { return h.acquiredAt }

// Format returns the PCM format delivered by the stream.
func (h *CaptureHandle) Format() audiograph.Format { return h.stream.Format() }

// Subscribe taps the stream's PCM. Implements audiograph.Source.
func (h *CaptureHandle) Subscribe(sink func([]byte)) func() {
	return h.stream.Subscribe(sink)
}

func (h *CaptureHandle) stopTracks() {
	for _, t := range h.stream.Tracks() {
		t.Stop()
	}
}
