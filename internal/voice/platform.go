package voice

import (
	"context"

	"github.com/tphakala/voicekit/internal/audiograph"
)

// PermissionState is the platform's view of microphone permission.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
	PermissionUnknown PermissionState = "unknown"
)

// ParsePermissionState maps a configuration value onto a PermissionState.
// Anything unrecognised is PermissionUnknown.
func ParsePermissionState(s string) PermissionState {
	switch PermissionState(s) {
	case PermissionGranted, PermissionDenied, PermissionPrompt:
		return PermissionState(s)
	default:
		return PermissionUnknown
	}
}

// Platform bundles the host-environment collaborators. A nil field means the
// environment has no such API.
type Platform struct {
	Capture     CaptureDevice
	Permissions PermissionQuerier
	Recognition RecognitionEngine
	Synthesis   SynthesisEngine
}

// CaptureDevice opens microphone streams.
type CaptureDevice interface {
	// Available reports whether a capture API exists at all. It must not
	// open a device or prompt the user.
	Available() bool

	// Open requests a stream satisfying c. Failures should wrap one of the
	// ErrDevice* sentinels so they can be classified.
	Open(ctx context.Context, c Constraints) (CaptureStream, error)
}

// CaptureStream is a live microphone stream.
type CaptureStream interface {
	// Active reports whether the stream is still delivering audio. The
	// platform may revoke a stream at any time.
	Active() bool
	Tracks() []Track
	Format() audiograph.Format
	audiograph.Source
}

// Track is one stoppable media track of a stream.
type Track interface {
	ID() string
	Kind() string
	Label() string
	// Stop releases the track. Stop is idempotent.
	Stop()
}

// PermissionQuerier reports the current permission state without prompting.
type PermissionQuerier interface {
	Query(ctx context.Context) (PermissionState, error)
}

// StaticPermissions always reports the same state. It backs configuration
// overrides of the platform query.
type StaticPermissions PermissionState

// Query implements PermissionQuerier.
func (s StaticPermissions) Query(context.Context) (PermissionState, error) {
	return PermissionState(s), nil
}

// RecognitionEngine constructs speech recognition sessions.
type RecognitionEngine interface {
	Available() bool
	NewSession(cfg RecognitionConfig) (RecognitionSession, error)
}

// RecognitionSession is a configured, stateful listener.
type RecognitionSession interface {
	ID() string
	Start(ctx context.Context) error
	// Stop ends listening and delivers any pending final result.
	Stop()
	// Abort ends listening and discards pending audio.
	Abort()
	Results() <-chan RecognitionResult
	// Done is closed when the session has ended for any reason.
	Done() <-chan struct{}
	// Err returns the error that ended the session, if any.
	Err() error
}

// RecognitionResult is one recognised phrase.
type RecognitionResult struct {
	Alternatives []Alternative
	Final        bool
}

// Alternative is one transcript hypothesis.
type Alternative struct {
	Transcript string
	Confidence float64
}

// SynthesisEngine plays utterances, one at a time.
type SynthesisEngine interface {
	Available() bool
	Speaking() bool
	// Speak starts an utterance. The returned channel receives exactly one
	// value, nil on completion, and must be buffered so that an abandoned
	// utterance never blocks the engine.
	Speak(ctx context.Context, u Utterance) (<-chan error, error)
	// Cancel stops the current utterance. It is safe to call when idle.
	Cancel()
	Voices(ctx context.Context) ([]Voice, error)
}

// Utterance is text plus delivery parameters.
type Utterance struct {
	Text   string
	Rate   float64 // 1.0 is normal speed
	Pitch  float64 // 1.0 is normal pitch
	Volume float64 // 0..1
	Voice  string  // voice ID, empty selects the engine default
}

// Voice describes a synthesis voice.
type Voice struct {
	ID       string
	Name     string
	Language string // BCP 47 tag
	Gender   string
	Default  bool
}
