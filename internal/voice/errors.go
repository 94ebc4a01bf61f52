package voice

import (
	"fmt"

	"github.com/tphakala/voicekit/internal/errors"
)

const componentVoice = "voice"

// Contract and capability errors. Test with errors.Is.
var (
	// ErrNoActiveCapture is returned when an analysis graph is requested
	// for a missing or inactive capture handle. It indicates caller misuse.
	ErrNoActiveCapture = errors.NewStd("no active capture handle")

	// ErrUnsupported is returned when the environment lacks the capability.
	ErrUnsupported = errors.NewStd("capability not supported in this environment")

	// ErrSpeechCanceled rejects a speak request that was superseded by a
	// newer one or canceled by StopSpeaking or Release.
	ErrSpeechCanceled = errors.NewStd("speech canceled")
)

// Device failure sentinels. CaptureDevice implementations wrap these so the
// negotiator can classify failures.
var (
	ErrDevicePermission  = errors.NewStd("device permission refused")
	ErrDeviceNotFound    = errors.NewStd("no capture device found")
	ErrDeviceBusy        = errors.NewStd("capture device busy")
	ErrDeviceConstraints = errors.NewStd("constraints not satisfiable")
	ErrDeviceAborted     = errors.NewStd("device request aborted")
)

// SynthesisError reports an engine failure during an utterance.
type SynthesisError struct {
	Reason string
	Err    error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed: %s", e.Reason)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// ErrorCategory implements errors.CategorizedError.
func (e *SynthesisError) ErrorCategory() errors.ErrorCategory {
	return errors.CategorySynthesis
}

func unsupported(operation string, category errors.ErrorCategory) error {
	return errors.New(ErrUnsupported).
		Component(componentVoice).
		Category(category).
		Context("operation", operation).
		Build()
}
