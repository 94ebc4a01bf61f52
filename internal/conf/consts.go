// conf/consts.go hard coded constants
package conf

const (
	DefaultSampleRate = 44100 // ideal capture sample rate
	MinSampleRate     = 16000 // lowest acceptable capture sample rate
	DefaultChannels   = 1     // mono capture
	DefaultFFTSize    = 256   // analyser transform window

	MinFFTSize = 32
	MaxFFTSize = 32768

	redactedValue = "[REDACTED]"
)

// Capture backends.
const (
	BackendAuto       = "auto"
	BackendALSA       = "alsa"
	BackendPulseAudio = "pulseaudio"
	BackendWASAPI     = "wasapi"
	BackendCoreAudio  = "coreaudio"
	BackendNull       = "null"
)

// Permission overrides. Auto asks the platform.
const (
	PermissionAuto    = "auto"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
	PermissionPrompt  = "prompt"
)
