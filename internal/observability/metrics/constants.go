package metrics

import "time"

// Operation names recorded by the capability manager.
const (
	OpProbe            = "probe"
	OpAcquireCapture   = "acquire_capture"
	OpDeviceRequest    = "device_request"
	OpPermissionQuery  = "permission_query"
	OpBuildGraph       = "build_analysis_graph"
	OpStartRecognition = "start_recognition"
	OpSpeak            = "speak"
	OpStopSpeaking     = "stop_speaking"
	OpListVoices       = "list_voices"
	OpRelease          = "release"
	OpTranscribe       = "transcribe"
	OpSynthesize       = "synthesize"
)

// Status values.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusGranted  = "granted"
	StatusDenied   = "denied"
	StatusCached   = "cached"
	StatusCanceled = "canceled"
)

// ShutdownTimeout bounds the metrics HTTP server shutdown.
const ShutdownTimeout = 5 * time.Second
