// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("capture.device", "sysdefault")
	v.SetDefault("capture.backend", BackendAuto)
	v.SetDefault("capture.echocancellation", true)
	v.SetDefault("capture.noisesuppression", true)
	v.SetDefault("capture.autogain", true)
	v.SetDefault("capture.samplerate", DefaultSampleRate)
	v.SetDefault("capture.minsamplerate", MinSampleRate)
	v.SetDefault("capture.channels", DefaultChannels)
	v.SetDefault("capture.permission", PermissionAuto)

	v.SetDefault("analysis.fftsize", DefaultFFTSize)
	v.SetDefault("analysis.smoothing", 0.8)
	v.SetDefault("analysis.mindecibels", -100.0)
	v.SetDefault("analysis.maxdecibels", -30.0)

	v.SetDefault("recognition.enabled", true)
	v.SetDefault("recognition.provider", "whisper")
	v.SetDefault("recognition.apikey", "")
	v.SetDefault("recognition.baseurl", "")
	v.SetDefault("recognition.model", "whisper-1")
	v.SetDefault("recognition.language", "en-US")
	v.SetDefault("recognition.continuous", false)
	v.SetDefault("recognition.interimresults", false)
	v.SetDefault("recognition.maxalternatives", 1)
	v.SetDefault("recognition.silencethreshold", 15.0)
	v.SetDefault("recognition.silenceduration", 800*time.Millisecond)
	v.SetDefault("recognition.maxsegment", 15*time.Second)
	v.SetDefault("recognition.stopprevious", false)

	v.SetDefault("synthesis.enabled", true)
	v.SetDefault("synthesis.provider", "polly")
	v.SetDefault("synthesis.region", "us-east-1")
	v.SetDefault("synthesis.engine", "standard")
	v.SetDefault("synthesis.voice", "Joanna")
	v.SetDefault("synthesis.languageprefix", "en")
	v.SetDefault("synthesis.samplerate", 16000)
	v.SetDefault("synthesis.voicecachettl", time.Hour)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/voicekit.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.metricslisten", "")
}
