// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/text/language"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateCaptureSettings(&s.Capture) },
		func(s *Settings) error { return validateAnalysisSettings(&s.Analysis) },
		func(s *Settings) error { return validateRecognitionSettings(&s.Recognition) },
		func(s *Settings) error { return validateSynthesisSettings(&s.Synthesis) },
		func(s *Settings) error { return validateTelemetrySettings(&s.Telemetry) },
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateCaptureSettings(settings *CaptureSettings) error {
	var errs []string

	if err := validateEnvBackend(settings.Backend); err != nil {
		errs = append(errs, fmt.Sprintf("capture.backend %q: %v", settings.Backend, err))
	}
	if err := validateEnvPermission(settings.Permission); err != nil {
		errs = append(errs, fmt.Sprintf("capture.permission %q: %v", settings.Permission, err))
	}
	if settings.MinSampleRate <= 0 {
		errs = append(errs, "capture.minsamplerate must be positive")
	}
	if settings.SampleRate < settings.MinSampleRate {
		errs = append(errs, fmt.Sprintf("capture.samplerate %d is below capture.minsamplerate %d", settings.SampleRate, settings.MinSampleRate))
	}
	if settings.Channels < 1 || settings.Channels > 2 {
		errs = append(errs, "capture.channels must be 1 or 2")
	}

	return joinErrors(errs)
}

func validateAnalysisSettings(settings *AnalysisSettings) error {
	var errs []string

	if !validFFTSize(settings.FFTSize) {
		errs = append(errs, fmt.Sprintf("analysis.fftsize %d must be a power of two between %d and %d", settings.FFTSize, MinFFTSize, MaxFFTSize))
	}
	if settings.Smoothing < 0 || settings.Smoothing > 1 {
		errs = append(errs, "analysis.smoothing must be between 0 and 1")
	}
	if settings.MinDecibels >= settings.MaxDecibels {
		errs = append(errs, "analysis.mindecibels must be lower than analysis.maxdecibels")
	}

	return joinErrors(errs)
}

func validateRecognitionSettings(settings *RecognitionSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string

	if settings.Provider != "whisper" {
		errs = append(errs, fmt.Sprintf("recognition.provider %q is not supported", settings.Provider))
	}
	if _, err := language.Parse(settings.Language); err != nil {
		errs = append(errs, fmt.Sprintf("recognition.language %q is not a valid language tag", settings.Language))
	}
	if settings.MaxAlternatives < 1 {
		errs = append(errs, "recognition.maxalternatives must be at least 1")
	}
	if settings.SilenceThreshold < 0 || settings.SilenceThreshold > 100 {
		errs = append(errs, "recognition.silencethreshold must be between 0 and 100")
	}
	if settings.SilenceDuration <= 0 || settings.MaxSegment <= settings.SilenceDuration {
		errs = append(errs, "recognition.maxsegment must be longer than a positive recognition.silenceduration")
	}

	return joinErrors(errs)
}

func validateSynthesisSettings(settings *SynthesisSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string

	if settings.Provider != "polly" {
		errs = append(errs, fmt.Sprintf("synthesis.provider %q is not supported", settings.Provider))
	}
	switch settings.Engine {
	case "standard", "neural":
	default:
		errs = append(errs, fmt.Sprintf("synthesis.engine %q must be standard or neural", settings.Engine))
	}
	// Polly PCM output only supports these rates
	switch settings.SampleRate {
	case 8000, 16000:
	default:
		errs = append(errs, "synthesis.samplerate must be 8000 or 16000")
	}
	if settings.LanguagePrefix != "" {
		if _, err := language.ParseBase(settings.LanguagePrefix); err != nil {
			errs = append(errs, fmt.Sprintf("synthesis.languageprefix %q is not a valid language", settings.LanguagePrefix))
		}
	}

	return joinErrors(errs)
}

func validateTelemetrySettings(settings *TelemetrySettings) error {
	if settings.MetricsListen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.MetricsListen); err != nil {
		return fmt.Errorf("telemetry.metricslisten %q: %w", settings.MetricsListen, err)
	}
	return nil
}

func validFFTSize(n int) bool {
	return n >= MinFFTSize && n <= MaxFFTSize && n&(n-1) == 0
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}
