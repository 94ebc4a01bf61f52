// env.go - Environment variable configuration and validation for voicekit
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every automatically bound environment variable,
// e.g. VOICEKIT_CAPTURE_DEVICE for capture.device.
const EnvPrefix = "VOICEKIT"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the explicitly bound environment variables. Keys not
// listed here are still reachable through the VOICEKIT_ prefix.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"capture.device", "VOICEKIT_CAPTURE_DEVICE", nil},
		{"capture.backend", "VOICEKIT_CAPTURE_BACKEND", validateEnvBackend},
		{"capture.samplerate", "VOICEKIT_CAPTURE_SAMPLERATE", validateEnvPositiveInt},
		{"capture.permission", "VOICEKIT_CAPTURE_PERMISSION", validateEnvPermission},
		{"analysis.fftsize", "VOICEKIT_ANALYSIS_FFTSIZE", validateEnvFFTSize},

		// Provider credentials under their conventional names
		{"recognition.apikey", "OPENAI_API_KEY", nil},
		{"synthesis.region", "AWS_REGION", nil},
		{"telemetry.dsn", "SENTRY_DSN", nil},

		{"debug", "VOICEKIT_DEBUG", validateEnvBool},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateEnvFFTSize(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || !validFFTSize(n) {
		return fmt.Errorf("must be a power of two between %d and %d", MinFFTSize, MaxFFTSize)
	}
	return nil
}

func validateEnvBackend(value string) error {
	switch strings.ToLower(value) {
	case BackendAuto, BackendALSA, BackendPulseAudio, BackendWASAPI, BackendCoreAudio, BackendNull:
		return nil
	}
	return fmt.Errorf("unknown backend")
}

func validateEnvPermission(value string) error {
	switch strings.ToLower(value) {
	case PermissionAuto, PermissionGranted, PermissionDenied, PermissionPrompt:
		return nil
	}
	return fmt.Errorf("must be one of auto, granted, denied, prompt")
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return bindEnvVars(v)
}
