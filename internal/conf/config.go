// conf/config.go settings model and loading for voicekit
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/voicekit/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings holds the complete voicekit configuration.
type Settings struct {
	Debug bool `yaml:"debug"`

	Capture     CaptureSettings      `yaml:"capture"`
	Analysis    AnalysisSettings     `yaml:"analysis"`
	Recognition RecognitionSettings  `yaml:"recognition"`
	Synthesis   SynthesisSettings    `yaml:"synthesis"`
	Logging     logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Telemetry   TelemetrySettings    `yaml:"telemetry"`
}

// CaptureSettings controls microphone acquisition.
type CaptureSettings struct {
	Device           string `yaml:"device"`           // device name or ID, "sysdefault" selects the system default
	Backend          string `yaml:"backend"`          // auto, alsa, pulseaudio, wasapi, coreaudio, null
	EchoCancellation bool   `yaml:"echocancellation"` // request echo cancellation
	NoiseSuppression bool   `yaml:"noisesuppression"` // request noise suppression
	AutoGain         bool   `yaml:"autogain"`         // request automatic gain control
	SampleRate       int    `yaml:"samplerate"`       // ideal sample rate
	MinSampleRate    int    `yaml:"minsamplerate"`    // lowest acceptable sample rate
	Channels         int    `yaml:"channels"`         // channel count
	Permission       string `yaml:"permission"`       // auto, granted, denied, prompt
}

// AnalysisSettings controls the analyser node.
type AnalysisSettings struct {
	FFTSize     int     `yaml:"fftsize"`     // transform window, power of two
	Smoothing   float64 `yaml:"smoothing"`   // time constant 0..1
	MinDecibels float64 `yaml:"mindecibels"` // floor of the byte frequency scale
	MaxDecibels float64 `yaml:"maxdecibels"` // ceiling of the byte frequency scale
}

// RecognitionSettings controls speech-to-text.
type RecognitionSettings struct {
	Enabled          bool          `yaml:"enabled"`
	Provider         string        `yaml:"provider"` // whisper
	APIKey           string        `yaml:"apikey"`
	BaseURL          string        `yaml:"baseurl"`
	Model            string        `yaml:"model"`
	Language         string        `yaml:"language"`
	Continuous       bool          `yaml:"continuous"`
	InterimResults   bool          `yaml:"interimresults"`
	MaxAlternatives  int           `yaml:"maxalternatives"`
	SilenceThreshold float64       `yaml:"silencethreshold"` // level 0..100 below which audio counts as silence
	SilenceDuration  time.Duration `yaml:"silenceduration"`  // silence that ends a segment
	MaxSegment       time.Duration `yaml:"maxsegment"`       // hard cap on one segment
	StopPrevious     bool          `yaml:"stopprevious"`     // stop the tracked session before starting a new one
}

// SynthesisSettings controls text-to-speech.
type SynthesisSettings struct {
	Enabled        bool          `yaml:"enabled"`
	Provider       string        `yaml:"provider"` // polly
	Region         string        `yaml:"region"`
	Engine         string        `yaml:"engine"` // standard, neural
	Voice          string        `yaml:"voice"`
	LanguagePrefix string        `yaml:"languageprefix"`
	SampleRate     int           `yaml:"samplerate"`
	VoiceCacheTTL  time.Duration `yaml:"voicecachettl"`
}

// TelemetrySettings controls error reporting and metrics exposure.
type TelemetrySettings struct {
	Enabled       bool   `yaml:"enabled"`
	DSN           string `yaml:"dsn"`
	MetricsListen string `yaml:"metricslisten"` // empty disables the /metrics endpoint
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the
// process-wide viper instance and returns validated settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	v := viper.GetViper()
	if err := initViper(v); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := decode(v)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadFile reads settings from an explicit config file on a private viper
// instance. Missing keys fall back to defaults.
func LoadFile(path string) (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)
	if err := configureEnvironmentVariables(v); err != nil {
		return nil, err
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper sets defaults, environment bindings and reads the config file.
func initViper(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		// Bad environment values are reported but do not stop startup.
		fmt.Fprintf(os.Stderr, "voicekit: %v\n", err)
	}

	err = v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(v)
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the user config
// directory and reads it back.
func createDefaultConfig(v *viper.Viper) error {
	dir, err := userConfigDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(dir, "config.yaml")

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Created default config file at:", configPath)
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// GetSettings returns the settings loaded by the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Redacted returns a copy of the settings with secrets masked, suitable for
// printing.
func (s *Settings) Redacted() Settings {
	out := *s
	if out.Recognition.APIKey != "" {
		out.Recognition.APIKey = redactedValue
	}
	if out.Telemetry.DSN != "" {
		out.Telemetry.DSN = redactedValue
	}
	return out
}

// SaveYAMLConfig writes settings to configPath atomically through a
// temporary file in the same directory.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName) //nolint:errcheck // already renamed on success

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error renaming temporary file: %w", err)
	}
	return nil
}
