package voice

import "github.com/tphakala/voicekit/internal/conf"

// SampleRateRange is an ideal sample rate with an acceptable floor.
type SampleRateRange struct {
	Ideal int
	Min   int
}

// Constraints is the fully merged request passed to the capture device.
type Constraints struct {
	DeviceID         string
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	SampleRate       SampleRateRange
	ChannelCount     int
}

// DefaultConstraints returns echo cancellation, noise suppression and
// auto-gain on, 44100 Hz ideal with a 16000 Hz floor, mono.
func DefaultConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		SampleRate:       SampleRateRange{Ideal: conf.DefaultSampleRate, Min: conf.MinSampleRate},
		ChannelCount:     conf.DefaultChannels,
	}
}

// ConstraintsFromSettings builds capture defaults from configuration.
func ConstraintsFromSettings(s *conf.CaptureSettings) Constraints {
	c := DefaultConstraints()
	if s == nil {
		return c
	}
	if s.Device != "" && s.Device != "sysdefault" {
		c.DeviceID = s.Device
	}
	c.EchoCancellation = s.EchoCancellation
	c.NoiseSuppression = s.NoiseSuppression
	c.AutoGainControl = s.AutoGain
	if s.SampleRate > 0 {
		c.SampleRate.Ideal = s.SampleRate
	}
	if s.MinSampleRate > 0 {
		c.SampleRate.Min = s.MinSampleRate
	}
	if s.Channels > 0 {
		c.ChannelCount = s.Channels
	}
	return c
}

// CaptureConfig is a caller's capture request. Unset fields fall back to the
// manager's defaults.
type CaptureConfig struct {
	DeviceID         string
	EchoCancellation *bool
	NoiseSuppression *bool
	AutoGainControl  *bool
	SampleRate       int // ideal
	MinSampleRate    int
	ChannelCount     int
}

// merge overlays the explicitly set fields of c on defaults.
func (c CaptureConfig) merge(defaults Constraints) Constraints {
	out := defaults
	if c.DeviceID != "" {
		out.DeviceID = c.DeviceID
	}
	if c.EchoCancellation != nil {
		out.EchoCancellation = *c.EchoCancellation
	}
	if c.NoiseSuppression != nil {
		out.NoiseSuppression = *c.NoiseSuppression
	}
	if c.AutoGainControl != nil {
		out.AutoGainControl = *c.AutoGainControl
	}
	if c.SampleRate > 0 {
		out.SampleRate.Ideal = c.SampleRate
	}
	if c.MinSampleRate > 0 {
		out.SampleRate.Min = c.MinSampleRate
	}
	if c.ChannelCount > 0 {
		out.ChannelCount = c.ChannelCount
	}
	return out
}

// Bool returns a pointer to b, for CaptureConfig literals.
func Bool(b bool) *bool { return &b }

// RecognitionOptions overrides recognition defaults per call. Nil or zero
// fields keep the default.
type RecognitionOptions struct {
	Language        string
	Continuous      *bool
	InterimResults  *bool
	MaxAlternatives int
}

// RecognitionConfig is the merged session configuration.
type RecognitionConfig struct {
	Language        string
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
}

// DefaultRecognitionConfig returns en-US, single-shot, final results only,
// one alternative.
func DefaultRecognitionConfig() RecognitionConfig {
	return RecognitionConfig{
		Language:        "en-US",
		MaxAlternatives: 1,
	}
}

func (o RecognitionOptions) merge(defaults RecognitionConfig) RecognitionConfig {
	out := defaults
	if o.Language != "" {
		out.Language = o.Language
	}
	if o.Continuous != nil {
		out.Continuous = *o.Continuous
	}
	if o.InterimResults != nil {
		out.InterimResults = *o.InterimResults
	}
	if o.MaxAlternatives > 0 {
		out.MaxAlternatives = o.MaxAlternatives
	}
	return out
}

// SpeakOptions are delivery parameters for one utterance. Zero values select
// normal rate, pitch and full volume.
type SpeakOptions struct {
	Rate   float64
	Pitch  float64
	Volume *float64
	Voice  string
}

func (o SpeakOptions) utterance(text string) Utterance {
	u := Utterance{Text: text, Rate: 1, Pitch: 1, Volume: 1, Voice: o.Voice}
	if o.Rate > 0 {
		u.Rate = o.Rate
	}
	if o.Pitch > 0 {
		u.Pitch = o.Pitch
	}
	if o.Volume != nil {
		u.Volume = min(max(*o.Volume, 0), 1)
	}
	return u
}
