package voice

// CapabilitySet records which capabilities the host environment offers.
type CapabilitySet struct {
	Capture     bool `json:"capture"`
	Recognition bool `json:"recognition"`
	Synthesis   bool `json:"synthesis"`
}

// All reports whether every capability is available.
func (c CapabilitySet) All() bool {
	return c.Capture && c.Recognition && c.Synthesis
}

// Probe detects available capabilities. It has no side effects and no
// failure mode: a missing API is reported as false.
func Probe(p Platform) CapabilitySet {
	return CapabilitySet{
		Capture:     p.Capture != nil && p.Capture.Available(),
		Recognition: p.Recognition != nil && p.Recognition.Available(),
		Synthesis:   p.Synthesis != nil && p.Synthesis.Available(),
	}
}
