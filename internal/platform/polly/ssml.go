package polly

import (
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"math"
	"strings"
)

// Prosody limits accepted by Polly.
const (
	minRatePercent  = 20
	maxRatePercent  = 200
	minPitchPercent = -33
	maxPitchPercent = 50
)

// buildSSML wraps text in a prosody element. Neural voices ignore pitch, so
// it is only emitted for the standard engine.
func buildSSML(text string, rate, pitch float64, withPitch bool) (string, error) {
	var escaped strings.Builder
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", fmt.Errorf("escape text: %w", err)
	}

	ratePct := clampInt(int(math.Round(rate*100)), minRatePercent, maxRatePercent)
	attrs := fmt.Sprintf(`rate="%d%%"`, ratePct)
	if withPitch {
		pitchPct := clampInt(int(math.Round((pitch-1)*100)), minPitchPercent, maxPitchPercent)
		attrs += fmt.Sprintf(` pitch="%+d%%"`, pitchPct)
	}

	return fmt.Sprintf("<speak><prosody %s>%s</prosody></speak>", attrs, escaped.String()), nil
}

// applyGain scales little-endian 16-bit PCM in place. Volume is clamped
// to 0..1.
func applyGain(pcm []byte, volume float64) {
	volume = min(max(volume, 0), 1)
	if volume == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(math.Round(float64(s)*volume))))
	}
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
