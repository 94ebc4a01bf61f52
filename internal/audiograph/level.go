package audiograph

import (
	"encoding/binary"
	"math"
)

// Level is a perceptual loudness reading.
type Level struct {
	Level    int  `json:"level"`    // 0-100
	Clipping bool `json:"clipping"` // true if a sample hit full scale
}

// PCMLevel calculates the level of little-endian signed 16-bit PCM. A trailing
// odd byte is ignored.
func PCMLevel(pcm []byte) Level {
	n := len(pcm) / 2
	if n == 0 {
		return Level{}
	}

	var sum float64
	clipping := false
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		if sample == math.MaxInt16 || sample == math.MinInt16 {
			clipping = true
		}
		f := float64(sample)
		sum += f * f
	}

	return scaleLevel(math.Sqrt(sum/float64(n)), clipping)
}

// fullScale is the largest positive 16-bit sample normalised to [-1, 1].
const fullScale = 32767.0 / 32768.0

// floatLevel calculates the level of normalised samples in [-1, 1].
func floatLevel(samples []float64) Level {
	if len(samples) == 0 {
		return Level{}
	}

	var sum float64
	clipping := false
	for _, s := range samples {
		if math.Abs(s) >= fullScale {
			clipping = true
		}
		sum += s * s
	}

	return scaleLevel(math.Sqrt(sum/float64(len(samples)))*32768.0, clipping)
}

// scaleLevel maps an RMS in 16-bit units onto 0-100: -60 dBFS and below is
// 0, -10 dBFS and above is 100. Clipping forces at least 95.
func scaleLevel(rms float64, clipping bool) Level {
	if rms <= 0 {
		if clipping {
			return Level{Level: 95, Clipping: true}
		}
		return Level{}
	}

	db := 20 * math.Log10(rms/32768.0)
	scaled := (db + 60) * (100.0 / 50.0)

	if clipping {
		scaled = math.Max(scaled, 95)
	}

	scaled = math.Max(0, math.Min(100, scaled))

	return Level{Level: int(scaled), Clipping: clipping}
}
