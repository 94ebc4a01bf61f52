package whisper

import (
	"time"

	"github.com/tphakala/voicekit/internal/audiograph"
)

// segmenter splits a PCM stream into utterances using the RMS level. Audio
// before speech is dropped except for the latest chunk, kept as pre-roll.
type segmenter struct {
	threshold    int
	silenceBytes int
	maxBytes     int

	buf     []byte
	speech  bool
	silence int
}

func newSegmenter(threshold float64, silence, maxSegment time.Duration, bytesPerSecond int) *segmenter {
	return &segmenter{
		threshold:    int(threshold),
		silenceBytes: durationBytes(silence, bytesPerSecond),
		maxBytes:     durationBytes(maxSegment, bytesPerSecond),
	}
}

// durationBytes converts d to a whole number of 16-bit samples.
func durationBytes(d time.Duration, bytesPerSecond int) int {
	n := int(d.Seconds() * float64(bytesPerSecond))
	return n &^ 1
}

// push adds a chunk and returns a completed segment, if any.
func (s *segmenter) push(chunk []byte) []byte {
	loud := audiograph.PCMLevel(chunk).Level >= s.threshold

	if !s.speech {
		if !loud {
			s.buf = append(s.buf[:0], chunk...)
			return nil
		}
		s.speech = true
	}

	s.buf = append(s.buf, chunk...)
	if loud {
		s.silence = 0
	} else {
		s.silence += len(chunk)
	}

	if s.silence >= s.silenceBytes || (s.maxBytes > 0 && len(s.buf) >= s.maxBytes) {
		return s.cut()
	}
	return nil
}

// flush returns pending speech, or nil when none was heard.
func (s *segmenter) flush() []byte {
	if !s.speech {
		s.buf = s.buf[:0]
		return nil
	}
	return s.cut()
}

func (s *segmenter) cut() []byte {
	seg := s.buf
	s.buf = nil
	s.speech = false
	s.silence = 0
	return seg
}
