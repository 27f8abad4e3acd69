// Package timeline holds the segment timing model shared by every pipeline
// stage: an ordered list of speaker turns with timing, text and synthesized
// audio metadata.
package timeline

import (
	"fmt"
	"math"
)

// Speed bounds applied to any non-default playback speed before it is
// persisted. Values outside this range distort speech too audibly.
const (
	MinSpeed = 0.8
	MaxSpeed = 1.3

	// DefaultSpeed means the clip was synthesized at its natural rate.
	DefaultSpeed = 1.0
)

// Segment is one speaker turn on the source timeline. Start and End are
// original-audio timestamps in milliseconds. Diarization emits seconds;
// FromSeconds converts at ingest so everything downstream works in ms.
type Segment struct {
	Index           int     `json:"index"`
	Start           int64   `json:"start"`
	End             int64   `json:"end"`
	Speaker         string  `json:"speaker"`
	Gender          string  `json:"gender"`
	Text            string  `json:"text"`
	AudioPath       string  `json:"audio_path,omitempty"`
	TranslatedText  string  `json:"translated_text,omitempty"`
	DubbedAudioPath string  `json:"dubbed_audio_path,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
}

// DurationMS returns the length of the original speaker turn
func (s Segment) DurationMS() int64 {
	return s.End - s.Start
}

// List is an ordered collection of segments. Stages never mutate a list they
// received; they Clone it, fill in their fields and return the copy.
type List []Segment

// Clone returns a deep copy of the list
func (l List) Clone() List {
	out := make(List, len(l))
	copy(out, l)
	return out
}

// NextStartAfter returns the start time of the first segment whose start is
// strictly greater than startMS. ok is false when no such segment exists,
// i.e. startMS belongs to the last turn on the timeline.
func (l List) NextStartAfter(startMS int64) (int64, bool) {
	for _, seg := range l {
		if seg.Start <= startMS {
			continue
		}
		return seg.Start, true
	}
	return 0, false
}

// Validate checks the structural invariants of a loaded segment list:
// positive durations, ascending starts and a gap-free 1-based index.
func (l List) Validate() error {
	prevStart := int64(math.MinInt64)
	for i, seg := range l {
		if seg.Start >= seg.End {
			return fmt.Errorf("segment %d: start %dms is not before end %dms", seg.Index, seg.Start, seg.End)
		}
		if seg.Index != i+1 {
			return fmt.Errorf("segment at position %d has index %d, want %d", i, seg.Index, i+1)
		}
		if seg.Start < prevStart {
			return fmt.Errorf("segment %d: start %dms is before previous segment start %dms", seg.Index, seg.Start, prevStart)
		}
		prevStart = seg.Start
	}
	return nil
}

// ClampSpeed bounds a computed speed to [MinSpeed, MaxSpeed]
func ClampSpeed(speed float64) float64 {
	if speed > MaxSpeed {
		return MaxSpeed
	}
	if speed < MinSpeed {
		return MinSpeed
	}
	return speed
}

// FromSeconds converts a seconds-based timestamp from the diarization
// collaborator into the millisecond unit used everywhere after load.
func FromSeconds(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}

// SecondsOf converts a millisecond timestamp back to seconds for external
// tools that take fractional-second offsets (ffmpeg -ss/-t).
func SecondsOf(ms int64) float64 {
	return float64(ms) / 1000.0
}
