// Package dubsync reconciles synthesized clip durations against the source
// timeline: it stretches, pads or trims a clip toward a target window and
// plans the playback speed needed for a dubbed turn to fit before the next
// original speech onset.
package dubsync

import (
	"errors"
	"fmt"

	"github.com/dubflow/dubflow/internal/wavio"
)

// ErrNonPositiveTarget is returned when a caller asks for a clip of zero or
// negative length. That is always a caller bug, never recoverable here.
var ErrNonPositiveTarget = errors.New("target duration must be positive")

const (
	// DefaultToleranceMS is how far off the target a clip may be before any
	// stretch, pad or trim work is worth doing.
	DefaultToleranceMS = 10

	// DefaultMaxStretch caps the stretch ratio; beyond 2x the artifacts are
	// louder than the timing error being fixed.
	DefaultMaxStretch = 2.0

	// maxCrossfadeMS bounds the seam crossfade used while stretching
	maxCrossfadeMS = 25
)

// SyncOptions tunes Synchronize. The zero value selects the defaults.
type SyncOptions struct {
	ToleranceMS int64
	MaxStretch  float64
}

func (o SyncOptions) withDefaults() SyncOptions {
	if o.ToleranceMS == 0 {
		o.ToleranceMS = DefaultToleranceMS
	}
	if o.MaxStretch == 0 {
		o.MaxStretch = DefaultMaxStretch
	}
	return o
}

// Synchronize returns a clip whose length is within tolerance of targetMS,
// or exactly targetMS when a hard trim was required. The input clip is never
// modified. Stretching is bounded by MaxStretch, so the pad/trim step after
// it is the final correctness guarantee and always runs.
func Synchronize(clip *wavio.Clip, targetMS int64, opts SyncOptions) (*wavio.Clip, error) {
	if targetMS <= 0 {
		return nil, fmt.Errorf("%w: got %dms", ErrNonPositiveTarget, targetMS)
	}
	o := opts.withDefaults()

	cur := clip.DurationMS()
	if abs64(cur-targetMS) <= o.ToleranceMS {
		// Fast path: already close enough, skip the re-encode entirely.
		return clip, nil
	}

	out := clip
	if cur > 0 {
		var speed float64
		if cur > targetMS {
			ratio := float64(cur) / float64(targetMS)
			if ratio > o.MaxStretch {
				ratio = o.MaxStretch
			}
			speed = ratio
		} else {
			ratio := float64(targetMS) / float64(cur)
			if ratio > o.MaxStretch {
				ratio = o.MaxStretch
			}
			speed = 1 / ratio
		}
		out = clip.Stretch(speed, seamCrossfadeMS(cur))
	}

	// Residual pad or trim. A clamped ratio can leave the clip outside
	// tolerance, so this step must not be skipped.
	diff := targetMS - out.DurationMS()
	switch {
	case diff > o.ToleranceMS:
		if out == clip {
			out = clip.Clone()
		}
		out.AppendSilence(diff)
	case diff < -o.ToleranceMS:
		if out == clip {
			out = clip.Clone()
		}
		out.TrimTo(targetMS)
	}

	return out, nil
}

// seamCrossfadeMS scales the stretch crossfade down for very short clips so
// the fade never swallows the clip itself.
func seamCrossfadeMS(clipMS int64) int64 {
	fade := clipMS / 10
	if fade > maxCrossfadeMS {
		fade = maxCrossfadeMS
	}
	if fade < 1 {
		fade = 1
	}
	return fade
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
