package dubsync

import (
	"math"

	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/utils"
)

// SpeedFloorFallback is applied when the reference window comes out negative,
// which means diarization emitted overlapping or out-of-order turns. Slowing
// slightly is the least bad option when there is no real budget to fit.
const SpeedFloorFallback = timeline.MinSpeed

// Plan is the outcome of speed planning for one segment
type Plan struct {
	// Speed is the unclamped ratio that would make the clip exactly fill
	// the window, rounded up to the nearest 0.1.
	Speed float64
	// Applied is Speed clamped to the persistable range
	Applied float64
	// Resynthesize reports whether the clip must be generated again at the
	// applied speed. Synthesis is expensive, so it is skipped whenever the
	// natural rendering already fits exactly.
	Resynthesize bool
}

// PlanSpeed computes the playback speed needed for a dubbed clip of dubbedMS
// to fit between startMS and the next original speech onset on the timeline.
//
// When the segment is the last on the timeline there is no reference window
// and the clip is left at its natural speed; the remaining video duration is
// not treated as a budget because the planner has no video-length input.
func PlanSpeed(startMS int64, segments timeline.List, dubbedMS int64) Plan {
	nextStart, ok := segments.NextStartAfter(startMS)
	if !ok {
		return planFor(timeline.DefaultSpeed)
	}
	return PlanSpeedForWindow(nextStart-startMS, dubbedMS)
}

// PlanSpeedForWindow plans against an explicit reference window. A negative
// window cannot arise from an ordered timeline but is reachable with
// overlapping diarization output, so it gets a named defensive fallback
// instead of a panic or a silent division.
func PlanSpeedForWindow(referenceMS, dubbedMS int64) Plan {
	switch {
	case referenceMS > 0:
		// Round up to the nearest 0.1 so the sped-up clip never overruns
		// the budget after rounding.
		return planFor(math.Ceil(float64(dubbedMS)/float64(referenceMS)*10) / 10)
	case referenceMS < 0:
		utils.LogWarning("Negative reference window %dms (overlapping segments); falling back to speed %.1f",
			referenceMS, SpeedFloorFallback)
		return planFor(SpeedFloorFallback)
	default:
		return planFor(timeline.DefaultSpeed)
	}
}

func planFor(speed float64) Plan {
	return Plan{
		Speed:        speed,
		Applied:      timeline.ClampSpeed(speed),
		Resynthesize: speed != timeline.DefaultSpeed,
	}
}
