// Package compose assembles per-segment dubbed clips and source background
// audio into the final dubbed track.
package compose

import (
	"fmt"

	"github.com/dubflow/dubflow/internal/dubsync"
	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/utils"
	"github.com/dubflow/dubflow/internal/wavio"
)

// Placement records where one dubbed clip actually landed on the output
// track relative to where the source timing wanted it.
type Placement struct {
	Index      int
	DesiredMS  int64
	ActualMS   int64
	DurationMS int64
}

// DriftMS returns how far the clip was pushed past its original timestamp
func (p Placement) DriftMS() int64 {
	return p.ActualMS - p.DesiredMS
}

// LoadClip resolves a segment's dubbed clip from disk. Overridable in tests
// so composition can run against synthetic buffers.
type LoadClip func(path string) (*wavio.Clip, error)

// Compositor places dubbed clips onto a background track
type Compositor struct {
	loadClip LoadClip
}

// NewCompositor creates a compositor that reads clips from WAV files
func NewCompositor() *Compositor {
	return &Compositor{loadClip: wavio.ReadFile}
}

// NewCompositorWithLoader creates a compositor with a custom clip loader
func NewCompositorWithLoader(load LoadClip) *Compositor {
	return &Compositor{loadClip: load}
}

// Compose overlays every segment's dubbed clip onto a copy of the background
// track. Original timing is a preference only: each clip is placed at its
// source start or directly after the previous clip, whichever is later, so
// dubbed clips never overlap each other. Placement is forward-only; drift is
// logged but never corrected or treated as an error.
func (c *Compositor) Compose(segments timeline.List, background *wavio.Clip) (*wavio.Clip, []Placement, error) {
	output := background.Clone()
	placements := make([]Placement, 0, len(segments))

	var currentPositionMS int64
	for _, seg := range segments {
		if seg.DubbedAudioPath == "" {
			return nil, nil, fmt.Errorf("segment %d has no dubbed audio", seg.Index)
		}
		clip, err := c.loadClip(seg.DubbedAudioPath)
		if err != nil {
			return nil, nil, fmt.Errorf("segment %d: failed to load dubbed clip: %w", seg.Index, err)
		}
		// TTS clips are not in the stem's format; the background bed wins
		if !background.SameFormat(clip) {
			clip, err = clip.ConvertTo(background.SampleRate(), background.Channels(), background.BitDepth())
			if err != nil {
				return nil, nil, fmt.Errorf("segment %d: %w", seg.Index, err)
			}
		}

		desired := seg.Start
		actual := desired
		if currentPositionMS > actual {
			actual = currentPositionMS
		}

		if actual > desired {
			utils.LogWarning("Segment %d drifted %dms past its source timestamp (placed at %dms)",
				seg.Index, actual-desired, actual)
		}
		utils.LogVerbose("Segment %d: desired %dms, placed %dms, length %dms",
			seg.Index, desired, actual, clip.DurationMS())

		if err := output.Overlay(clip, actual); err != nil {
			return nil, nil, fmt.Errorf("segment %d: %w", seg.Index, err)
		}

		placements = append(placements, Placement{
			Index:      seg.Index,
			DesiredMS:  desired,
			ActualMS:   actual,
			DurationMS: clip.DurationMS(),
		})
		currentPositionMS = actual + clip.DurationMS()
	}

	return output, placements, nil
}

// ComposeConcat is the legacy composition path: dubbed clips are synchronized
// to their original windows and concatenated in order, with gap audio from
// the source filling inter-segment silences and padding out the tail to the
// source duration. Kept for sources whose background track cannot be
// separated cleanly.
func (c *Compositor) ComposeConcat(segments timeline.List, gaps *GapExtractor, source string, totalDurationMS int64) (*wavio.Clip, error) {
	var output *wavio.Clip
	var previousEndMS int64

	// The first clip defines the track format; gap slices keep the source's
	// rate and channels while dubbed clips are in the TTS engine's, so later
	// clips are converted before concatenation.
	appendClip := func(clip *wavio.Clip) error {
		if output == nil {
			output = clip.Clone()
			return nil
		}
		if !output.SameFormat(clip) {
			converted, err := clip.ConvertTo(output.SampleRate(), output.Channels(), output.BitDepth())
			if err != nil {
				return err
			}
			clip = converted
		}
		return output.Append(clip)
	}

	for _, seg := range segments {
		// Fill the silence before this turn with source ambience. Gaps
		// shorter than half a second are not worth a decode round-trip.
		if gap := seg.Start - previousEndMS; gap >= minGapMS {
			gapClip, err := gaps.Extract(source, previousEndMS, gap)
			if err != nil {
				return nil, fmt.Errorf("segment %d: failed to extract gap audio: %w", seg.Index, err)
			}
			if err := appendClip(gapClip); err != nil {
				return nil, fmt.Errorf("segment %d: %w", seg.Index, err)
			}
		}

		clip, err := c.loadClip(seg.DubbedAudioPath)
		if err != nil {
			return nil, fmt.Errorf("segment %d: failed to load dubbed clip: %w", seg.Index, err)
		}
		synced, err := dubsync.Synchronize(clip, seg.DurationMS(), dubsync.SyncOptions{})
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", seg.Index, err)
		}
		if err := appendClip(synced); err != nil {
			return nil, fmt.Errorf("segment %d: %w", seg.Index, err)
		}

		previousEndMS = seg.End
	}

	if output == nil {
		return nil, fmt.Errorf("no segments to compose")
	}

	// Pad the tail with source ambience up to the full video duration
	if residual := totalDurationMS - output.DurationMS(); residual > 0 {
		gapClip, err := gaps.Extract(source, previousEndMS, residual)
		if err != nil {
			return nil, fmt.Errorf("failed to extract trailing gap audio: %w", err)
		}
		if err := output.Append(gapClip); err != nil {
			return nil, err
		}
	}

	return output, nil
}

// minGapMS is the shortest inter-segment silence worth filling with source
// audio in the legacy concat path.
const minGapMS = 500
