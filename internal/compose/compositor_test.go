package compose

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/wavio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClips maps dubbed audio paths to in-memory clips of fixed durations
type fakeClips map[string]*wavio.Clip

func (f fakeClips) load(path string) (*wavio.Clip, error) {
	clip, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("no clip at %s", path)
	}
	return clip, nil
}

func newTestClip(t *testing.T, durationMS int64) *wavio.Clip {
	t.Helper()
	c, err := wavio.NewSilence(durationMS, 8000, 1, 16)
	require.NoError(t, err)
	for i := range c.Samples() {
		c.Samples()[i] = 500
	}
	return c
}

func buildFixture(t *testing.T, starts []int64, durations []int64) (timeline.List, fakeClips) {
	t.Helper()
	require.Equal(t, len(starts), len(durations))

	clips := fakeClips{}
	list := make(timeline.List, len(starts))
	for i := range starts {
		path := fmt.Sprintf("/fake/tts_%d.wav", i+1)
		end := starts[i] + 500
		if i+1 < len(starts) && end > starts[i+1] {
			end = starts[i+1]
		}
		list[i] = timeline.Segment{
			Index:           i + 1,
			Start:           starts[i],
			End:             end,
			Speaker:         "S",
			DubbedAudioPath: path,
			Speed:           1.0,
		}
		clips[path] = newTestClip(t, durations[i])
	}
	return list, clips
}

func TestComposePushesOverrunningClipsForward(t *testing.T) {
	// Second clip overruns into the third's slot, pushing it back 500ms.
	list, clips := buildFixture(t, []int64{0, 2000, 5000}, []int64{1800, 3500, 1000})
	background := newTestClip(t, 10000)

	comp := NewCompositorWithLoader(clips.load)
	out, placements, err := comp.Compose(list, background)
	require.NoError(t, err)

	require.Len(t, placements, 3)
	assert.Equal(t, int64(0), placements[0].ActualMS)
	assert.Equal(t, int64(2000), placements[1].ActualMS)
	assert.Equal(t, int64(5500), placements[2].ActualMS)
	assert.Equal(t, int64(500), placements[2].DriftMS())

	// The background defines the output length
	assert.Equal(t, background.DurationMS(), out.DurationMS())
}

func TestComposeNoDriftWhenClipsFit(t *testing.T) {
	list, clips := buildFixture(t, []int64{0, 2000, 5000}, []int64{1500, 2500, 1000})
	background := newTestClip(t, 8000)

	comp := NewCompositorWithLoader(clips.load)
	_, placements, err := comp.Compose(list, background)
	require.NoError(t, err)

	for _, p := range placements {
		assert.Equal(t, p.DesiredMS, p.ActualMS, "segment %d must not drift", p.Index)
	}
}

func TestComposeClipsNeverOverlap(t *testing.T) {
	// Aggressively overrunning clips: the ordering guarantee must hold for
	// every consecutive pair regardless of how long the clips run.
	list, clips := buildFixture(t,
		[]int64{0, 100, 200, 300, 5000},
		[]int64{4000, 3000, 2000, 1000, 500})
	background := newTestClip(t, 20000)

	comp := NewCompositorWithLoader(clips.load)
	_, placements, err := comp.Compose(list, background)
	require.NoError(t, err)

	for i := 1; i < len(placements); i++ {
		prev, cur := placements[i-1], placements[i]
		assert.GreaterOrEqual(t, cur.ActualMS, prev.ActualMS+prev.DurationMS,
			"segments %d and %d overlap", prev.Index, cur.Index)
	}
}

func TestComposeMixesOntoBackground(t *testing.T) {
	list, clips := buildFixture(t, []int64{1000}, []int64{500})
	background := newTestClip(t, 3000)

	comp := NewCompositorWithLoader(clips.load)
	out, _, err := comp.Compose(list, background)
	require.NoError(t, err)

	samples := out.Samples()
	frame := func(ms int64) int { return int(ms * 8000 / 1000) }
	// Background only before the clip, background+clip inside it
	assert.Equal(t, 500, samples[frame(500)])
	assert.Equal(t, 1000, samples[frame(1200)])
	assert.Equal(t, 500, samples[frame(2000)])
}

func TestComposeNormalizesClipFormats(t *testing.T) {
	// TTS clips come back 24 kHz mono while separated stems keep the
	// source's 44.1 kHz stereo; composition converts to the bed's format
	// instead of failing.
	clip, err := wavio.NewSilence(800, 24000, 1, 16)
	require.NoError(t, err)
	for i := range clip.Samples() {
		clip.Samples()[i] = 300
	}
	clips := fakeClips{"/fake/tts_1.wav": clip}
	list := timeline.List{{
		Index: 1, Start: 1000, End: 1800, Speaker: "S",
		DubbedAudioPath: "/fake/tts_1.wav", Speed: 1.0,
	}}

	background, err := wavio.NewSilence(5000, 44100, 2, 16)
	require.NoError(t, err)

	out, placements, err := NewCompositorWithLoader(clips.load).Compose(list, background)
	require.NoError(t, err)
	require.Len(t, placements, 1)
	assert.Equal(t, int64(5000), out.DurationMS())
	assert.Equal(t, 44100, out.SampleRate())
	assert.Equal(t, 2, out.Channels())

	// Speech is audible in both channels inside the placement window and
	// absent outside it
	frame := func(ms int64) int { return int(ms * 44100 / 1000) }
	assert.Equal(t, 300, out.Samples()[frame(1200)*2])
	assert.Equal(t, 300, out.Samples()[frame(1200)*2+1])
	assert.Equal(t, 0, out.Samples()[frame(400)*2])
}

func TestComposeConcatFillsGapsAndPadsTail(t *testing.T) {
	newDub := func(durationMS int64) *wavio.Clip {
		c, err := wavio.NewSilence(durationMS, 24000, 1, 16)
		require.NoError(t, err)
		for i := range c.Samples() {
			c.Samples()[i] = 200
		}
		return c
	}
	clips := fakeClips{
		"/fake/tts_1.wav": newDub(1000),
		"/fake/tts_2.wav": newDub(950),
	}
	list := timeline.List{
		{Index: 1, Start: 1000, End: 2000, Speaker: "S", DubbedAudioPath: "/fake/tts_1.wav", Speed: 1.0},
		{Index: 2, Start: 2050, End: 3000, Speaker: "S", DubbedAudioPath: "/fake/tts_2.wav", Speed: 1.0},
	}

	// The fake ffmpeg decodes source slices in the source's own 44.1 kHz
	// stereo, the format mismatch the concat path has to absorb.
	var extractions [][]string
	rec := &recordingExecutor{run: func(args []string) error {
		extractions = append(extractions, append([]string(nil), args...))
		var seconds float64
		for i, a := range args {
			if a == "-t" {
				s, err := strconv.ParseFloat(args[i+1], 64)
				require.NoError(t, err)
				seconds = s
			}
		}
		slice, err := wavio.NewSilence(int64(seconds*1000), 44100, 2, 16)
		require.NoError(t, err)
		return slice.WriteFile(args[len(args)-3])
	}}

	gaps := NewGapExtractorWithExecutor(context.Background(), t.TempDir(), rec)
	out, err := NewCompositorWithLoader(clips.load).ComposeConcat(list, gaps, "/media/source.mp4", 5000)
	require.NoError(t, err)

	// The 1000ms leading gap is filled, the 50ms gap between the turns is
	// below the fill threshold, and the tail is padded out to the source
	// duration: 1000 + 1000 + 950 + 2050 = 5000.
	require.Len(t, extractions, 2)
	assert.Contains(t, extractions[0], "0.000")
	assert.Contains(t, extractions[0], "1.000")
	assert.Contains(t, extractions[1], "3.000")
	assert.Contains(t, extractions[1], "2.050")

	assert.Equal(t, int64(5000), out.DurationMS())
	assert.Equal(t, 44100, out.SampleRate())
	assert.Equal(t, 2, out.Channels())
}

func TestComposeFailsOnMissingDubbedAudio(t *testing.T) {
	list, clips := buildFixture(t, []int64{0}, []int64{500})
	list[0].DubbedAudioPath = ""
	background := newTestClip(t, 2000)

	comp := NewCompositorWithLoader(clips.load)
	_, _, err := comp.Compose(list, background)
	assert.Error(t, err)
}

func TestGapExtractorRejectsNonPositiveDuration(t *testing.T) {
	g := NewGapExtractor(context.Background(), t.TempDir())

	_, err := g.Extract("/fake/video.mp4", 1000, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = g.Extract("/fake/video.mp4", 1000, -200)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

type recordingExecutor struct {
	name string
	args []string
	run  func(args []string) error
}

func (r *recordingExecutor) ExecuteCommand(_ context.Context, name string, args []string) ([]byte, error) {
	r.name = name
	r.args = args
	if r.run != nil {
		return nil, r.run(args)
	}
	return nil, nil
}

func TestGapExtractorInvokesFFmpegWithExactRange(t *testing.T) {
	scratch := t.TempDir()
	rec := &recordingExecutor{run: func(args []string) error {
		// Simulate ffmpeg writing the slice it was asked for
		clip := newTestClip(t, 250)
		return clip.WriteFile(args[len(args)-3])
	}}

	g := NewGapExtractorWithExecutor(context.Background(), scratch, rec)
	clip, err := g.Extract("/media/source.mp4", 1500, 250)
	require.NoError(t, err)

	assert.Equal(t, "ffmpeg", rec.name)
	assert.Contains(t, rec.args, "1.500")
	assert.Contains(t, rec.args, "0.250")
	assert.Contains(t, rec.args, "/media/source.mp4")
	assert.Equal(t, int64(250), clip.DurationMS())
}
