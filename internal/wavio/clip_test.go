package wavio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRate     = 8000
	testChannels = 1
	testDepth    = 16
)

// toneClip builds a mono clip of the given duration filled with a constant
// sample value, which makes mixing arithmetic easy to assert on.
func toneClip(t *testing.T, durationMS int64, value int) *Clip {
	t.Helper()
	c, err := NewSilence(durationMS, testRate, testChannels, testDepth)
	require.NoError(t, err)
	for i := range c.Samples() {
		c.Samples()[i] = value
	}
	return c
}

func TestNewClipRejectsBadFormat(t *testing.T) {
	_, err := NewClip(nil, 0, 1, 16)
	assert.Error(t, err)

	_, err = NewClip([]int{1, 2, 3}, testRate, 2, 16)
	assert.Error(t, err, "odd sample count for stereo")
}

func TestSilenceDuration(t *testing.T) {
	c, err := NewSilence(1500, testRate, testChannels, testDepth)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), c.DurationMS())
	assert.Equal(t, 12000, c.Frames())
}

func TestSliceClampsToBounds(t *testing.T) {
	c := toneClip(t, 1000, 100)

	mid := c.Slice(250, 750)
	assert.Equal(t, int64(500), mid.DurationMS())

	over := c.Slice(500, 5000)
	assert.Equal(t, int64(500), over.DurationMS())

	empty := c.Slice(900, 100)
	assert.Equal(t, 0, empty.Frames())
}

func TestAppendAndAppendSilence(t *testing.T) {
	a := toneClip(t, 400, 50)
	b := toneClip(t, 600, 70)

	require.NoError(t, a.Append(b))
	assert.Equal(t, int64(1000), a.DurationMS())

	a.AppendSilence(500)
	assert.Equal(t, int64(1500), a.DurationMS())

	a.AppendSilence(-10) // no-op
	assert.Equal(t, int64(1500), a.DurationMS())
}

func TestAppendRejectsFormatMismatch(t *testing.T) {
	a := toneClip(t, 100, 0)
	stereo, err := NewSilence(100, testRate, 2, testDepth)
	require.NoError(t, err)

	assert.Error(t, a.Append(stereo))
}

func TestTrimTo(t *testing.T) {
	c := toneClip(t, 1000, 10)
	c.TrimTo(300)
	assert.Equal(t, int64(300), c.DurationMS())

	// Trimming longer than the clip leaves it unchanged
	c.TrimTo(900)
	assert.Equal(t, int64(300), c.DurationMS())
}

func TestOverlayMixesAdditively(t *testing.T) {
	base := toneClip(t, 1000, 100)
	over := toneClip(t, 200, 25)

	require.NoError(t, base.Overlay(over, 500))

	samples := base.Samples()
	before := samples[base.framesFor(400)]
	mixed := samples[base.framesFor(550)]
	after := samples[base.framesFor(800)]

	assert.Equal(t, 100, before)
	assert.Equal(t, 125, mixed)
	assert.Equal(t, 100, after)
	// Overlay never changes the base length
	assert.Equal(t, int64(1000), base.DurationMS())
}

func TestOverlayClampsToSampleRange(t *testing.T) {
	base := toneClip(t, 100, math.MaxInt16-5)
	over := toneClip(t, 100, 1000)

	require.NoError(t, base.Overlay(over, 0))
	assert.Equal(t, math.MaxInt16, base.Samples()[0])
}

func TestOverlayDropsSamplesPastEnd(t *testing.T) {
	base := toneClip(t, 500, 0)
	over := toneClip(t, 400, 42)

	require.NoError(t, base.Overlay(over, 300))
	assert.Equal(t, int64(500), base.DurationMS())
	assert.Equal(t, 42, base.Samples()[base.framesFor(350)])
}

func TestStretchShortens(t *testing.T) {
	c := toneClip(t, 2000, 200)
	out := c.Stretch(2.0, 25)

	// 2000ms at double speed lands near 1000ms; seams may add up to one
	// crossfade of slack before the synchronizer pads or trims.
	assert.InDelta(t, 1000, out.DurationMS(), 60)
}

func TestStretchLengthens(t *testing.T) {
	c := toneClip(t, 1000, 200)
	out := c.Stretch(0.5, 25)

	assert.InDelta(t, 2000, out.DurationMS(), 80)
}

func TestStretchIdentity(t *testing.T) {
	c := toneClip(t, 500, 123)
	out := c.Stretch(1.0, 25)
	assert.Equal(t, c.Samples(), out.Samples())
}

func TestConvertToResamplesAndRemixes(t *testing.T) {
	mono := toneClip(t, 1000, 400)

	stereo, err := mono.ConvertTo(44100, 2, 16)
	require.NoError(t, err)
	assert.Equal(t, 44100, stereo.SampleRate())
	assert.Equal(t, 2, stereo.Channels())
	assert.Equal(t, int64(1000), stereo.DurationMS())
	assert.Equal(t, 400, stereo.Samples()[0])
	assert.Equal(t, 400, stereo.Samples()[1])

	back, err := stereo.ConvertTo(testRate, 1, testDepth)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), back.DurationMS())
	assert.Equal(t, 400, back.Samples()[0])
}

func TestConvertToSameFormatReturnsClip(t *testing.T) {
	c := toneClip(t, 200, 7)
	out, err := c.ConvertTo(testRate, testChannels, testDepth)
	require.NoError(t, err)
	assert.Same(t, c, out)
}

func TestConvertToRescalesSampleWidth(t *testing.T) {
	c := toneClip(t, 100, 256)

	wide, err := c.ConvertTo(testRate, testChannels, 24)
	require.NoError(t, err)
	assert.Equal(t, 24, wide.BitDepth())
	assert.Equal(t, 256<<8, wide.Samples()[0])

	narrow, err := wide.ConvertTo(testRate, testChannels, 16)
	require.NoError(t, err)
	assert.Equal(t, 256, narrow.Samples()[0])
}

func TestConvertToRejectsUnsupportedRemix(t *testing.T) {
	stereo, err := NewSilence(100, testRate, 2, testDepth)
	require.NoError(t, err)

	_, err = stereo.ConvertTo(testRate, 4, testDepth)
	assert.Error(t, err)
}

func TestGain(t *testing.T) {
	c := toneClip(t, 100, 100)
	c.Gain(0.5)
	assert.Equal(t, 50, c.Samples()[0])
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	c := toneClip(t, 750, 1234)

	require.NoError(t, c.WriteFile(path))

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, c.SampleRate(), loaded.SampleRate())
	assert.Equal(t, c.Channels(), loaded.Channels())
	assert.Equal(t, c.DurationMS(), loaded.DurationMS())
	assert.Equal(t, c.Samples(), loaded.Samples())
}

func TestReadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav"), 0644))

	_, err := ReadFile(path)
	assert.Error(t, err)
}
