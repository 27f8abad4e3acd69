// Package wavio implements the in-memory PCM clip engine used by the
// synchronizer and the compositor. Clips are interleaved integer samples
// decoded from WAV files; all timing math is done in milliseconds.
package wavio

import (
	"fmt"
	"math"
)

// Clip is a mutable PCM audio buffer with a fixed format
type Clip struct {
	sampleRate int
	channels   int
	bitDepth   int
	data       []int // interleaved samples
}

// NewClip creates a clip from raw interleaved samples
func NewClip(data []int, sampleRate, channels, bitDepth int) (*Clip, error) {
	if sampleRate <= 0 || channels <= 0 || bitDepth <= 0 {
		return nil, fmt.Errorf("invalid clip format: rate=%d channels=%d depth=%d", sampleRate, channels, bitDepth)
	}
	if len(data)%channels != 0 {
		return nil, fmt.Errorf("sample count %d is not a multiple of channel count %d", len(data), channels)
	}
	return &Clip{
		sampleRate: sampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
		data:       data,
	}, nil
}

// NewSilence creates a clip of silence in the given format
func NewSilence(durationMS int64, sampleRate, channels, bitDepth int) (*Clip, error) {
	c, err := NewClip(nil, sampleRate, channels, bitDepth)
	if err != nil {
		return nil, err
	}
	c.data = make([]int, c.framesFor(durationMS)*channels)
	return c, nil
}

// SampleRate returns the clip's sample rate in Hz
func (c *Clip) SampleRate() int { return c.sampleRate }

// Channels returns the clip's channel count
func (c *Clip) Channels() int { return c.channels }

// BitDepth returns the clip's sample width in bits
func (c *Clip) BitDepth() int { return c.bitDepth }

// Frames returns the number of sample frames in the clip
func (c *Clip) Frames() int { return len(c.data) / c.channels }

// DurationMS returns the clip length in milliseconds
func (c *Clip) DurationMS() int64 {
	return int64(c.Frames()) * 1000 / int64(c.sampleRate)
}

// Samples exposes the raw interleaved sample slice
func (c *Clip) Samples() []int { return c.data }

// Clone returns a deep copy of the clip
func (c *Clip) Clone() *Clip {
	data := make([]int, len(c.data))
	copy(data, c.data)
	return &Clip{sampleRate: c.sampleRate, channels: c.channels, bitDepth: c.bitDepth, data: data}
}

// SameFormat reports whether two clips share sample rate, channel count and
// sample width. Mixing clips of different formats corrupts the output, so
// callers must check or convert first.
func (c *Clip) SameFormat(o *Clip) bool {
	return c.sampleRate == o.sampleRate && c.channels == o.channels && c.bitDepth == o.bitDepth
}

func (c *Clip) framesFor(durationMS int64) int {
	return int(durationMS * int64(c.sampleRate) / 1000)
}

// Slice returns a copy of the clip between fromMS and toMS, clamped to the
// clip bounds.
func (c *Clip) Slice(fromMS, toMS int64) *Clip {
	from := c.framesFor(fromMS)
	to := c.framesFor(toMS)
	if from < 0 {
		from = 0
	}
	if to > c.Frames() {
		to = c.Frames()
	}
	if from >= to {
		out, _ := NewClip([]int{}, c.sampleRate, c.channels, c.bitDepth)
		return out
	}
	data := make([]int, (to-from)*c.channels)
	copy(data, c.data[from*c.channels:to*c.channels])
	return &Clip{sampleRate: c.sampleRate, channels: c.channels, bitDepth: c.bitDepth, data: data}
}

// Append concatenates another clip onto this one in place
func (c *Clip) Append(o *Clip) error {
	if !c.SameFormat(o) {
		return fmt.Errorf("cannot append clip with format %d/%d/%d to %d/%d/%d",
			o.sampleRate, o.channels, o.bitDepth, c.sampleRate, c.channels, c.bitDepth)
	}
	c.data = append(c.data, o.data...)
	return nil
}

// AppendSilence pads the clip with durationMS of silence in its own format
func (c *Clip) AppendSilence(durationMS int64) {
	if durationMS <= 0 {
		return
	}
	c.data = append(c.data, make([]int, c.framesFor(durationMS)*c.channels)...)
}

// TrimTo hard-cuts the clip to at most durationMS, accepting a discontinuity
// at the cut point.
func (c *Clip) TrimTo(durationMS int64) {
	frames := c.framesFor(durationMS)
	if frames < 0 {
		frames = 0
	}
	if frames < c.Frames() {
		c.data = c.data[:frames*c.channels]
	}
}

// Overlay mixes another clip additively into this one starting at atMS.
// Samples past the end of the base clip are dropped, matching overlay
// semantics where the base track defines the output length.
func (c *Clip) Overlay(o *Clip, atMS int64) error {
	if !c.SameFormat(o) {
		return fmt.Errorf("cannot overlay clip with format %d/%d/%d onto %d/%d/%d",
			o.sampleRate, o.channels, o.bitDepth, c.sampleRate, c.channels, c.bitDepth)
	}

	offset := c.framesFor(atMS) * c.channels
	if offset < 0 {
		offset = 0
	}
	limit := maxSample(c.bitDepth)
	for i, s := range o.data {
		di := offset + i
		if di >= len(c.data) {
			break
		}
		c.data[di] = clampSample(c.data[di]+s, limit)
	}
	return nil
}

// ConvertTo returns the clip converted to the given sample rate, channel
// count and sample width; the clip itself is returned when the format already
// matches. TTS renders come back 24 kHz mono while separated stems and source
// slices keep the source's format, so mixing stages normalize through here.
// Resampling is linear interpolation, which holds up fine on codec-processed
// speech; channel conversion supports mono fan-out and downmix to mono.
func (c *Clip) ConvertTo(sampleRate, channels, bitDepth int) (*Clip, error) {
	if sampleRate <= 0 || channels <= 0 || bitDepth <= 0 {
		return nil, fmt.Errorf("invalid clip format: rate=%d channels=%d depth=%d", sampleRate, channels, bitDepth)
	}
	if c.sampleRate == sampleRate && c.channels == channels && c.bitDepth == bitDepth {
		return c, nil
	}

	out := c
	if out.channels != channels {
		converted, err := out.remix(channels)
		if err != nil {
			return nil, err
		}
		out = converted
	}
	if out.sampleRate != sampleRate {
		out = out.resample(sampleRate)
	}
	if out.bitDepth != bitDepth {
		out = out.rescale(bitDepth)
	}
	return out, nil
}

func (c *Clip) remix(channels int) (*Clip, error) {
	switch {
	case channels == 1:
		data := make([]int, c.Frames())
		for f := range data {
			sum := 0
			for ch := 0; ch < c.channels; ch++ {
				sum += c.data[f*c.channels+ch]
			}
			data[f] = sum / c.channels
		}
		return &Clip{sampleRate: c.sampleRate, channels: 1, bitDepth: c.bitDepth, data: data}, nil
	case c.channels == 1:
		data := make([]int, len(c.data)*channels)
		for f, s := range c.data {
			for ch := 0; ch < channels; ch++ {
				data[f*channels+ch] = s
			}
		}
		return &Clip{sampleRate: c.sampleRate, channels: channels, bitDepth: c.bitDepth, data: data}, nil
	default:
		return nil, fmt.Errorf("cannot remix %d channels to %d", c.channels, channels)
	}
}

func (c *Clip) resample(sampleRate int) *Clip {
	srcFrames := c.Frames()
	dstFrames := int(int64(srcFrames) * int64(sampleRate) / int64(c.sampleRate))
	data := make([]int, dstFrames*c.channels)
	step := float64(c.sampleRate) / float64(sampleRate)
	for f := 0; f < dstFrames; f++ {
		pos := float64(f) * step
		i := int(pos)
		if i >= srcFrames {
			i = srcFrames - 1
		}
		frac := pos - float64(i)
		j := i + 1
		if j >= srcFrames {
			j = srcFrames - 1
		}
		for ch := 0; ch < c.channels; ch++ {
			a := float64(c.data[i*c.channels+ch])
			b := float64(c.data[j*c.channels+ch])
			data[f*c.channels+ch] = int(math.Round(a + (b-a)*frac))
		}
	}
	return &Clip{sampleRate: sampleRate, channels: c.channels, bitDepth: c.bitDepth, data: data}
}

func (c *Clip) rescale(bitDepth int) *Clip {
	data := make([]int, len(c.data))
	shift := bitDepth - c.bitDepth
	for i, s := range c.data {
		if shift > 0 {
			data[i] = s << shift
		} else {
			data[i] = s >> -shift
		}
	}
	return &Clip{sampleRate: c.sampleRate, channels: c.channels, bitDepth: bitDepth, data: data}
}

// Gain scales every sample by the given factor, clamping to the sample range
func (c *Clip) Gain(factor float64) {
	limit := maxSample(c.bitDepth)
	for i, s := range c.data {
		c.data[i] = clampSample(int(math.Round(float64(s)*factor)), limit)
	}
}

func maxSample(bitDepth int) int {
	return 1<<(bitDepth-1) - 1
}

func clampSample(v, limit int) int {
	if v > limit {
		return limit
	}
	if v < -limit-1 {
		return -limit - 1
	}
	return v
}
