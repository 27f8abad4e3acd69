package wavio

import "math"

// stretchChunkMS is the analysis window for the time-domain stretch. Windows
// this size are long enough to keep pitch intact for speech and short enough
// that dropped or repeated material is not audible as an echo.
const stretchChunkMS = 50

// Stretch changes the clip's playback duration without resampling pitch.
// speed > 1 shortens the clip, speed < 1 lengthens it. The algorithm walks
// the input in fixed chunks and emits speed-scaled windows; consecutive
// windows overlap by up to crossfadeMS and the overlap is blended to avoid
// audible clicks at the seams. The result length is approximate; callers
// needing an exact duration pad or trim afterwards.
func (c *Clip) Stretch(speed float64, crossfadeMS int64) *Clip {
	if speed <= 0 || speed == 1.0 || c.Frames() == 0 {
		return c.Clone()
	}

	ch := c.channels
	chunkFrames := c.framesFor(stretchChunkMS)
	if chunkFrames < 1 {
		chunkFrames = 1
	}
	outChunkFrames := int(math.Round(float64(chunkFrames) / speed))
	if outChunkFrames < 1 {
		outChunkFrames = 1
	}

	fadeFrames := c.framesFor(crossfadeMS)
	if fadeFrames > outChunkFrames/2 {
		fadeFrames = outChunkFrames / 2
	}

	inFrames := c.Frames()
	out := make([]int, 0, int(float64(len(c.data))/speed)+chunkFrames*ch)

	for pos := 0; pos < inFrames; pos += chunkFrames {
		// Each window carries fadeFrames of lead-in that overlaps the tail
		// of the previous window, so blending never shortens the output.
		end := pos + outChunkFrames + fadeFrames
		if end > inFrames {
			end = inFrames
		}
		window := c.data[pos*ch : end*ch]

		if len(out) > 0 && fadeFrames > 0 {
			blend := fadeFrames
			if blend > len(window)/ch {
				blend = len(window) / ch
			}
			if blend > len(out)/ch {
				blend = len(out) / ch
			}
			for f := 0; f < blend; f++ {
				t := float64(f+1) / float64(blend+1)
				for k := 0; k < ch; k++ {
					oi := len(out) - (blend-f)*ch + k
					wi := f*ch + k
					out[oi] = int(math.Round(float64(out[oi])*(1-t) + float64(window[wi])*t))
				}
			}
			window = window[blend*ch:]
		}

		out = append(out, window...)
	}

	return &Clip{sampleRate: c.sampleRate, channels: c.channels, bitDepth: c.bitDepth, data: out}
}
