package wavio

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadFile decodes a WAV file into a Clip
func ReadFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM buffer from %s: %w", path, err)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}

	return NewClip(buf.Data, buf.Format.SampleRate, buf.Format.NumChannels, bitDepth)
}

// WriteFile encodes the clip as a PCM WAV file
func (c *Clip) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}

	enc := wav.NewEncoder(f, c.sampleRate, c.bitDepth, c.channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: c.sampleRate, NumChannels: c.channels},
		Data:           c.data,
		SourceBitDepth: c.bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("failed to write PCM data to %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to finalize WAV file %s: %w", path, err)
	}
	return f.Close()
}
