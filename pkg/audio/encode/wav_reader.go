// ABOUTME: WAV file reader used to verify recordings
// ABOUTME: Decodes PCM WAV files through go-audio/wav
package encode

import (
	"fmt"
	"os"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
	"github.com/go-audio/wav"
)

// Recording is a decoded WAV file
type Recording struct {
	Format  audio.Format
	Samples []int16
}

// ReadWAV decodes a 16-bit PCM WAV file
func ReadWAV(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}
	if d.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode pcm: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}

	return &Recording{
		Format: audio.Format{
			SampleRate: int(d.SampleRate),
			Channels:   int(d.NumChans),
			BitDepth:   int(d.BitDepth),
		},
		Samples: samples,
	}, nil
}

// Duration returns the playback length in seconds
func (r *Recording) Duration() float64 {
	if r.Format.SampleRate == 0 || r.Format.Channels == 0 {
		return 0
	}
	return float64(len(r.Samples)/r.Format.Channels) / float64(r.Format.SampleRate)
}
