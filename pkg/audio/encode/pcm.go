// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int16 samples to little-endian 16-bit PCM bytes
package encode

import (
	"fmt"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	format audio.Format
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}
	if format.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", format.Channels)
	}

	return &PCMEncoder{
		format: format,
	}, nil
}

// EncodeTo writes samples into dst without allocating and returns the byte count.
// dst must hold len(samples)*2 bytes.
func (e *PCMEncoder) EncodeTo(dst []byte, samples []int16) int {
	audio.PutInt16LE(dst, samples)
	return len(samples) * audio.BytesPerSample
}
