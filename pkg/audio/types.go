// ABOUTME: Audio type definitions
// ABOUTME: Defines the PCM stream format and 16-bit sample conversions
package audio

import "encoding/binary"

const (
	// 16-bit audio range constants
	MaxInt16 = 32767
	MinInt16 = -32768

	// BytesPerSample is the size of one mono 16-bit PCM frame
	BytesPerSample = 2
)

// Format describes a PCM stream format
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Mono16 returns the mono 16-bit format at the given sample rate
func Mono16(sampleRate int) Format {
	return Format{
		SampleRate: sampleRate,
		Channels:   1,
		BitDepth:   16,
	}
}

// ByteRate returns bytes per second (sampleRate * channels * bitDepth / 8)
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// BlockAlign returns bytes per frame (channels * bitDepth / 8)
func (f Format) BlockAlign() int {
	return f.Channels * f.BitDepth / 8
}

// ClampInt16 saturates a wide accumulator into the int16 range
func ClampInt16(v int32) int16 {
	if v > MaxInt16 {
		return MaxInt16
	}
	if v < MinInt16 {
		return MinInt16
	}
	return int16(v)
}

// PutInt16LE writes samples into dst as little-endian bytes.
// dst must hold at least len(samples)*2 bytes.
func PutInt16LE(dst []byte, samples []int16) {
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(sample))
	}
}

// Int16FromLE decodes little-endian 16-bit samples
func Int16FromLE(src []byte) []int16 {
	samples := make([]int16, len(src)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return samples
}

// Peak returns the largest absolute sample value. -32768 reports as 32767.
func Peak(samples []int16) int16 {
	var peak int32
	for _, v := range samples {
		a := int32(v)
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	return ClampInt16(peak)
}
