// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for pull-model audio playback backends
package output

import (
	"io"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
)

// Output represents an audio output device. The device owns timing: once
// opened it pulls little-endian PCM from src whenever it needs more samples.
type Output interface {
	// Open initializes the device and starts pulling from src
	Open(format audio.Format, src io.Reader) error

	// Close releases output resources
	Close() error
}

// VolumeControl is implemented by outputs with a monitor volume
type VolumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
	GetVolume() int
	IsMuted() bool
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}

func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}
