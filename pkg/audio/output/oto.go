// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams PCM pulled from a reader to the default device with monitor volume
package output

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// Oto output implementation using oto library
type Oto struct {
	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
	channels   int
	bufferSize time.Duration
	volume     int
	muted      bool
	ready      bool
	mu         sync.Mutex
}

// NewOto creates a new Oto output. bufferSize is the device buffer
// duration; zero lets oto pick its default.
func NewOto(bufferSize time.Duration) *Oto {
	return &Oto{
		bufferSize: bufferSize,
		volume:     100,
		muted:      false,
	}
}

// Open initializes the output device and starts pulling from src
func (o *Oto) Open(format audio.Format, src io.Reader) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// oto only supports 16-bit integer output in this configuration
	if format.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	// oto only allows one context per process
	if o.otoCtx != nil {
		return fmt.Errorf("oto output already open (%dHz %dch)", o.sampleRate, o.channels)
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   o.bufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = format.SampleRate
	o.channels = format.Channels

	// The player pulls from src on oto's own goroutine
	o.player = o.otoCtx.NewPlayer(src)
	o.player.SetVolume(getVolumeMultiplier(o.volume, o.muted))
	o.player.Play()

	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels", format.SampleRate, format.Channels)

	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
		o.ready = false
	}
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.volume = clampVolume(volume)
	o.applyVolume()
	log.Printf("Volume set to %d", o.volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.muted = muted
	o.applyVolume()
	log.Printf("Muted: %v", muted)
}

// GetVolume returns current volume
func (o *Oto) GetVolume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// applyVolume pushes the current volume to the player (must hold o.mu)
func (o *Oto) applyVolume() {
	if o.player != nil {
		o.player.SetVolume(getVolumeMultiplier(o.volume, o.muted))
	}
}
