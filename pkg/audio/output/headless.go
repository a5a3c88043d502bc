// ABOUTME: Headless audio output that consumes PCM at real-time rate
// ABOUTME: Drives the render pull loop from a ticker when no device is available
package output

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
)

// Headless pulls fixed-size chunks from its source on a ticker and discards
// them, standing in for a device on servers and in tests.
type Headless struct {
	chunkFrames int
	sink        func([]byte)

	pulled   int64
	pulledMu sync.Mutex

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  bool
}

// NewHeadless creates a headless output pulling chunkFrames per tick.
// sink, if non-nil, receives every chunk pulled.
func NewHeadless(chunkFrames int, sink func([]byte)) *Headless {
	if chunkFrames <= 0 {
		chunkFrames = 1024
	}
	return &Headless{
		chunkFrames: chunkFrames,
		sink:        sink,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Open starts the pull loop
func (h *Headless) Open(format audio.Format, src io.Reader) error {
	if h.started {
		return fmt.Errorf("headless output already open")
	}
	if format.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", format.SampleRate)
	}
	h.started = true

	period := time.Duration(h.chunkFrames) * time.Second / time.Duration(format.SampleRate)
	chunk := make([]byte, h.chunkFrames*format.BlockAlign())

	go h.run(period, chunk, src)

	log.Printf("Headless output started: %dHz, %d frames every %v", format.SampleRate, h.chunkFrames, period)
	return nil
}

func (h *Headless) run(period time.Duration, chunk []byte, src io.Reader) {
	defer close(h.done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := io.ReadFull(src, chunk); err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					log.Printf("Headless output read error: %v", err)
				}
				return
			}
			h.pulledMu.Lock()
			h.pulled += int64(len(chunk))
			h.pulledMu.Unlock()
			if h.sink != nil {
				h.sink(chunk)
			}
		case <-h.stopChan:
			return
		}
	}
}

// Pulled returns the number of bytes consumed so far
func (h *Headless) Pulled() int64 {
	h.pulledMu.Lock()
	defer h.pulledMu.Unlock()
	return h.pulled
}

// Close stops the pull loop
func (h *Headless) Close() error {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	if h.started {
		<-h.done
	}
	return nil
}
