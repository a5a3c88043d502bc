// ABOUTME: Render driver adapting the synthesizer to pull-model audio outputs
// ABOUTME: Keeps a small ring of pre-rendered buffers and refills them on demand
package synth

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
	"github.com/Sendspin/sendspin-synth/pkg/audio/output"
)

// DriverState is the render driver lifecycle state
type DriverState int32

const (
	DriverUninitialized DriverState = iota
	DriverRunning
)

func (s DriverState) String() string {
	switch s {
	case DriverUninitialized:
		return "uninitialized"
	case DriverRunning:
		return "running"
	default:
		return fmt.Sprintf("DriverState(%d)", int32(s))
	}
}

// Driver owns the buffer cycle between the synthesizer and an output.
//
// The output reads PCM bytes through Read. Whenever the buffer at the head
// of the ring is exhausted the driver treats it as returned by the device,
// renders a fresh cycle into it, hands the samples to the recorder and
// queues it behind the others.
type Driver struct {
	render   func([]int16)
	recorder *Recorder
	format   audio.Format

	mu      sync.Mutex
	samples [][]int16
	bytes   [][]byte
	head    int
	offset  int

	state  atomic.Int32
	cycles atomic.Int64
	output output.Output
}

// NewDriver creates a driver with numBuffers buffers of frames frames each
func NewDriver(render func([]int16), recorder *Recorder, format audio.Format, frames, numBuffers int) *Driver {
	d := &Driver{
		render:   render,
		recorder: recorder,
		format:   format,
		samples:  make([][]int16, numBuffers),
		bytes:    make([][]byte, numBuffers),
	}
	for i := range d.samples {
		d.samples[i] = make([]int16, frames*format.Channels)
		d.bytes[i] = make([]byte, frames*format.BlockAlign())
	}
	return d
}

// State returns the current lifecycle state
func (d *Driver) State() DriverState {
	return DriverState(d.state.Load())
}

// Cycles returns the number of render cycles completed
func (d *Driver) Cycles() int64 {
	return d.cycles.Load()
}

// Start pre-fills every buffer and opens out, which then pulls from the
// driver on its own schedule. Failure to acquire the output is fatal for the
// driver and leaves it uninitialized.
func (d *Driver) Start(out output.Output) error {
	if !d.state.CompareAndSwap(int32(DriverUninitialized), int32(DriverRunning)) {
		return fmt.Errorf("render driver already running")
	}

	d.mu.Lock()
	for i := range d.samples {
		d.fill(i)
	}
	d.head = 0
	d.offset = 0
	d.mu.Unlock()

	if err := out.Open(d.format, d); err != nil {
		d.state.Store(int32(DriverUninitialized))
		return fmt.Errorf("failed to acquire audio output: %w", err)
	}
	d.mu.Lock()
	d.output = out
	d.mu.Unlock()

	log.Printf("Render driver running: %d buffers x %d frames", len(d.samples), len(d.samples[0])/d.format.Channels)
	return nil
}

// Read implements io.Reader for the output device. It always fills p.
func (d *Driver) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for n < len(p) {
		buf := d.bytes[d.head]
		c := copy(p[n:], buf[d.offset:])
		n += c
		d.offset += c

		if d.offset == len(buf) {
			// Head buffer consumed: refill it and requeue at the tail
			d.fill(d.head)
			d.head = (d.head + 1) % len(d.bytes)
			d.offset = 0
		}
	}
	return n, nil
}

// fill runs one render cycle into ring slot i (must hold d.mu)
func (d *Driver) fill(i int) {
	d.cycle(d.samples[i])
	audio.PutInt16LE(d.bytes[i], d.samples[i])
}

// cycle renders into buf and forwards it to the recorder
func (d *Driver) cycle(buf []int16) {
	d.render(buf)
	if d.recorder != nil {
		d.recorder.Append(buf)
	}
	d.cycles.Add(1)
}

// Cycle renders one buffer outside the output ring and returns it. It is
// used for offline rendering; the result is also recorded.
func (d *Driver) Cycle() []int16 {
	buf := make([]int16, len(d.samples[0]))
	d.cycle(buf)
	return buf
}

// Close closes the output, if one was opened
func (d *Driver) Close() error {
	d.mu.Lock()
	out := d.output
	d.output = nil
	d.mu.Unlock()

	if out == nil {
		return nil
	}
	// Closed outside d.mu: the device may be blocked in Read
	return out.Close()
}
