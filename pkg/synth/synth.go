// ABOUTME: Synthesizer service object tying voices, mixer, recorder and driver together
// ABOUTME: Exposes the trigger and recording entry points used by hosts
package synth

import (
	"log"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
	"github.com/Sendspin/sendspin-synth/pkg/audio/output"
)

const (
	// Engine defaults
	DefaultSampleRate   = 44100
	DefaultMaxPolyphony = 16
	DefaultMaxHarmonics = 100
	DefaultBufferFrames = 1024
	DefaultNumBuffers   = 3
	DefaultRecordQueue  = 64
)

// Config configures a synthesizer
type Config struct {
	// SampleRate in Hz (default: 44100)
	SampleRate int

	// MaxPolyphony is the number of voices (default: 16)
	MaxPolyphony int

	// MaxHarmonics caps the partials per voice (default: 100)
	MaxHarmonics int

	// BufferFrames is the render cycle length (default: 1024)
	BufferFrames int

	// NumBuffers is the number of buffers kept queued ahead of the device (default: 3)
	NumBuffers int

	// Envelope shapes every note (default: DefaultEnvelope)
	Envelope ADSR

	// ClipThreshold is the soft-clip knee in normalized units (default: 0.95)
	ClipThreshold float64

	// Seed for initial voice phases; 0 seeds from the clock
	Seed uint64

	// RecordQueue is the number of buffers the recorder may hold in flight (default: 64)
	RecordQueue int
}

// Stats is a point-in-time view of engine counters
type Stats struct {
	ActiveVoices    int
	Triggered       int64
	Dropped         int64
	Ignored         int64
	Cycles          int64
	Recording       bool
	RecordedFrames  int64
	RecorderDropped int64
}

// Synth is the polyphonic additive synthesizer. Trigger, StartRecording and
// StopRecording are safe to call from any goroutine.
type Synth struct {
	config   Config
	pool     *Pool
	recorder *Recorder
	driver   *Driver

	triggered atomic.Int64
	dropped   atomic.Int64
	ignored   atomic.Int64
}

// New creates a synthesizer, filling zero config fields with defaults
func New(config Config) *Synth {
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.MaxPolyphony <= 0 {
		config.MaxPolyphony = DefaultMaxPolyphony
	}
	if config.MaxHarmonics <= 0 {
		config.MaxHarmonics = DefaultMaxHarmonics
	}
	if config.BufferFrames <= 0 {
		config.BufferFrames = DefaultBufferFrames
	}
	if config.NumBuffers <= 0 {
		config.NumBuffers = DefaultNumBuffers
	}
	if config.Envelope == (ADSR{}) {
		config.Envelope = DefaultEnvelope
	}
	if config.ClipThreshold <= 0 || config.ClipThreshold >= 1 {
		config.ClipThreshold = DefaultClipThreshold
	}
	if config.Seed == 0 {
		config.Seed = uint64(time.Now().UnixNano())
	}
	if config.RecordQueue <= 0 {
		config.RecordQueue = DefaultRecordQueue
	}

	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9E3779B97F4A7C15))
	format := audio.Mono16(config.SampleRate)

	s := &Synth{
		config:   config,
		pool:     NewPool(config.MaxPolyphony, config.MaxHarmonics, config.SampleRate, rng),
		recorder: NewRecorder(format, config.RecordQueue),
	}
	s.driver = NewDriver(s.Render, s.recorder, format, config.BufferFrames, config.NumBuffers)

	return s
}

// Config returns the effective configuration
func (s *Synth) Config() Config {
	return s.config
}

// Format returns the PCM format the synthesizer produces
func (s *Synth) Format() audio.Format {
	return audio.Mono16(s.config.SampleRate)
}

// Driver returns the render driver
func (s *Synth) Driver() *Driver {
	return s.driver
}

// Pool returns the voice pool
func (s *Synth) Pool() *Pool {
	return s.pool
}

// Start begins rendering into out
func (s *Synth) Start(out output.Output) error {
	return s.driver.Start(out)
}

// Trigger starts a note immediately. Requests with a non-positive frequency
// or duration are ignored, and notes arriving while every voice is busy are
// dropped. It reports whether a voice was allocated.
func (s *Synth) Trigger(frequency, duration float64, velocity int, harmonics []float64) bool {
	if !(frequency > 0) || !(duration > 0) {
		s.ignored.Add(1)
		return false
	}
	if len(harmonics) > s.config.MaxHarmonics {
		harmonics = harmonics[:s.config.MaxHarmonics]
	}

	if _, ok := s.pool.Allocate(frequency, duration, velocity, harmonics); !ok {
		s.dropped.Add(1)
		return false
	}
	s.triggered.Add(1)

	log.Printf("Playing tone %.2f Hz with %d harmonics", frequency, len(harmonics))

	s.recorder.Note(NoteEvent{
		Frequency: frequency,
		Duration:  duration,
		Velocity:  velocity,
		Harmonics: len(harmonics),
		Time:      time.Now(),
	})
	return true
}

// Render mixes one cycle into buf
func (s *Synth) Render(buf []int16) {
	s.pool.Render(buf, s.config.Envelope, s.config.ClipThreshold)
}

// StartRecording begins persisting the output stream to path. Failures are
// logged and leave recording inactive.
func (s *Synth) StartRecording(path string) {
	if err := s.recorder.Start(path); err != nil {
		log.Printf("Failed to start recording: %v", err)
	}
}

// StopRecording finalizes the open recording, if any
func (s *Synth) StopRecording() {
	if _, err := s.recorder.Stop(); err != nil {
		log.Printf("Error stopping recording: %v", err)
	}
}

// Recorder returns the recorder
func (s *Synth) Recorder() *Recorder {
	return s.recorder
}

// Stats returns current counters
func (s *Synth) Stats() Stats {
	return Stats{
		ActiveVoices:    s.pool.Active(),
		Triggered:       s.triggered.Load(),
		Dropped:         s.dropped.Load(),
		Ignored:         s.ignored.Load(),
		Cycles:          s.driver.Cycles(),
		Recording:       s.recorder.Recording(),
		RecordedFrames:  s.recorder.Frames(),
		RecorderDropped: s.recorder.Dropped(),
	}
}

// Close finalizes any recording and releases the output
func (s *Synth) Close() error {
	s.StopRecording()
	return s.driver.Close()
}
