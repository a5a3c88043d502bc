// ABOUTME: Fixed-capacity voice pool for polyphonic synthesis
// ABOUTME: Allocates free voices for new notes under the pool lock
package synth

import (
	"math"
	"math/rand/v2"
	"sync"
)

const twoPi = 2 * math.Pi

// voice is one sounding note. Fields are only meaningful while active.
type voice struct {
	active         bool
	frequency      float64
	duration       float64
	phase          float64
	phaseIncrement float64
	elapsedTime    float64
	weights        []float64
}

// VoiceState is a copy of an active voice taken under the pool lock
type VoiceState struct {
	Slot        int
	Frequency   float64
	Duration    float64
	Phase       float64
	ElapsedTime float64
	Harmonics   int
}

// Pool is a fixed set of voices shared by note triggers and the renderer.
// A single mutex guards every voice for the length of one allocate or
// render pass.
type Pool struct {
	mu           sync.Mutex
	voices       []voice
	mix          []float64
	maxHarmonics int
	sampleRate   float64
	rng          *rand.Rand
}

// NewPool creates a pool with polyphony slots. rng seeds initial phases and
// is only used under the pool lock.
func NewPool(polyphony, maxHarmonics, sampleRate int, rng *rand.Rand) *Pool {
	voices := make([]voice, polyphony)
	for i := range voices {
		voices[i].weights = make([]float64, 0, maxHarmonics)
	}

	return &Pool{
		voices:       voices,
		maxHarmonics: maxHarmonics,
		sampleRate:   float64(sampleRate),
		rng:          rng,
	}
}

// Size returns the pool capacity (maximum polyphony)
func (p *Pool) Size() int {
	return len(p.voices)
}

// Allocate starts a note in the first free slot and returns the slot index.
// It returns false when frequency or duration is not positive or every slot
// is busy; the note is dropped in both cases.
//
// Velocity is a MIDI-style value mapped onto [0, 1] and applied to every
// harmonic weight. Harmonics beyond the pool maximum are ignored.
func (p *Pool) Allocate(frequency, duration float64, velocity int, harmonics []float64) (int, bool) {
	if !(frequency > 0) || !(duration > 0) {
		return -1, false
	}
	if len(harmonics) > p.maxHarmonics {
		harmonics = harmonics[:p.maxHarmonics]
	}
	scale := velocityScale(velocity)

	p.mu.Lock()
	defer p.mu.Unlock()

	for slot := range p.voices {
		v := &p.voices[slot]
		if v.active {
			continue
		}

		v.frequency = frequency
		v.duration = duration
		v.phase = p.rng.Float64() * twoPi
		v.phaseIncrement = twoPi * frequency / p.sampleRate
		v.elapsedTime = 0
		v.weights = v.weights[:len(harmonics)]
		for h, w := range harmonics {
			v.weights[h] = w * scale
		}
		v.active = true
		return slot, true
	}

	return -1, false
}

// velocityScale maps a [0,127] velocity onto [0,1], clamping out of range values
func velocityScale(velocity int) float64 {
	scale := float64(velocity) / 127.0
	return math.Min(math.Max(scale, 0.0), 1.0)
}

// Active returns the number of sounding voices
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for i := range p.voices {
		if p.voices[i].active {
			n++
		}
	}
	return n
}

// Snapshot copies the state of every active voice
func (p *Pool) Snapshot() []VoiceState {
	p.mu.Lock()
	defer p.mu.Unlock()

	states := make([]VoiceState, 0, len(p.voices))
	for slot := range p.voices {
		v := &p.voices[slot]
		if !v.active {
			continue
		}
		states = append(states, VoiceState{
			Slot:        slot,
			Frequency:   v.frequency,
			Duration:    v.duration,
			Phase:       v.phase,
			ElapsedTime: v.elapsedTime,
			Harmonics:   len(v.weights),
		})
	}
	return states
}
