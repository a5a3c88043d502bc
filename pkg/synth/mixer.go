// ABOUTME: Additive synthesis and mixing of active voices into PCM
// ABOUTME: Renders one cycle of 16-bit samples with a single post-mix soft clip
package synth

import (
	"math"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
)

// Render fills buf with one cycle of mixed audio. Every active voice adds
// its harmonic sum, shaped by env, into a float64 accumulator; the mixed
// result is soft clipped once and converted to 16-bit, so nothing wraps
// before the limiter.
//
// Each voice is scaled by MaxInt16/polyphony so a full pool cannot exceed
// full scale. A lone voice therefore plays at 1/polyphony of full scale.
func (p *Pool) Render(buf []int16, env ADSR, clipThreshold float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frames := len(buf)
	if cap(p.mix) < frames {
		p.mix = make([]float64, frames)
	}
	mix := p.mix[:frames]
	clear(mix)

	headroom := float64(audio.MaxInt16 / len(p.voices))
	step := 1.0 / p.sampleRate

	for slot := range p.voices {
		v := &p.voices[slot]
		if !v.active {
			continue
		}

		for i := 0; i < frames; i++ {
			if v.elapsedTime >= v.duration {
				v.active = false
				break
			}

			level := env.Value(v.elapsedTime, v.duration)

			val := 0.0
			for h, w := range v.weights {
				val += w * math.Sin(float64(h+1)*v.phase)
			}

			mix[i] += val * level * headroom

			v.phase += v.phaseIncrement
			if v.phase >= twoPi {
				v.phase = math.Mod(v.phase, twoPi)
			}
			v.elapsedTime += step
		}
	}

	for i, sample := range mix {
		clipped := SoftClip(sample/audio.MaxInt16, clipThreshold) * audio.MaxInt16
		buf[i] = audio.ClampInt16(int32(clipped))
	}
}
