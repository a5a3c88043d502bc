// ABOUTME: ADSR amplitude envelope and soft-clip limiter
// ABOUTME: Pure functions evaluated per frame by the mixer
package synth

// ADSR is a four-segment amplitude envelope. Attack, Decay and Release are
// in seconds; Sustain is a level in [0, 1].
type ADSR struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// DefaultEnvelope is a short percussive attack settling at 20% level
var DefaultEnvelope = ADSR{
	Attack:  0.001,
	Decay:   0.04,
	Sustain: 0.2,
	Release: 0.2,
}

// DefaultClipThreshold is where the soft clipper starts to saturate
const DefaultClipThreshold = 0.95

// Value returns the envelope level at elapsed seconds into a note lasting
// duration seconds.
//
// Segments are evaluated in order without renormalization, so a note shorter
// than Attack+Decay+Release never reaches its release ramp and is cut off
// while still decaying. The level is 0 from duration onward.
func (e ADSR) Value(elapsed, duration float64) float64 {
	switch {
	case elapsed >= duration:
		return 0.0
	case elapsed < e.Attack:
		return elapsed / e.Attack
	case elapsed < e.Attack+e.Decay:
		return 1.0 - (1.0-e.Sustain)*((elapsed-e.Attack)/e.Decay)
	case elapsed < duration-e.Release:
		return e.Sustain
	default:
		return e.Sustain * (1.0 - (elapsed-(duration-e.Release))/e.Release)
	}
}

// SoftClip passes x through unchanged inside [-threshold, threshold] and
// saturates smoothly beyond it. The output magnitude stays below
// threshold + (1-threshold)/2.
func SoftClip(x, threshold float64) float64 {
	knee := 1.0 - threshold
	if x > threshold {
		d := (x - threshold) / knee
		return threshold + (x-threshold)/(1.0+d*d)
	}
	if x < -threshold {
		d := (x + threshold) / knee
		return -threshold + (x+threshold)/(1.0+d*d)
	}
	return x
}
