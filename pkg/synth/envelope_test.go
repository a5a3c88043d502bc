// ABOUTME: Tests for the ADSR envelope and soft clipper
// ABOUTME: Checks segment shapes, continuity and limiter bounds
package synth

import (
	"math"
	"testing"
)

func TestEnvelopeSegments(t *testing.T) {
	env := DefaultEnvelope
	const duration = 1.0

	if v := env.Value(0, duration); v != 0 {
		t.Errorf("expected 0 at t=0, got %f", v)
	}

	// Attack rises monotonically
	prev := -1.0
	for i := 0; i < 44; i++ {
		tm := float64(i) / 44100.0
		v := env.Value(tm, duration)
		if v < prev {
			t.Fatalf("attack not monotonic at t=%f: %f < %f", tm, v, prev)
		}
		prev = v
	}

	// Peak at the end of attack
	if v := env.Value(env.Attack, duration); math.Abs(v-1.0) > 1e-9 {
		t.Errorf("expected 1.0 at end of attack, got %f", v)
	}

	// Sustain window is flat
	for tm := env.Attack + env.Decay; tm < duration-env.Release; tm += 0.01 {
		if v := env.Value(tm, duration); v != env.Sustain {
			t.Fatalf("expected sustain %f at t=%f, got %f", env.Sustain, tm, v)
		}
	}

	// Halfway through release
	if v := env.Value(duration-env.Release/2, duration); math.Abs(v-env.Sustain/2) > 1e-9 {
		t.Errorf("expected %f mid-release, got %f", env.Sustain/2, v)
	}

	if v := env.Value(duration, duration); v != 0 {
		t.Errorf("expected 0 at t=duration, got %f", v)
	}
	if v := env.Value(duration+1, duration); v != 0 {
		t.Errorf("expected 0 after duration, got %f", v)
	}
}

func TestEnvelopeShortNote(t *testing.T) {
	env := DefaultEnvelope
	const duration = 0.01

	// Still in decay when the note ends; no renormalization
	v := env.Value(0.009, duration)
	expected := 1.0 - (1.0-env.Sustain)*((0.009-env.Attack)/env.Decay)
	if math.Abs(v-expected) > 1e-12 {
		t.Errorf("expected decay value %f, got %f", expected, v)
	}
	if v := env.Value(duration, duration); v != 0 {
		t.Errorf("expected 0 at t=duration, got %f", v)
	}
}

func TestSoftClipPassThrough(t *testing.T) {
	for x := -DefaultClipThreshold; x <= DefaultClipThreshold; x += 0.01 {
		if got := SoftClip(x, DefaultClipThreshold); got != x {
			t.Fatalf("expected SoftClip(%f) == %f, got %f", x, x, got)
		}
	}
	if got := SoftClip(DefaultClipThreshold, DefaultClipThreshold); got != DefaultClipThreshold {
		t.Errorf("expected threshold to pass through, got %f", got)
	}
}

func TestSoftClipBounded(t *testing.T) {
	inputs := []float64{0.951, 0.99, 1.0, 1.5, 2, 10, 1000, 1e9}
	for _, x := range inputs {
		pos := SoftClip(x, DefaultClipThreshold)
		neg := SoftClip(-x, DefaultClipThreshold)

		if math.Abs(pos) > 1 || math.Abs(neg) > 1 {
			t.Errorf("SoftClip(±%g) out of range: %f, %f", x, pos, neg)
		}
		if pos < DefaultClipThreshold {
			t.Errorf("SoftClip(%g) = %f fell below threshold", x, pos)
		}
		if neg != -pos {
			t.Errorf("SoftClip not symmetric at %g: %f vs %f", x, pos, neg)
		}
	}
}

func TestSoftClipContinuous(t *testing.T) {
	const eps = 1e-9
	above := SoftClip(DefaultClipThreshold+eps, DefaultClipThreshold)
	if math.Abs(above-DefaultClipThreshold) > 1e-6 {
		t.Errorf("discontinuity at threshold: %f", above)
	}
}
