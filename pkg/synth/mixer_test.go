// ABOUTME: Tests for voice mixing and rendering
// ABOUTME: Covers retirement, headroom, limiting and concurrent trigger/render safety
package synth

import (
	"math"
	"sync"
	"testing"
)

func renderOnce(p *Pool, frames int) []int16 {
	buf := make([]int16, frames)
	p.Render(buf, DefaultEnvelope, DefaultClipThreshold)
	return buf
}

func TestRenderSilentPool(t *testing.T) {
	pool := newTestPool(DefaultMaxPolyphony)

	buf := make([]int16, 256)
	for i := range buf {
		buf[i] = 1234
	}
	pool.Render(buf, DefaultEnvelope, DefaultClipThreshold)

	for i, s := range buf {
		if s != 0 {
			t.Fatalf("expected silence, frame %d = %d", i, s)
		}
	}
}

func TestRenderShortNoteEndToEnd(t *testing.T) {
	pool := newTestPool(DefaultMaxPolyphony)
	if _, ok := pool.Allocate(440.0, 0.01, 127, []float64{1.0}); !ok {
		t.Fatal("allocation failed")
	}

	buf := renderOnce(pool, 1024)

	if buf[0] != 0 {
		t.Errorf("expected silence at frame 0 (envelope starts at 0), got %d", buf[0])
	}

	nonzero := 0
	peak := 0
	for i := 1; i < 441; i++ {
		if buf[i] != 0 {
			nonzero++
		}
		if a := int(math.Abs(float64(buf[i]))); a > peak {
			peak = a
		}
	}
	if nonzero < 400 {
		t.Errorf("expected sound during attack/decay, only %d nonzero frames", nonzero)
	}
	if peak < 1500 {
		t.Errorf("expected peak near per-voice headroom, got %d", peak)
	}

	for i := 442; i < len(buf); i++ {
		if buf[i] != 0 {
			t.Fatalf("expected silence after the note ends, frame %d = %d", i, buf[i])
		}
	}

	if pool.Active() != 0 {
		t.Error("expected voice to be retired within the cycle its duration elapsed")
	}
}

func TestRenderRetiredVoiceSilent(t *testing.T) {
	pool := newTestPool(4)
	pool.Allocate(440, 0.01, 127, []float64{1.0})

	renderOnce(pool, 1024)
	buf := renderOnce(pool, 1024)

	for i, s := range buf {
		if s != 0 {
			t.Fatalf("retired voice contributed sample at frame %d: %d", i, s)
		}
	}
}

func TestRenderRetiresOnFirstExpiredCycle(t *testing.T) {
	pool := newTestPool(2)

	// 1024 frames at 44100Hz is ~23.2ms; a 30ms note spans two cycles
	pool.Allocate(440, 0.03, 100, []float64{1.0})

	renderOnce(pool, 1024)
	if pool.Active() != 1 {
		t.Fatal("voice retired too early")
	}

	renderOnce(pool, 1024)
	if pool.Active() != 0 {
		t.Fatal("voice should retire in the cycle where its time runs out")
	}
}

func TestRenderHeadroom(t *testing.T) {
	pool := newTestPool(DefaultMaxPolyphony)
	pool.Allocate(440, 1.0, 127, []float64{1.0})

	buf := renderOnce(pool, 1024)

	limit := int16(math.MaxInt16 / DefaultMaxPolyphony)
	for i, s := range buf {
		if s > limit || s < -limit {
			t.Fatalf("frame %d exceeds single-voice headroom: %d", i, s)
		}
	}
}

func TestRenderLimitsFullPool(t *testing.T) {
	pool := newTestPool(DefaultMaxPolyphony)
	for i := 0; i < DefaultMaxPolyphony; i++ {
		pool.Allocate(110, 1.0, 127, []float64{200.0})
	}

	buf := renderOnce(pool, 1024)

	maxOut := int(math.Ceil((DefaultClipThreshold + (1-DefaultClipThreshold)/2) * math.MaxInt16))
	peak := 0
	for _, s := range buf {
		a := int(math.Abs(float64(s)))
		if a > maxOut {
			t.Fatalf("sample %d exceeds soft clip ceiling %d", s, maxOut)
		}
		if a > peak {
			peak = a
		}
	}
	if float64(peak) < DefaultClipThreshold*math.MaxInt16 {
		t.Errorf("expected the mix to drive into the limiter, peak %d", peak)
	}
}

func TestRenderLargeWeightsKeepSign(t *testing.T) {
	pool := newTestPool(DefaultMaxPolyphony)
	slot, _ := pool.Allocate(10, 1.0, 127, []float64{1e7})
	// At 10 Hz the sine stays positive for the whole buffer from pi/2
	pool.voices[slot].phase = math.Pi / 2

	buf := renderOnce(pool, 64)

	for i, s := range buf[1:] {
		if s <= 0 {
			t.Fatalf("frame %d flipped sign under an overdriven positive signal: %d", i+1, s)
		}
		if float64(s) < DefaultClipThreshold*math.MaxInt16-1 {
			t.Fatalf("frame %d should sit at the limiter ceiling, got %d", i+1, s)
		}
	}
}

func TestRenderAdvancesPhase(t *testing.T) {
	pool := newTestPool(1)
	pool.Allocate(1000, 1.0, 127, []float64{1.0})

	for i := 0; i < 20; i++ {
		renderOnce(pool, 512)
	}

	states := pool.Snapshot()
	if len(states) != 1 {
		t.Fatalf("expected one active voice, got %d", len(states))
	}
	v := states[0]
	if v.Phase < 0 || v.Phase >= 2*math.Pi {
		t.Errorf("phase %f not wrapped into [0, 2π)", v.Phase)
	}
	expected := 20 * 512 / float64(DefaultSampleRate)
	if math.Abs(v.ElapsedTime-expected) > 1e-9 {
		t.Errorf("expected elapsed %f, got %f", expected, v.ElapsedTime)
	}
}

func TestConcurrentTriggerRender(t *testing.T) {
	pool := newTestPool(DefaultMaxPolyphony)
	step := 1.0 / DefaultSampleRate

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pool.Allocate(100+float64(i)*7, 0.005+float64(i%10)*0.01, 100, []float64{1.0, 0.5, 0.25})
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	buf := make([]int16, 256)
	for cycles := 0; ; cycles++ {
		pool.Render(buf, DefaultEnvelope, DefaultClipThreshold)

		for _, v := range pool.Snapshot() {
			if v.Phase < 0 || v.Phase >= 2*math.Pi {
				t.Fatalf("slot %d: phase %f out of range", v.Slot, v.Phase)
			}
			if v.ElapsedTime < 0 || v.ElapsedTime > v.Duration+step {
				t.Fatalf("slot %d: elapsed %f beyond duration %f", v.Slot, v.ElapsedTime, v.Duration)
			}
			if v.Harmonics != 3 {
				t.Fatalf("slot %d: expected 3 harmonics, got %d", v.Slot, v.Harmonics)
			}
		}

		select {
		case <-done:
			if cycles > 0 {
				return
			}
		default:
		}
	}
}
