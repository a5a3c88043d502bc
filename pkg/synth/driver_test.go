// ABOUTME: Tests for the render driver
// ABOUTME: Covers startup, buffer cycling through Read and recorder forwarding
package synth

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
	"github.com/Sendspin/sendspin-synth/pkg/audio/encode"
)

// fakeOutput records what the driver hands it and never pulls on its own
type fakeOutput struct {
	format  audio.Format
	src     io.Reader
	openErr error
	closed  bool
}

func (f *fakeOutput) Open(format audio.Format, src io.Reader) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.format = format
	f.src = src
	return nil
}

func (f *fakeOutput) Close() error {
	f.closed = true
	return nil
}

func TestDriverStart(t *testing.T) {
	s := New(Config{Seed: 1})
	out := &fakeOutput{}

	if s.Driver().State() != DriverUninitialized {
		t.Fatalf("expected uninitialized, got %s", s.Driver().State())
	}
	if err := s.Start(out); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if s.Driver().State() != DriverRunning {
		t.Errorf("expected running, got %s", s.Driver().State())
	}
	if out.format != audio.Mono16(DefaultSampleRate) {
		t.Errorf("unexpected output format: %+v", out.format)
	}
	if out.src != s.Driver() {
		t.Error("output should pull from the driver")
	}
	if got := s.Driver().Cycles(); got != DefaultNumBuffers {
		t.Errorf("expected %d pre-filled cycles, got %d", DefaultNumBuffers, got)
	}

	if err := s.Start(out); err == nil {
		t.Error("expected error starting a running driver")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !out.closed {
		t.Error("expected output to be closed")
	}
}

func TestDriverStartFailure(t *testing.T) {
	s := New(Config{Seed: 1})
	out := &fakeOutput{openErr: errors.New("no device")}

	err := s.Start(out)
	if err == nil {
		t.Fatal("expected error when the output cannot be acquired")
	}
	if !errors.Is(err, out.openErr) {
		t.Errorf("expected wrapped device error, got %v", err)
	}
	if s.Driver().State() != DriverUninitialized {
		t.Errorf("expected uninitialized after failure, got %s", s.Driver().State())
	}
}

func TestDriverReadCyclesBuffers(t *testing.T) {
	const frames = 256
	s := New(Config{Seed: 1, BufferFrames: frames, NumBuffers: 3})
	out := &fakeOutput{}
	if err := s.Start(out); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Partial read does not complete a buffer
	p := make([]byte, frames)
	if n, err := out.src.Read(p); n != len(p) || err != nil {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	if got := s.Driver().Cycles(); got != 3 {
		t.Errorf("expected 3 cycles after partial read, got %d", got)
	}

	// Finishing the head buffer plus two more triggers three refills
	p = make([]byte, frames+2*frames*2)
	if n, err := out.src.Read(p); n != len(p) || err != nil {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	if got := s.Driver().Cycles(); got != 6 {
		t.Errorf("expected 6 cycles, got %d", got)
	}
}

func TestDriverDeliversSynthesizedAudio(t *testing.T) {
	const frames = 512
	s := New(Config{Seed: 7, BufferFrames: frames, NumBuffers: 2})
	s.Trigger(440, 1.0, 127, []float64{1.0})

	out := &fakeOutput{}
	if err := s.Start(out); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	p := make([]byte, frames*2)
	if _, err := io.ReadFull(out.src, p); err != nil {
		t.Fatalf("ReadFull() failed: %v", err)
	}

	samples := audio.Int16FromLE(p)
	nonzero := 0
	for _, v := range samples {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero < frames/2 {
		t.Errorf("expected audible output, only %d nonzero samples", nonzero)
	}
}

func TestDriverForwardsToRecorder(t *testing.T) {
	const frames = 1024
	path := filepath.Join(t.TempDir(), "driver.wav")

	s := New(Config{Seed: 3, BufferFrames: frames})
	s.StartRecording(path)
	s.Trigger(220, 0.5, 100, []float64{1.0, 0.5})

	out := &fakeOutput{}
	if err := s.Start(out); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	p := make([]byte, frames*2*4)
	if _, err := io.ReadFull(out.src, p); err != nil {
		t.Fatalf("ReadFull() failed: %v", err)
	}

	cycles := s.Driver().Cycles()
	s.StopRecording()

	rec, err := encode.ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV() failed: %v", err)
	}
	if int64(len(rec.Samples)) != cycles*frames {
		t.Errorf("expected %d recorded samples for %d cycles, got %d", cycles*frames, cycles, len(rec.Samples))
	}

	// The first bytes the device received are the first recorded cycle
	played := audio.Int16FromLE(p[:frames*2])
	for i := range played {
		if played[i] != rec.Samples[i] {
			t.Fatalf("sample %d: device got %d, recording has %d", i, played[i], rec.Samples[i])
		}
	}
}

func TestDriverCycle(t *testing.T) {
	s := New(Config{Seed: 1, BufferFrames: 128})
	s.Trigger(440, 0.01, 127, []float64{1.0})

	buf := s.Driver().Cycle()
	if len(buf) != 128 {
		t.Fatalf("expected 128 samples, got %d", len(buf))
	}
	if s.Driver().Cycles() != 1 {
		t.Errorf("expected 1 cycle, got %d", s.Driver().Cycles())
	}
	if s.Driver().State() != DriverUninitialized {
		t.Error("offline cycles should not start the driver")
	}
}

func TestDriverStateString(t *testing.T) {
	if DriverRunning.String() != "running" || DriverUninitialized.String() != "uninitialized" {
		t.Error("unexpected state names")
	}
	if DriverState(9).String() != "DriverState(9)" {
		t.Errorf("unexpected unknown state name: %s", DriverState(9).String())
	}
}

func TestDriverCloseDuringStart(t *testing.T) {
	s := New(Config{Seed: 1})
	out := &fakeOutput{}

	done := make(chan error, 1)
	go func() { done <- s.Start(out) }()
	// Racing Close must either see no output or the fully opened one
	if err := s.Driver().Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := s.Driver().Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !out.closed {
		t.Error("expected output closed once Start had finished")
	}
	if err := s.Driver().Close(); err != nil {
		t.Errorf("second Close() should be a no-op, got %v", err)
	}
}
