// ABOUTME: Tests for the keyboard piano TUI model
// ABOUTME: Tests key mapping, settings changes and recording toggles
package ui

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sendspin/sendspin-synth/pkg/audio/output"
	"github.com/Sendspin/sendspin-synth/pkg/synth"
	tea "github.com/charmbracelet/bubbletea"
)

type triggered struct {
	frequency float64
	duration  float64
	velocity  int
	harmonics []float64
}

type fakeController struct {
	notes      []triggered
	accept     bool
	recording  bool
	failRecord bool
	paths      []string
	stops      int
}

func (f *fakeController) Trigger(frequency, duration float64, velocity int, harmonics []float64) bool {
	f.notes = append(f.notes, triggered{frequency, duration, velocity, harmonics})
	return f.accept
}

func (f *fakeController) StartRecording(path string) {
	f.paths = append(f.paths, path)
	if !f.failRecord {
		f.recording = true
	}
}

func (f *fakeController) StopRecording() {
	f.stops++
	f.recording = false
}

func (f *fakeController) Stats() synth.Stats {
	return synth.Stats{Recording: f.recording, ActiveVoices: len(f.notes), RecordedFrames: 44100}
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...tea.KeyMsg) Model {
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil, Options{})

	if model.velocity != defaultVelocity {
		t.Errorf("expected default velocity %d, got %d", defaultVelocity, model.velocity)
	}
	if model.baseNote != defaultBaseNote {
		t.Errorf("expected base note %d, got %d", defaultBaseNote, model.baseNote)
	}
	if model.presets[model.preset] != "sine" {
		t.Errorf("expected sine preset, got %s", model.presets[model.preset])
	}
	if model.recordDir != "." || model.sampleRate != synth.DefaultSampleRate {
		t.Errorf("defaults not applied: dir=%s rate=%d", model.recordDir, model.sampleRate)
	}

	model = NewModel(nil, Options{Preset: "organ"})
	if model.presets[model.preset] != "organ" {
		t.Errorf("expected organ preset, got %s", model.presets[model.preset])
	}
}

func TestKeyTriggersNote(t *testing.T) {
	tests := []struct {
		key       string
		frequency float64
	}{
		{"a", 261.6256},
		{"h", 440.0},
		{"k", 523.2511},
		{"w", 277.1826},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			ctrl := &fakeController{accept: true}
			m := press(NewModel(ctrl, Options{}), runeKey(tt.key))

			if len(ctrl.notes) != 1 {
				t.Fatalf("expected 1 note, got %d", len(ctrl.notes))
			}
			got := ctrl.notes[0]
			if math.Abs(got.frequency-tt.frequency) > 0.001 {
				t.Errorf("frequency: got %f, want %f", got.frequency, tt.frequency)
			}
			if got.velocity != defaultVelocity || got.duration != defaultDuration {
				t.Errorf("unexpected note settings: %+v", got)
			}
			if len(got.harmonics) != 1 || got.harmonics[0] != 1.0 {
				t.Errorf("expected sine harmonics, got %v", got.harmonics)
			}
			if !m.played || !m.lastAccepted {
				t.Error("expected last note to be recorded as accepted")
			}
		})
	}
}

func TestSettingsKeys(t *testing.T) {
	ctrl := &fakeController{accept: true}
	m := NewModel(ctrl, Options{})

	m = press(m, runeKey("x"), tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyRight}, tea.KeyMsg{Type: tea.KeyTab})
	if m.baseNote != 72 {
		t.Errorf("expected base note 72, got %d", m.baseNote)
	}
	if m.velocity != defaultVelocity+velocityStep {
		t.Errorf("expected velocity %d, got %d", defaultVelocity+velocityStep, m.velocity)
	}
	if math.Abs(m.duration-0.6) > 1e-9 {
		t.Errorf("expected duration 0.6, got %f", m.duration)
	}

	m = press(m, runeKey("h"))
	if math.Abs(ctrl.notes[0].frequency-880) > 0.001 {
		t.Errorf("expected A5 after octave up, got %f", ctrl.notes[0].frequency)
	}
	if len(ctrl.notes[0].harmonics) == 1 {
		t.Error("expected preset after sine to have more than one partial")
	}
}

func TestSettingsClamp(t *testing.T) {
	m := NewModel(nil, Options{})

	for i := 0; i < 20; i++ {
		m = press(m, runeKey("z"), tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyLeft})
	}
	if m.baseNote != minBaseNote || m.velocity != 1 || math.Abs(m.duration-durationStep) > 1e-9 {
		t.Errorf("lower clamps failed: note=%d vel=%d dur=%f", m.baseNote, m.velocity, m.duration)
	}

	for i := 0; i < 50; i++ {
		m = press(m, runeKey("x"), tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyRight})
	}
	if m.baseNote != maxBaseNote || m.velocity != 127 || m.duration != maxDuration {
		t.Errorf("upper clamps failed: note=%d vel=%d dur=%f", m.baseNote, m.velocity, m.duration)
	}
}

func TestVolumeKeys(t *testing.T) {
	monitor := output.NewOto(0)
	m := NewModel(nil, Options{Volume: monitor})

	m = press(m, runeKey("-"), runeKey("-"))
	if got := monitor.GetVolume(); got != 100-2*volumeStep {
		t.Errorf("expected volume %d, got %d", 100-2*volumeStep, got)
	}
	m = press(m, runeKey("="))
	if got := monitor.GetVolume(); got != 100-volumeStep {
		t.Errorf("expected volume %d, got %d", 100-volumeStep, got)
	}
	if !strings.Contains(m.View(), "Volume:") {
		t.Error("expected volume line in view")
	}

	m = press(m, runeKey("m"))
	if !monitor.IsMuted() || !strings.Contains(m.View(), "muted") {
		t.Error("expected m to mute the monitor")
	}
	m = press(m, runeKey("m"))
	if monitor.IsMuted() {
		t.Error("expected second m to unmute")
	}

	for i := 0; i < 30; i++ {
		m = press(m, runeKey("+"))
	}
	if got := monitor.GetVolume(); got != 100 {
		t.Errorf("expected volume clamped to 100, got %d", got)
	}
}

func TestVolumeKeysWithoutMonitor(t *testing.T) {
	ctrl := &fakeController{accept: true}
	m := NewModel(ctrl, Options{})

	m = press(m, runeKey("m"), runeKey("-"), runeKey("="))
	if len(ctrl.notes) != 0 {
		t.Errorf("volume keys should not play notes, got %d", len(ctrl.notes))
	}
	if strings.Contains(m.View(), "Volume:") {
		t.Error("volume line should be hidden without a monitor")
	}
}

func TestRecordToggle(t *testing.T) {
	ctrl := &fakeController{}
	m := NewModel(ctrl, Options{RecordDir: "/tmp/takes"})
	m.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC) }

	m = press(m, runeKey("r"))
	want := filepath.Join("/tmp/takes", "synth-20240301-123045.wav")
	if len(ctrl.paths) != 1 || ctrl.paths[0] != want {
		t.Fatalf("expected start at %s, got %v", want, ctrl.paths)
	}
	if m.recordingPath != want {
		t.Errorf("expected recording path %s, got %s", want, m.recordingPath)
	}
	if !strings.Contains(m.View(), "REC") {
		t.Error("view should show recording indicator")
	}

	m = press(m, runeKey("r"))
	if ctrl.stops != 1 || m.recordingPath != "" {
		t.Errorf("expected stop, got stops=%d path=%s", ctrl.stops, m.recordingPath)
	}
}

func TestRecordStartFailure(t *testing.T) {
	ctrl := &fakeController{failRecord: true}
	m := press(NewModel(ctrl, Options{}), runeKey("r"))

	if m.recordingPath != "" {
		t.Error("recording path should stay empty when start fails")
	}
	if strings.Contains(m.View(), "REC") {
		t.Error("view should not show recording indicator")
	}
}

func TestQuitStopsRecording(t *testing.T) {
	ctrl := &fakeController{}
	m := press(NewModel(ctrl, Options{}), runeKey("r"))

	_, cmd := m.Update(runeKey("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if ctrl.stops != 1 {
		t.Errorf("expected recording to be finalized on quit, got %d stops", ctrl.stops)
	}
}

func TestTickRefreshesStats(t *testing.T) {
	ctrl := &fakeController{accept: true}
	m := press(NewModel(ctrl, Options{}), runeKey("a"), runeKey("s"))

	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if cmd == nil {
		t.Error("expected next tick to be scheduled")
	}
	if m.stats.ActiveVoices != 2 {
		t.Errorf("expected 2 active voices, got %d", m.stats.ActiveVoices)
	}
}

func TestNoteName(t *testing.T) {
	tests := []struct {
		note     int
		expected string
	}{
		{60, "C4"},
		{69, "A4"},
		{61, "C#4"},
		{24, "C1"},
	}

	for _, tt := range tests {
		if got := noteName(tt.note); got != tt.expected {
			t.Errorf("noteName(%d) = %s, want %s", tt.note, got, tt.expected)
		}
	}
}

func TestRenderBar(t *testing.T) {
	bar := renderBar(64, 128, 4)
	if bar != "██░░" {
		t.Errorf("unexpected bar: %s", bar)
	}
}
