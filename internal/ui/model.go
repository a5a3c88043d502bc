// ABOUTME: Bubbletea model for the keyboard piano TUI
// ABOUTME: Maps keys to notes and shows engine state and recording status
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sendspin/sendspin-synth/pkg/audio/output"
	"github.com/Sendspin/sendspin-synth/pkg/synth"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultVelocity = 100
	defaultDuration = 0.5
	defaultBaseNote = 60 // C4

	minBaseNote = 24
	maxBaseNote = 96

	velocityStep = 8
	durationStep = 0.1
	maxDuration  = 4.0

	volumeStep = 5

	refreshInterval = 100 * time.Millisecond
)

// Controller is the synth surface driven by the TUI
type Controller interface {
	Trigger(frequency, duration float64, velocity int, harmonics []float64) bool
	StartRecording(path string)
	StopRecording()
	Stats() synth.Stats
}

// keyOffsets maps keyboard keys to semitones above the base note.
// The home row holds the white keys and the row above the black keys.
var keyOffsets = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6, "g": 7,
	"y": 8, "h": 9, "u": 10, "j": 11, "k": 12, "o": 13, "l": 14, "p": 15, ";": 16,
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Model represents the TUI state
type Model struct {
	ctrl Controller
	name string

	// Playing
	baseNote int
	velocity int
	duration float64
	presets  []string
	preset   int

	// Last note
	lastNote     int
	lastAccepted bool
	played       bool

	// Recording
	recordDir     string
	recordingPath string
	sampleRate    int
	now           func() time.Time

	// Monitor output, nil when there is no device
	volume output.VolumeControl

	stats synth.Stats

	// Dimensions
	width  int
	height int
}

type tickMsg time.Time

// Options configures the TUI
type Options struct {
	// Name shown in the title
	Name string

	// RecordDir receives recordings started with the record key (default: ".")
	RecordDir string

	// Preset selects the initial timbre (default: "sine")
	Preset string

	// SampleRate converts recorded frames to seconds (default: 44100)
	SampleRate int

	// Volume adjusts the monitor output; nil hides the volume controls
	Volume output.VolumeControl
}

// NewModel creates a new TUI model
func NewModel(ctrl Controller, opts Options) Model {
	if opts.Name == "" {
		opts.Name = "Sendspin Synth"
	}
	if opts.RecordDir == "" {
		opts.RecordDir = "."
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = synth.DefaultSampleRate
	}

	presets := synth.PresetNames()
	preset := 0
	for i, name := range presets {
		if name == opts.Preset || (opts.Preset == "" && name == "sine") {
			preset = i
		}
	}

	return Model{
		ctrl:       ctrl,
		name:       opts.Name,
		baseNote:   defaultBaseNote,
		velocity:   defaultVelocity,
		duration:   defaultDuration,
		presets:    presets,
		preset:     preset,
		recordDir:  opts.RecordDir,
		sampleRate: opts.SampleRate,
		now:        time.Now,
		volume:     opts.Volume,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.refresh()
		return m, tickEvery()
	}

	return m, nil
}

func (m *Model) refresh() {
	if m.ctrl != nil {
		m.stats = m.ctrl.Stats()
	}
	if !m.stats.Recording {
		m.recordingPath = ""
	}
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if offset, ok := keyOffsets[key]; ok {
		m.play(m.baseNote + offset)
		return m, nil
	}

	switch key {
	case "q", "esc", "ctrl+c":
		if m.recordingPath != "" && m.ctrl != nil {
			m.ctrl.StopRecording()
		}
		return m, tea.Quit
	case "z":
		m.baseNote = max(m.baseNote-12, minBaseNote)
	case "x":
		m.baseNote = min(m.baseNote+12, maxBaseNote)
	case "up":
		m.velocity = min(m.velocity+velocityStep, 127)
	case "down":
		m.velocity = max(m.velocity-velocityStep, 1)
	case "right":
		m.duration = min(m.duration+durationStep, maxDuration)
	case "left":
		m.duration = max(m.duration-durationStep, durationStep)
	case "tab":
		m.preset = (m.preset + 1) % len(m.presets)
	case "r":
		m.toggleRecording()
	case "m":
		if m.volume != nil {
			m.volume.SetMuted(!m.volume.IsMuted())
		}
	case "-":
		if m.volume != nil {
			m.volume.SetVolume(m.volume.GetVolume() - volumeStep)
		}
	case "=", "+":
		if m.volume != nil {
			m.volume.SetVolume(m.volume.GetVolume() + volumeStep)
		}
	}

	return m, nil
}

// play triggers a note with the current settings
func (m *Model) play(note int) {
	m.lastNote = note
	m.played = true
	if m.ctrl == nil {
		return
	}

	weights, err := synth.Preset(m.presets[m.preset])
	if err != nil {
		return
	}
	m.lastAccepted = m.ctrl.Trigger(synth.NoteToFrequency(note), m.duration, m.velocity, weights)
}

func (m *Model) toggleRecording() {
	if m.ctrl == nil {
		return
	}

	if m.recordingPath != "" {
		m.ctrl.StopRecording()
		m.recordingPath = ""
		m.refresh()
		return
	}

	path := filepath.Join(m.recordDir, fmt.Sprintf("synth-%s.wav", m.now().Format("20060102-150405")))
	m.ctrl.StartRecording(path)
	m.refresh()
	if m.stats.Recording {
		m.recordingPath = path
	}
}

// View renders the TUI
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	recStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196"))

	var b strings.Builder

	b.WriteString(titleStyle.Render(m.name))
	b.WriteString("\n\n")

	field := func(label, value string) {
		b.WriteString(headerStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Octave:   ", fmt.Sprintf("%s-%s", noteName(m.baseNote), noteName(m.baseNote+16)))
	field("Preset:   ", m.presets[m.preset])
	field("Velocity: ", fmt.Sprintf("%s %d", renderBar(m.velocity, 127, 16), m.velocity))
	field("Duration: ", fmt.Sprintf("%.1fs", m.duration))
	if m.volume != nil {
		vol := fmt.Sprintf("%s %d%%", renderBar(m.volume.GetVolume(), 100, 16), m.volume.GetVolume())
		if m.volume.IsMuted() {
			vol = "muted"
		}
		field("Volume:   ", vol)
	}

	last := "-"
	if m.played {
		status := "busy"
		if m.lastAccepted {
			status = "ok"
		}
		last = fmt.Sprintf("%s %.2f Hz (%s)", noteName(m.lastNote), synth.NoteToFrequency(m.lastNote), status)
	}
	field("Last:     ", last)
	b.WriteString("\n")

	field("Voices:   ", fmt.Sprintf("%d  played %d  dropped %d", m.stats.ActiveVoices, m.stats.Triggered, m.stats.Dropped))
	field("Cycles:   ", fmt.Sprintf("%d", m.stats.Cycles))

	if m.stats.Recording {
		path := m.recordingPath
		if path == "" {
			path = "(started externally)"
		}
		b.WriteString(recStyle.Render("● REC "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%s  %.1fs", path, m.recordedSeconds())))
		if m.stats.RecorderDropped > 0 {
			b.WriteString(recStyle.Render(fmt.Sprintf("  %d buffers dropped", m.stats.RecorderDropped)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := "a-; play  z/x octave  ↑/↓ velocity  ←/→ duration  tab preset  r record  q quit"
	if m.volume != nil {
		help += "\n-/= volume  m mute"
	}
	b.WriteString(lipgloss.NewStyle().Faint(true).Render(help))
	b.WriteString("\n")

	return b.String()
}

func (m Model) recordedSeconds() float64 {
	return float64(m.stats.RecordedFrames) / float64(m.sampleRate)
}

// noteName returns scientific pitch notation for a MIDI note
func noteName(note int) string {
	return fmt.Sprintf("%s%d", noteNames[note%12], note/12-1)
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}
