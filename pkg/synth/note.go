// ABOUTME: Note and timbre helpers for hosts
// ABOUTME: Converts MIDI note numbers to Hz and provides named harmonic presets
package synth

import (
	"fmt"
	"math"
	"sort"
)

// NoteToFrequency returns the equal-tempered frequency of a MIDI note (A4 = 69 = 440Hz)
func NoteToFrequency(note int) float64 {
	return 440.0 * math.Pow(2, float64(note-69)/12.0)
}

var presets = map[string][]float64{
	"sine":     {1.0},
	"harmonic": {0.6, 0.3, 0.1},
	"organ":    {1.0, 0.5, 0, 0.25, 0, 0.125},
	"square":   seriesWeights(15, true),
	"sawtooth": seriesWeights(15, false),
}

// seriesWeights returns 1/n weights, odd harmonics only when oddOnly is set
func seriesWeights(n int, oddOnly bool) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		h := i + 1
		if oddOnly && h%2 == 0 {
			continue
		}
		weights[i] = 1.0 / float64(h)
	}
	return weights
}

// Preset returns a copy of the named harmonic weights
func Preset(name string) ([]float64, error) {
	weights, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset: %s", name)
	}
	return append([]float64(nil), weights...), nil
}

// PresetNames returns the available preset names in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
