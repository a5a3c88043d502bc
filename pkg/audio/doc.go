// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and 16-bit PCM conversion helpers
// Package audio provides fundamental audio types shared by the synthesizer,
// its recorder and the output backends.
//
// The synthesizer produces mono signed 16-bit PCM. This package describes that
// format and converts between int16 samples and their little-endian wire form.
//
// Example:
//
//	format := audio.Mono16(44100)
//	buf := make([]byte, len(samples)*audio.BytesPerSample)
//	audio.PutInt16LE(buf, samples)
package audio
