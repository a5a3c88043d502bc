// ABOUTME: Audio encoder package for PCM and WAV output
// ABOUTME: Provides the PCM encoder and the WAV writer/reader
// Package encode provides the encoders used to persist synthesized audio.
//
// Supports: 16-bit little-endian PCM, canonical PCM WAV files.
//
// The WAV writer emits the 44-byte canonical header immediately with zeroed
// size fields, streams samples into the data chunk and rewrites the sizes at
// byte offsets 4 and 40 when closed.
//
// Example:
//
//	f, err := os.Create("take.wav")
//	w, err := encode.NewWAV(f, audio.Mono16(44100))
//	err = w.Write(samples)
//	err = w.Close()
//	err = f.Close()
package encode
