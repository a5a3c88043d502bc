// ABOUTME: Audio output package for playing synthesized audio
// ABOUTME: Provides the pull-model Output interface with oto and headless backends
// Package output provides audio playback backends.
//
// Backends own the timing: after Open they read PCM from the supplied
// io.Reader whenever the device needs more samples, which is how the
// synthesizer's render driver gets its periodic "buffer needed" callback.
//
// Example:
//
//	out := output.NewOto(0)
//	err := out.Open(audio.Mono16(44100), driver)
package output
