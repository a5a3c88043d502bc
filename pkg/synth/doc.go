// ABOUTME: Polyphonic additive synthesizer package
// ABOUTME: Voice pool, mixer, ADSR envelope, soft clip, render driver and WAV recorder
// Package synth implements a real-time polyphonic additive synthesizer.
//
// Each note is a weighted sum of harmonic sine partials shaped by an ADSR
// envelope. Up to MaxPolyphony notes are mixed into a mono 16-bit stream,
// soft limited, handed to an output device and optionally recorded to WAV.
//
// The engine has two sides. Hosts call Trigger, StartRecording and
// StopRecording from any goroutine. The output device pulls samples through
// the Driver, whose render cycles mix every active voice under the pool lock.
// Recording I/O happens on a separate goroutine so render cycles never wait
// on disk.
//
// Example:
//
//	s := synth.New(synth.Config{})
//	if err := s.Start(output.NewOto(0)); err != nil {
//	    log.Fatalf("audio output: %v", err)
//	}
//	s.Trigger(440, 1.0, 100, []float64{1.0, 0.5, 0.25})
//	s.StartRecording("take.wav")
//	s.StopRecording()
package synth
