// ABOUTME: Entry point for the Sendspin polyphonic synthesizer
// ABOUTME: Parses CLI flags, starts audio output, the keyboard TUI and the control server
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sendspin/sendspin-synth/internal/ui"
	"github.com/Sendspin/sendspin-synth/internal/version"
	"github.com/Sendspin/sendspin-synth/pkg/audio/output"
	"github.com/Sendspin/sendspin-synth/pkg/synth"
	"github.com/Sendspin/sendspin-synth/pkg/synthserver"
)

var (
	name         = flag.String("name", "", "Synth friendly name (default: hostname-sendspin-synth)")
	logFile      = flag.String("log-file", "sendspin-synth.log", "Log file path")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	headless     = flag.Bool("headless", false, "Render without an audio device")
	controlPort  = flag.Int("control-port", synthserver.DefaultPort, "WebSocket control port (0 disables)")
	noMDNS       = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	polyphony    = flag.Int("polyphony", synth.DefaultMaxPolyphony, "Maximum simultaneous voices")
	bufferFrames = flag.Int("buffer-frames", synth.DefaultBufferFrames, "Frames per render cycle")
	volume       = flag.Int("volume", 100, "Output volume (0-100)")
	preset       = flag.String("preset", "sine", "Initial keyboard timbre")
	record       = flag.String("record", "", "Start recording to this WAV path immediately")
	recordDir    = flag.String("record-dir", ".", "Directory for recordings started from the keyboard or by remote clients")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	synthName := *name
	if synthName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		synthName = fmt.Sprintf("%s-sendspin-synth", hostname)
	}

	log.Printf("Starting %s: %s", version.String(), synthName)

	if _, err := synth.Preset(*preset); err != nil {
		log.Fatalf("Invalid -preset: %v (available: %v)", err, synth.PresetNames())
	}

	s := synth.New(synth.Config{
		MaxPolyphony: *polyphony,
		BufferFrames: *bufferFrames,
	})
	cfg := s.Config()
	log.Printf("Engine: %dHz mono, %d voices, %d harmonics max, %d x %d frame buffers",
		cfg.SampleRate, cfg.MaxPolyphony, cfg.MaxHarmonics, cfg.NumBuffers, cfg.BufferFrames)

	var out output.Output
	if *headless {
		out = output.NewHeadless(cfg.BufferFrames, nil)
	} else {
		out = output.NewOto(bufferLatency(cfg))
	}
	monitor, _ := out.(output.VolumeControl)
	if monitor != nil {
		monitor.SetVolume(*volume)
	}

	// The synthesizer cannot run without its output
	if err := s.Start(out); err != nil {
		log.Fatalf("Failed to start audio: %v", err)
	}

	if *record != "" {
		s.StartRecording(*record)
	}

	var srv *synthserver.Server
	if *controlPort > 0 {
		srv, err = synthserver.NewServer(synthserver.Config{
			Port:       *controlPort,
			Name:       synthName,
			Engine:     s,
			RecordDir:  *recordDir,
			EnableMDNS: !*noMDNS,
			Debug:      *debug,
		})
		if err != nil {
			log.Fatalf("Failed to create control server: %v", err)
		}
		go func() {
			if err := srv.Start(); err != nil {
				log.Printf("Control server error: %v", err)
			}
		}()
	}

	if useTUI {
		if err := ui.Run(s, ui.Options{
			Name:       synthName,
			RecordDir:  *recordDir,
			Preset:     *preset,
			SampleRate: cfg.SampleRate,
			Volume:     monitor,
		}); err != nil {
			log.Printf("TUI error: %v", err)
		}
		log.Printf("Received quit from TUI")
	} else {
		log.Printf("Press Ctrl-C to stop")
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
	}

	if srv != nil {
		srv.Stop()
	}

	stats := s.Stats()
	if err := s.Close(); err != nil {
		log.Printf("Error closing output: %v", err)
	}

	log.Printf("Synth stopped: %d notes played, %d dropped, %d render cycles",
		stats.Triggered, stats.Dropped, stats.Cycles)
}

// bufferLatency sizes the device buffer to the driver's ring
func bufferLatency(cfg synth.Config) time.Duration {
	frames := cfg.BufferFrames * cfg.NumBuffers
	return time.Duration(frames) * time.Second / time.Duration(cfg.SampleRate)
}
