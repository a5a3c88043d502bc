// ABOUTME: Command-line remote for synth control servers
// ABOUTME: Discovers or dials a synth and plays notes or controls recording
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sendspin/sendspin-synth/internal/discovery"
	"github.com/Sendspin/sendspin-synth/internal/version"
	"github.com/Sendspin/sendspin-synth/pkg/protocol"
)

var (
	serverAddr = flag.String("server", "", "Synth address host:port (skip mDNS)")
	discover   = flag.Duration("discover", 5*time.Second, "How long to browse for a synth via mDNS")
	name       = flag.String("name", "synth-remote", "Client name sent in the handshake")
	duration   = flag.Float64("duration", 0.5, "Note duration in seconds")
	velocity   = flag.Int("velocity", 100, "Note velocity (0-127)")
	preset     = flag.String("preset", "", "Harmonic preset (default: server's sine)")
	harmonics  = flag.String("harmonics", "", "Comma-separated harmonic weights, overrides -preset")
	gap        = flag.Duration("gap", 0, "Delay between notes; 0 plays them as a chord")
	timeout    = flag.Duration("timeout", 5*time.Second, "Per-request timeout")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [flags] <command> [args]

Commands:
  play <note|freqHz>...   play MIDI notes (60) or frequencies (440hz)
  record <file>           start recording <file> in the synth's -record-dir
  stop                    stop recording
  state                   print engine counters

Flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	addr := *serverAddr
	if addr == "" {
		found, err := browse(*discover)
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		addr = found
	}

	client := protocol.NewClient(protocol.Config{
		ServerAddr: addr,
		Name:       *name,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product + " Remote",
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	})
	if err := client.Connect(); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer client.Close()

	if err := run(client, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatalf("%s failed: %v", flag.Arg(0), err)
	}

	_ = client.SendGoodbye("user_request")
}

// browse returns the address of the first synth found via mDNS
func browse(wait time.Duration) (string, error) {
	mgr := discovery.NewManager(discovery.Config{})
	defer mgr.Stop()

	if err := mgr.Browse(); err != nil {
		return "", err
	}

	select {
	case server := <-mgr.Servers():
		log.Printf("Using %s at %s", server.Name, server.Addr())
		return server.Addr(), nil
	case <-time.After(wait):
		return "", fmt.Errorf("no synth found after %v", wait)
	}
}

func run(client *protocol.Client, command string, args []string) error {
	switch command {
	case "play":
		notes, err := parseNotes(args)
		if err != nil {
			return err
		}
		return play(client, notes)
	case "record":
		if len(args) != 1 {
			return fmt.Errorf("usage: record <file>")
		}
		return stateCommand(func(ctx context.Context) (*protocol.ServerState, error) {
			return client.StartRecording(ctx, args[0])
		})
	case "stop":
		return stateCommand(client.StopRecording)
	case "state":
		return stateCommand(client.State)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func stateCommand(request func(context.Context) (*protocol.ServerState, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	state, err := request(ctx)
	if err != nil {
		return err
	}

	rec := "off"
	if state.Recording {
		rec = fmt.Sprintf("on (%s, %d frames)", state.RecordingPath, state.RecordedFrames)
	}
	fmt.Printf("voices=%d triggered=%d dropped=%d ignored=%d cycles=%d recording=%s\n",
		state.ActiveVoices, state.Triggered, state.Dropped, state.Ignored, state.Cycles, rec)
	return nil
}

func play(client *protocol.Client, notes []protocol.NotePlay) error {
	for i, note := range notes {
		if i > 0 && *gap > 0 {
			time.Sleep(*gap)
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		result, err := client.PlayNote(ctx, note)
		cancel()
		if err != nil {
			return err
		}

		if result.Accepted {
			fmt.Printf("%.2f Hz: playing\n", result.Frequency)
		} else {
			fmt.Printf("%.2f Hz: rejected (%s)\n", result.Frequency, result.Reason)
		}
	}
	return nil
}

// parseNotes turns "60" into a MIDI note and "440hz" into a frequency
func parseNotes(args []string) ([]protocol.NotePlay, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: play <note|freqHz>...")
	}

	weights, err := parseHarmonics(*harmonics)
	if err != nil {
		return nil, err
	}

	notes := make([]protocol.NotePlay, 0, len(args))
	for _, arg := range args {
		note := protocol.NotePlay{
			Duration:  *duration,
			Velocity:  *velocity,
			Harmonics: weights,
			Preset:    *preset,
		}

		lower := strings.ToLower(arg)
		if hz, ok := strings.CutSuffix(lower, "hz"); ok {
			freq, err := strconv.ParseFloat(hz, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid frequency %q: %w", arg, err)
			}
			note.Frequency = freq
		} else {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid note %q: %w", arg, err)
			}
			note.Note = &n
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func parseHarmonics(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}

	fields := strings.Split(s, ",")
	weights := make([]float64, 0, len(fields))
	for _, field := range fields {
		w, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid harmonic weight %q: %w", field, err)
		}
		weights = append(weights, w)
	}
	return weights, nil
}
