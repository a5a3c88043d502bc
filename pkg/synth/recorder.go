// ABOUTME: WAV recorder that taps the rendered PCM stream
// ABOUTME: Queues buffers from the render path to a writer goroutine and finalizes on stop
package synth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
	"github.com/Sendspin/sendspin-synth/pkg/audio/encode"
	"github.com/google/uuid"
)

// NoteEvent records a note accepted while recording
type NoteEvent struct {
	Frame     int64     `json:"frame"`
	Frequency float64   `json:"frequency"`
	Duration  float64   `json:"duration"`
	Velocity  int       `json:"velocity"`
	Harmonics int       `json:"harmonics"`
	Time      time.Time `json:"time"`
}

// eventLog is the JSON sidecar written next to each recording
type eventLog struct {
	SessionID   string      `json:"session_id"`
	SampleRate  int         `json:"sample_rate"`
	Frames      int64       `json:"frames"`
	AudioEvents []NoteEvent `json:"audio_events"`
}

// Recorder persists every rendered buffer to a WAV file while active.
//
// Append is called from the render path. It never performs I/O: buffers are
// copied onto a bounded queue drained by a writer goroutine, and dropped
// when the queue is full.
type Recorder struct {
	format    audio.Format
	queueSize int

	ctlMu   sync.Mutex   // serializes Start/Stop
	mu      sync.RWMutex // guards session against Append
	session *recordSession
	active  atomic.Bool

	bufPool sync.Pool
}

type recordSession struct {
	id    string
	path  string
	file  *os.File
	wav   *encode.WAVWriter
	queue chan []int16
	done  chan struct{}
	err   error

	submitted atomic.Int64
	written   atomic.Int64
	dropped   atomic.Int64

	eventsMu sync.Mutex
	events   []NoteEvent
}

// RecordingInfo summarizes a finished recording
type RecordingInfo struct {
	SessionID string
	Path      string
	Frames    int64
	Dropped   int64
	Events    int
}

// NewRecorder creates an inactive recorder for the given stream format
func NewRecorder(format audio.Format, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Recorder{
		format:    format,
		queueSize: queueSize,
	}
}

// Recording reports whether a session is open
func (r *Recorder) Recording() bool {
	return r.active.Load()
}

// Start opens path and writes a placeholder WAV header. It is a no-op if a
// session is already open.
func (r *Recorder) Start(path string) error {
	r.ctlMu.Lock()
	defer r.ctlMu.Unlock()

	if r.active.Load() {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open recording target: %w", err)
	}

	wav, err := encode.NewWAV(f, r.format)
	if err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to start wav stream: %w", err)
	}

	s := &recordSession{
		id:    uuid.New().String(),
		path:  path,
		file:  f,
		wav:   wav,
		queue: make(chan []int16, r.queueSize),
		done:  make(chan struct{}),
	}
	go r.writer(s)

	r.mu.Lock()
	r.session = s
	r.active.Store(true)
	r.mu.Unlock()

	log.Printf("Recording started: %s (session %s)", path, s.id)
	return nil
}

// writer drains the session queue into the WAV stream
func (r *Recorder) writer(s *recordSession) {
	defer close(s.done)

	for buf := range s.queue {
		if s.err == nil {
			if err := s.wav.Write(buf); err != nil {
				s.err = err
				log.Printf("Recording write error: %v", err)
			} else {
				s.written.Add(int64(len(buf) / r.format.Channels))
			}
		}
		r.bufPool.Put(&buf)
	}
}

// Append queues a copy of samples for the open session, if any.
// It does not block on I/O.
func (r *Recorder) Append(samples []int16) {
	if !r.active.Load() {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.session
	if s == nil {
		return
	}

	buf := r.getBuffer(len(samples))
	copy(buf, samples)

	select {
	case s.queue <- buf:
		s.submitted.Add(int64(len(samples) / r.format.Channels))
	default:
		s.dropped.Add(1)
		r.bufPool.Put(&buf)
	}
}

func (r *Recorder) getBuffer(n int) []int16 {
	if p, ok := r.bufPool.Get().(*[]int16); ok && cap(*p) >= n {
		return (*p)[:n]
	}
	return make([]int16, n)
}

// Note logs a note event against the current recording position
func (r *Recorder) Note(ev NoteEvent) {
	if !r.active.Load() {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.session
	if s == nil {
		return
	}

	ev.Frame = s.submitted.Load()
	s.eventsMu.Lock()
	s.events = append(s.events, ev)
	s.eventsMu.Unlock()
}

// Frames returns the number of frames written in the open session
func (r *Recorder) Frames() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.session == nil {
		return 0
	}
	return r.session.written.Load()
}

// Dropped returns the number of buffers the open session could not queue
func (r *Recorder) Dropped() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.session == nil {
		return 0
	}
	return r.session.dropped.Load()
}

// Stop drains queued buffers, rewrites the header sizes and closes the
// target. It is a no-op if nothing is recording.
func (r *Recorder) Stop() (*RecordingInfo, error) {
	r.ctlMu.Lock()
	defer r.ctlMu.Unlock()

	r.mu.Lock()
	s := r.session
	if s == nil {
		r.mu.Unlock()
		return nil, nil
	}
	r.session = nil
	r.active.Store(false)
	close(s.queue)
	r.mu.Unlock()

	<-s.done

	var errs []error
	if s.err != nil {
		errs = append(errs, s.err)
	}
	if err := s.wav.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to finalize wav header: %w", err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close recording: %w", err))
	}

	info := &RecordingInfo{
		SessionID: s.id,
		Path:      s.path,
		Frames:    s.written.Load(),
		Dropped:   s.dropped.Load(),
		Events:    len(s.events),
	}

	if err := r.writeEventLog(s, info.Frames); err != nil {
		log.Printf("Failed to write recording event log: %v", err)
	}

	if info.Dropped > 0 {
		log.Printf("Recording %s dropped %d buffers (writer fell behind)", s.id, info.Dropped)
	}
	log.Printf("Recording stopped: %s (%d frames, %d events)", s.path, info.Frames, info.Events)

	return info, errors.Join(errs...)
}

// EventLogPath returns the JSON sidecar path for a recording target
func EventLogPath(path string) string {
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, ".json") {
		return path + ".events.json"
	}
	return strings.TrimSuffix(path, ext) + ".json"
}

func (r *Recorder) writeEventLog(s *recordSession, frames int64) error {
	s.eventsMu.Lock()
	events := s.events
	s.eventsMu.Unlock()

	if events == nil {
		events = []NoteEvent{}
	}

	data, err := json.MarshalIndent(eventLog{
		SessionID:   s.id,
		SampleRate:  r.format.SampleRate,
		Frames:      frames,
		AudioEvents: events,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal event log: %w", err)
	}

	if err := os.WriteFile(EventLogPath(s.path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write event log: %w", err)
	}
	return nil
}
