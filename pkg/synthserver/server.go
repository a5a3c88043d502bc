// ABOUTME: WebSocket control server for the synthesizer
// ABOUTME: Exposes note triggering and recording to remote clients, with mDNS advertisement
package synthserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-synth/internal/discovery"
	"github.com/Sendspin/sendspin-synth/pkg/protocol"
	"github.com/Sendspin/sendspin-synth/pkg/synth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultPort is the control server's default listen port
	DefaultPort = 8928

	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Engine is the synthesizer surface the server drives
type Engine interface {
	Trigger(frequency, duration float64, velocity int, harmonics []float64) bool
	StartRecording(path string)
	StopRecording()
	Stats() synth.Stats
	Config() synth.Config
}

// Config configures a control server
type Config struct {
	// Port to listen on (default: 8928)
	Port int

	// Name of the synth for identification
	Name string

	// Engine to control (required)
	Engine Engine

	// RecordDir holds recordings started by clients (default: ".")
	RecordDir string

	// EnableMDNS enables mDNS service advertisement
	EnableMDNS bool

	// Debug enables per-message logging
	Debug bool
}

// Server accepts control connections
type Server struct {
	config   Config
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*client
	clientsMu sync.RWMutex

	// recordingPath is reported in server/state while a remote recording is open
	recordMu      sync.Mutex
	recordingPath string

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

type client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	notes    int64
	sendChan chan protocol.Message

	mu sync.RWMutex
}

// ClientInfo represents information about a connected client
type ClientInfo struct {
	ID    string
	Name  string
	Notes int64
}

// NewServer creates a control server
func NewServer(config Config) (*Server, error) {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = "Sendspin Synth"
	}
	if config.Engine == nil {
		return nil, fmt.Errorf("synth engine is required")
	}
	if config.RecordDir == "" {
		config.RecordDir = "."
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		// Default origin check: non-browser clients send no Origin, browser
		// pages must come from the server's own host
		upgrader: websocket.Upgrader{},
		clients:  make(map[string]*client),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)

	return s, nil
}

// ID returns the server id sent in server/hello
func (s *Server) ID() string {
	return s.serverID
}

// Handler returns the HTTP handler serving the control endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens and serves until Stop is called
func (s *Server) Start() error {
	log.Printf("Control server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		cfg := s.config.Engine.Config()
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        protocol.Path,
			TXT: []string{
				fmt.Sprintf("sample_rate=%d", cfg.SampleRate),
				fmt.Sprintf("polyphony=%d", cfg.MaxPolyphony),
			},
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Control server listening on %s%s", addr, protocol.Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-s.stopChan:
		log.Printf("Control server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		return fmt.Errorf("control server failed: %w", err)
	}

	s.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.closeClients()
	s.wg.Wait()
	log.Printf("Control server stopped cleanly")

	return nil
}

// shutdown refuses new connections and stops advertising
func (s *Server) shutdown() {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}
}

// closeClients drops every open connection; hijacked WebSockets are not
// closed by http.Server.Shutdown
func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		c.Conn.Close()
	}
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Clients returns information about all connected clients
func (s *Server) Clients() []ClientInfo {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		c.mu.RLock()
		clients = append(clients, ClientInfo{ID: c.ID, Name: c.Name, Notes: c.notes})
		c.mu.RUnlock()
	}
	return clients
}

// handleWebSocket upgrades and serves one control connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	closing := s.isShutdown
	s.shutdownMu.RUnlock()
	if closing {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New control connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection runs the handshake then the request loop
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(writeDeadline))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	typ, payload, err := protocol.Decode(data)
	if err != nil {
		log.Printf("Error decoding hello: %v", err)
		return
	}
	if typ != protocol.TypeClientHello {
		log.Printf("Expected client/hello, got %s", typ)
		return
	}

	hello := payload.(*protocol.ClientHello)
	if hello.ClientID == "" || hello.Name == "" {
		log.Printf("Client hello missing required fields")
		return
	}

	log.Printf("Client hello: %s (ID: %s)", hello.Name, hello.ClientID)

	c := &client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan protocol.Message, 32),
	}

	s.clientsMu.Lock()
	if _, exists := s.clients[c.ID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected, rejecting duplicate", c.ID)
		return
	}
	s.clients[c.ID] = c
	s.clientsMu.Unlock()

	defer func() {
		s.removeClient(c)
		log.Printf("Client disconnected: %s", c.Name)
	}()

	cfg := s.config.Engine.Config()
	serverHello := protocol.ServerHello{
		ServerID:     s.serverID,
		Name:         s.config.Name,
		Version:      protocol.ProtocolVersion,
		SampleRate:   cfg.SampleRate,
		MaxPolyphony: cfg.MaxPolyphony,
		MaxHarmonics: cfg.MaxHarmonics,
		Presets:      synth.PresetNames(),
	}
	if err := s.sendMessage(c, 0, protocol.TypeServerHello, serverHello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(c)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if !s.handleClientMessage(c, data) {
			break
		}
	}
}

// clientWriter sends queued messages to the client
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes one request; it returns false on goodbye.
// Every request except goodbye gets exactly one reply carrying its id.
func (s *Server) handleClientMessage(c *client, data []byte) bool {
	id, typ, payload, err := protocol.DecodeRequest(data)
	if err != nil {
		s.sendError(c, id, typ, err.Error())
		return true
	}

	if s.config.Debug {
		log.Printf("Control message from %s: %s (id %d)", c.Name, typ, id)
	}

	switch p := payload.(type) {
	case *protocol.NotePlay:
		s.handleNotePlay(c, id, p)
	case *protocol.RecordStart:
		s.handleRecordStart(c, id, p)
	case *protocol.RecordStop:
		s.handleRecordStop(c, id)
	case *protocol.StateRequest:
		s.reply(c, id, protocol.TypeServerState, s.State())
	case *protocol.ClientGoodbye:
		log.Printf("Client %s goodbye: %s", c.Name, p.Reason)
		return false
	default:
		s.sendError(c, id, typ, "unsupported request")
	}
	return true
}

// handleNotePlay resolves pitch and timbre and triggers the note
func (s *Server) handleNotePlay(c *client, id uint64, p *protocol.NotePlay) {
	frequency := p.Frequency
	if frequency == 0 && p.Note != nil {
		frequency = synth.NoteToFrequency(*p.Note)
	}

	harmonics := p.Harmonics
	if len(harmonics) == 0 {
		preset := p.Preset
		if preset == "" {
			preset = "sine"
		}
		weights, err := synth.Preset(preset)
		if err != nil {
			s.sendError(c, id, protocol.TypeNotePlay, err.Error())
			return
		}
		harmonics = weights
	}

	result := protocol.NoteResult{Frequency: frequency}
	result.Accepted = s.config.Engine.Trigger(frequency, p.Duration, p.Velocity, harmonics)
	if !result.Accepted {
		if !(frequency > 0) || !(p.Duration > 0) {
			result.Reason = "invalid"
		} else {
			result.Reason = "busy"
		}
	} else {
		c.mu.Lock()
		c.notes++
		c.mu.Unlock()
	}

	s.reply(c, id, protocol.TypeNoteResult, result)
}

// recordingTarget maps a client supplied file name into RecordDir. Names
// with directory components and files that already exist are refused.
func (s *Server) recordingTarget(name string) (string, error) {
	base := filepath.Base(name)
	if base != name || base == "." || base == ".." {
		return "", fmt.Errorf("recording name %q must be a plain file name", name)
	}

	path := filepath.Join(s.config.RecordDir, base)
	for _, p := range []string{path, synth.EventLogPath(path)} {
		_, err := os.Lstat(p)
		if err == nil {
			return "", fmt.Errorf("%s already exists", filepath.Base(p))
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("cannot record to %s: %w", base, err)
		}
	}
	return path, nil
}

func (s *Server) handleRecordStart(c *client, id uint64, p *protocol.RecordStart) {
	if p.Path == "" {
		s.sendError(c, id, protocol.TypeRecordStart, "path is required")
		return
	}

	s.recordMu.Lock()
	wasRecording := s.config.Engine.Stats().Recording
	if wasRecording {
		// Already recording: StartRecording would be a no-op
		s.recordMu.Unlock()
		s.reply(c, id, protocol.TypeServerState, s.State())
		return
	}
	path, err := s.recordingTarget(p.Path)
	if err != nil {
		s.recordMu.Unlock()
		s.sendError(c, id, protocol.TypeRecordStart, err.Error())
		return
	}
	s.config.Engine.StartRecording(path)
	recording := s.config.Engine.Stats().Recording
	if recording {
		s.recordingPath = path
	}
	s.recordMu.Unlock()

	if !recording {
		s.sendError(c, id, protocol.TypeRecordStart, fmt.Sprintf("failed to start recording to %s", p.Path))
		return
	}

	log.Printf("Client %s started recording: %s", c.Name, path)
	s.reply(c, id, protocol.TypeServerState, s.State())
}

func (s *Server) handleRecordStop(c *client, id uint64) {
	s.recordMu.Lock()
	s.config.Engine.StopRecording()
	s.recordingPath = ""
	s.recordMu.Unlock()

	log.Printf("Client %s stopped recording", c.Name)
	s.reply(c, id, protocol.TypeServerState, s.State())
}

// State returns the engine counters as a server/state payload
func (s *Server) State() protocol.ServerState {
	stats := s.config.Engine.Stats()

	s.recordMu.Lock()
	path := s.recordingPath
	s.recordMu.Unlock()
	if !stats.Recording {
		path = ""
	}

	return protocol.ServerState{
		ActiveVoices:    stats.ActiveVoices,
		Triggered:       stats.Triggered,
		Dropped:         stats.Dropped,
		Ignored:         stats.Ignored,
		Cycles:          stats.Cycles,
		Recording:       stats.Recording,
		RecordingPath:   path,
		RecordedFrames:  stats.RecordedFrames,
		RecorderDropped: stats.RecorderDropped,
	}
}

func (s *Server) sendError(c *client, id uint64, request, message string) {
	s.reply(c, id, protocol.TypeError, protocol.ServerError{Request: request, Message: message})
}

// reply queues the answer to request id. A client too far behind to take
// it is disconnected rather than left waiting for a reply that never comes.
func (s *Server) reply(c *client, id uint64, msgType string, payload interface{}) {
	if err := s.sendMessage(c, id, msgType, payload); err != nil {
		log.Printf("Dropping client %s: %v", c.Name, err)
		c.Conn.Close()
	}
}

// removeClient unregisters a client and stops its writer
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	delete(s.clients, c.ID)
	close(c.sendChan)
}

// sendMessage queues a JSON message for a client
func (s *Server) sendMessage(c *client, id uint64, msgType string, payload interface{}) error {
	msg := protocol.Message{
		ID:      id,
		Type:    msgType,
		Payload: payload,
	}

	select {
	case c.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}
