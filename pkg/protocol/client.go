// ABOUTME: WebSocket client for the synth control protocol
// ABOUTME: Handles connection, handshake, and request/response routing
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// ProtocolVersion is the control protocol version spoken by this package
	ProtocolVersion = 1

	// Path is the WebSocket endpoint served by synth servers
	Path = "/synth"

	handshakeTimeout = 5 * time.Second
)

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	ServerAddr string
	ClientID   string
	Name       string
	DeviceInfo DeviceInfo
}

// Client is a control connection to a synth server. Requests are
// serialized: each waits for the server's single reply.
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	writeM sync.Mutex
	reqMu  sync.Mutex

	replies chan reply
	nextID  uint64
	server  ServerHello

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

type reply struct {
	id      uint64
	typ     string
	payload interface{}
}

// NewClient creates a new control client
func NewClient(config Config) *Client {
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Name == "" {
		config.Name = "synth-remote"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config:  config,
		replies: make(chan reply, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: Path}
	log.Printf("Connecting to %s", u.String())

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID:   c.config.ClientID,
		Name:       c.config.Name,
		Version:    ProtocolVersion,
		DeviceInfo: &c.config.DeviceInfo,
	}

	if err := c.send(0, TypeClientHello, hello); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	typ, payload, err := Decode(data)
	if err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}
	if typ != TypeServerHello {
		return fmt.Errorf("expected server/hello, got %s", typ)
	}

	c.mu.Lock()
	c.server = *payload.(*ServerHello)
	c.mu.Unlock()

	log.Printf("Handshake complete with %s (%d Hz, %d voices)",
		c.server.Name, c.server.SampleRate, c.server.MaxPolyphony)
	return nil
}

// Server returns the server/hello received during the handshake
func (c *Client) Server() ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// send writes one message; gorilla connections allow a single writer
func (c *Client) send(id uint64, typ string, payload interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	c.writeM.Lock()
	defer c.writeM.Unlock()
	return c.conn.WriteJSON(Message{ID: id, Type: typ, Payload: payload})
}

// readMessages reads replies and hands them to the waiting request
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Printf("Read error: %v", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			log.Printf("Unexpected WebSocket message type: %d", messageType)
			continue
		}

		id, typ, payload, err := DecodeRequest(data)
		if err != nil {
			log.Printf("Failed to parse message: %v", err)
			continue
		}

		select {
		case c.replies <- reply{id: id, typ: typ, payload: payload}:
		case <-time.After(100 * time.Millisecond):
			log.Printf("No request waiting for %s, dropping message", typ)
		case <-c.ctx.Done():
			return
		}
	}
}

// request sends a message and waits for the reply carrying its id. Replies
// to earlier requests that gave up waiting are discarded.
func (c *Client) request(ctx context.Context, typ string, payload interface{}) (reply, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.nextID++
	id := c.nextID

	if err := c.send(id, typ, payload); err != nil {
		return reply{}, fmt.Errorf("failed to send %s: %w", typ, err)
	}

	for {
		select {
		case r := <-c.replies:
			if r.id != id {
				log.Printf("Discarding stale %s reply (id %d, waiting for %d)", r.typ, r.id, id)
				continue
			}
			if r.typ == TypeError {
				e := r.payload.(*ServerError)
				return r, fmt.Errorf("server rejected %s: %s", e.Request, e.Message)
			}
			return r, nil
		case <-ctx.Done():
			return reply{}, ctx.Err()
		case <-c.ctx.Done():
			return reply{}, ErrNotConnected
		}
	}
}

// PlayNote sends note/play and returns the server's verdict
func (c *Client) PlayNote(ctx context.Context, note NotePlay) (*NoteResult, error) {
	r, err := c.request(ctx, TypeNotePlay, note)
	if err != nil {
		return nil, err
	}
	result, ok := r.payload.(*NoteResult)
	if !ok {
		return nil, fmt.Errorf("expected %s, got %s", TypeNoteResult, r.typ)
	}
	return result, nil
}

// StartRecording sends record/start and returns the resulting state
func (c *Client) StartRecording(ctx context.Context, path string) (*ServerState, error) {
	return c.stateRequest(ctx, TypeRecordStart, RecordStart{Path: path})
}

// StopRecording sends record/stop and returns the resulting state
func (c *Client) StopRecording(ctx context.Context) (*ServerState, error) {
	return c.stateRequest(ctx, TypeRecordStop, RecordStop{})
}

// State requests the current engine counters
func (c *Client) State(ctx context.Context) (*ServerState, error) {
	return c.stateRequest(ctx, TypeStateRequest, StateRequest{})
}

func (c *Client) stateRequest(ctx context.Context, typ string, payload interface{}) (*ServerState, error) {
	r, err := c.request(ctx, typ, payload)
	if err != nil {
		return nil, err
	}
	state, ok := r.payload.(*ServerState)
	if !ok {
		return nil, fmt.Errorf("expected %s, got %s", TypeServerState, r.typ)
	}
	return state, nil
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.send(0, TypeGoodbye, ClientGoodbye{Reason: reason})
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
