// ABOUTME: Synth control protocol message type definitions
// ABOUTME: Defines the JSON envelope and payloads exchanged over the control WebSocket
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types
const (
	TypeClientHello  = "client/hello"
	TypeServerHello  = "server/hello"
	TypeNotePlay     = "note/play"
	TypeNoteResult   = "note/result"
	TypeRecordStart  = "record/start"
	TypeRecordStop   = "record/stop"
	TypeStateRequest = "state/request"
	TypeServerState  = "server/state"
	TypeError        = "server/error"
	TypeGoodbye      = "client/goodbye"
)

// Message is the top-level wrapper for all protocol messages. ID is set by
// clients on requests and echoed on the matching reply.
type Message struct {
	ID      uint64      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// envelope is used when decoding so the payload can be parsed by type
type envelope struct {
	ID      uint64          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID     string   `json:"server_id"`
	Name         string   `json:"name"`
	Version      int      `json:"version"`
	SampleRate   int      `json:"sample_rate"`
	MaxPolyphony int      `json:"max_polyphony"`
	MaxHarmonics int      `json:"max_harmonics"`
	Presets      []string `json:"presets"`
}

// NotePlay requests a note. Frequency wins over Note; Harmonics wins over Preset.
type NotePlay struct {
	Frequency float64   `json:"frequency,omitempty"`
	Note      *int      `json:"note,omitempty"` // MIDI note number, used when frequency is 0
	Duration  float64   `json:"duration"`       // seconds
	Velocity  int       `json:"velocity"`       // 0-127
	Harmonics []float64 `json:"harmonics,omitempty"`
	Preset    string    `json:"preset,omitempty"`
}

// NoteResult reports whether a note/play was accepted
type NoteResult struct {
	Accepted  bool    `json:"accepted"`
	Frequency float64 `json:"frequency"`
	Reason    string  `json:"reason,omitempty"` // "invalid" or "busy"
}

// RecordStart asks the server to start recording to a path on its filesystem
type RecordStart struct {
	Path string `json:"path"`
}

// RecordStop asks the server to finalize the current recording
type RecordStop struct{}

// StateRequest asks for a server/state reply
type StateRequest struct{}

// ServerState reports engine counters
type ServerState struct {
	ActiveVoices    int    `json:"active_voices"`
	Triggered       int64  `json:"triggered"`
	Dropped         int64  `json:"dropped"`
	Ignored         int64  `json:"ignored"`
	Cycles          int64  `json:"cycles"`
	Recording       bool   `json:"recording"`
	RecordingPath   string `json:"recording_path,omitempty"`
	RecordedFrames  int64  `json:"recorded_frames"`
	RecorderDropped int64  `json:"recorder_dropped"`
}

// ServerError reports a request the server could not handle
type ServerError struct {
	Request string `json:"request"`
	Message string `json:"message"`
}

// ClientGoodbye is sent before graceful disconnect
type ClientGoodbye struct {
	Reason string `json:"reason"` // "shutdown", "user_request"
}

// Encode marshals a typed message
func Encode(typ string, payload interface{}) ([]byte, error) {
	return EncodeRequest(0, typ, payload)
}

// EncodeRequest marshals a message carrying request id
func EncodeRequest(id uint64, typ string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(Message{ID: id, Type: typ, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", typ, err)
	}
	return data, nil
}

// Decode parses a raw message and returns its type and typed payload
func Decode(data []byte) (string, interface{}, error) {
	_, typ, payload, err := DecodeRequest(data)
	return typ, payload, err
}

// DecodeRequest is Decode that also returns the envelope's request id. The
// id is returned whenever the envelope itself parses, even if the payload
// does not, so errors can be routed back to the request.
func DecodeRequest(data []byte) (uint64, string, interface{}, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, "", nil, fmt.Errorf("invalid message: %w", err)
	}
	typ, payload, err := decodePayload(env)
	return env.ID, typ, payload, err
}

func decodePayload(env envelope) (string, interface{}, error) {
	var payload interface{}
	switch env.Type {
	case TypeClientHello:
		payload = &ClientHello{}
	case TypeServerHello:
		payload = &ServerHello{}
	case TypeNotePlay:
		payload = &NotePlay{}
	case TypeNoteResult:
		payload = &NoteResult{}
	case TypeRecordStart:
		payload = &RecordStart{}
	case TypeRecordStop:
		return env.Type, &RecordStop{}, nil
	case TypeStateRequest:
		return env.Type, &StateRequest{}, nil
	case TypeServerState:
		payload = &ServerState{}
	case TypeError:
		payload = &ServerError{}
	case TypeGoodbye:
		payload = &ClientGoodbye{}
	default:
		return env.Type, nil, fmt.Errorf("unknown message type: %s", env.Type)
	}

	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return "", nil, fmt.Errorf("%s: missing payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return "", nil, fmt.Errorf("failed to parse %s: %w", env.Type, err)
	}
	return env.Type, payload, nil
}
