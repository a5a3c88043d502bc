// ABOUTME: Synth control protocol package
// ABOUTME: Defines control messages and the WebSocket client
// Package protocol implements the synth control protocol.
//
// Messages are JSON objects of the form {"type": ..., "payload": ...}
// exchanged over a WebSocket. After the client/hello and server/hello
// handshake a client may send note/play, record/start, record/stop and
// state/request.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{ServerAddr: "localhost:8928"})
//	err := client.Connect()
//	result, err := client.PlayNote(ctx, protocol.NotePlay{Frequency: 440, Duration: 0.5, Velocity: 100})
package protocol
