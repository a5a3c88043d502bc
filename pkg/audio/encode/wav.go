// ABOUTME: Canonical PCM WAV writer with a rewritable header
// ABOUTME: Writes a placeholder header up front and backpatches sizes on Close
package encode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Sendspin/sendspin-synth/pkg/audio"
	"github.com/go-audio/riff"
)

const (
	// WAVHeaderSize is the size of the canonical RIFF/fmt/data header
	WAVHeaderSize = 44

	// Fixed offsets of the two size fields rewritten on Close
	RIFFSizeOffset = 4
	DataSizeOffset = 40

	wavFormatPCM = 1
	fmtChunkSize = 16
)

// wavHeader mirrors the 44-byte canonical header field by field
type wavHeader struct {
	RIFFID      [4]byte
	RIFFSize    uint32
	WAVEID      [4]byte
	FmtID       [4]byte
	FmtSize     uint32
	AudioFormat uint16
	NumChannels uint16
	SampleRate  uint32
	ByteRate    uint32
	BlockAlign  uint16
	BitDepth    uint16
	DataID      [4]byte
	DataSize    uint32
}

// WAVWriter streams PCM samples into a WAV container
type WAVWriter struct {
	ws      io.WriteSeeker
	buf     *bufio.Writer
	pcm     *PCMEncoder
	format  audio.Format
	scratch []byte
	frames  uint32
	closed  bool
}

// NewWAV writes a placeholder header (size fields zeroed) and returns a writer
// positioned at the start of the data chunk.
func NewWAV(ws io.WriteSeeker, format audio.Format) (*WAVWriter, error) {
	pcm, err := NewPCM(format)
	if err != nil {
		return nil, err
	}

	w := &WAVWriter{
		ws:     ws,
		buf:    bufio.NewWriterSize(ws, 64*1024),
		pcm:    pcm,
		format: format,
	}

	if err := binary.Write(w.buf, binary.LittleEndian, newWAVHeader(format)); err != nil {
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}

	return w, nil
}

func newWAVHeader(format audio.Format) *wavHeader {
	return &wavHeader{
		RIFFID:      riff.RiffID,
		WAVEID:      riff.WavFormatID,
		FmtID:       riff.FmtID,
		FmtSize:     fmtChunkSize,
		AudioFormat: wavFormatPCM,
		NumChannels: uint16(format.Channels),
		SampleRate:  uint32(format.SampleRate),
		ByteRate:    uint32(format.ByteRate()),
		BlockAlign:  uint16(format.BlockAlign()),
		BitDepth:    uint16(format.BitDepth),
		DataID:      riff.DataFormatID,
	}
}

// Write appends samples verbatim to the data chunk
func (w *WAVWriter) Write(samples []int16) error {
	if w.closed {
		return fmt.Errorf("wav writer closed")
	}

	need := len(samples) * audio.BytesPerSample
	if cap(w.scratch) < need {
		w.scratch = make([]byte, need)
	}
	n := w.pcm.EncodeTo(w.scratch[:need], samples)

	if _, err := w.buf.Write(w.scratch[:n]); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}

	w.frames += uint32(len(samples) / w.format.Channels)
	return nil
}

// Frames returns the number of frames written so far
func (w *WAVWriter) Frames() uint32 {
	return w.frames
}

// DataSize returns the byte size of the data chunk
func (w *WAVWriter) DataSize() uint32 {
	return w.frames * uint32(w.format.BlockAlign())
}

// Close flushes pending samples and rewrites the RIFF and data size fields.
// The underlying writer is left open.
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush samples: %w", err)
	}

	dataSize := w.DataSize()
	if err := w.patch(RIFFSizeOffset, 36+dataSize); err != nil {
		return err
	}
	if err := w.patch(DataSizeOffset, dataSize); err != nil {
		return err
	}

	if _, err := w.ws.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	return nil
}

func (w *WAVWriter) patch(offset int64, value uint32) error {
	if _, err := w.ws.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to offset %d: %w", offset, err)
	}
	if err := binary.Write(w.ws, binary.LittleEndian, value); err != nil {
		return fmt.Errorf("failed to rewrite size at offset %d: %w", offset, err)
	}
	return nil
}
