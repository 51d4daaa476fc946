// Package wire implements the OEF wire protocol: length-prefixed framing
// (this file) and the CBOR envelope schema (envelope.go, codec.go).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the width of the length prefix in bytes.
const HeaderSize = 4

// DefaultMaxFrameSize is the default cap on a single frame's payload,
// matching spec.md's 16 MiB default.
const DefaultMaxFrameSize = 16 * 1024 * 1024

// ErrFrameTooLarge is returned by ReadFrame when the advertised payload
// length exceeds the configured cap.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// ErrConnectionBroken wraps any short read of the header or payload.
var ErrConnectionBroken = errors.New("wire: connection broken")

// ReadFrame reads one length-prefixed frame from r. maxSize bounds the
// payload length; pass 0 to use DefaultMaxFrameSize. A short read at any
// point is reported as ErrConnectionBroken; an oversized length prefix is
// reported as ErrFrameTooLarge (a protocol error, not an I/O error).
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: reading frame header: %v", ErrConnectionBroken, err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds cap of %d", ErrFrameTooLarge, length, maxSize)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("%w: reading frame payload: %v", ErrConnectionBroken, err)
		}
	}
	return payload, nil
}

// WriteFrame writes payload as one length-prefixed frame to w. The header
// and payload are written with a single Write call so the frame is atomic
// with respect to the underlying io.Writer's own write semantics; callers
// with multiple concurrent writers on the same stream must still serialise
// calls to WriteFrame themselves (see proxy.NetworkProxy's writeLoop).
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: writing frame: %v", ErrConnectionBroken, err)
	}
	return nil
}
