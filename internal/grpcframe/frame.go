// Package grpcframe implements the gRPC length-prefixed message framing used
// on both the inbound and outbound wire.
//
// One frame is:
//
//	<compression flag: 1 byte, must be 0> <length: 4 bytes big-endian> <payload>
//
// Compressed frames are not supported and are rejected outright.
package grpcframe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLen is the fixed size of the frame prefix.
const HeaderLen = 5

// MaxMessageSize caps a single decoded payload. The limit is a memory
// ceiling for the target device class, not a protocol bound.
const MaxMessageSize = 64 * 1024

var (
	// ErrCompressed is returned for a frame with a non-zero compression flag.
	ErrCompressed = errors.New("grpcframe: compressed frames are not supported")
	// ErrTooLarge is returned for a frame longer than MaxMessageSize.
	ErrTooLarge = errors.New("grpcframe: message exceeds size limit")
	// ErrTrailingData is returned by ReadUnary when more than one frame is
	// present in the body.
	ErrTrailingData = errors.New("grpcframe: unexpected data after unary message")
)

// Encode frames payload as a single gRPC message.
func Encode(payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[1:HeaderLen], uint32(len(payload)))
	copy(buf[HeaderLen:], payload)
	return buf
}

// Read reads exactly one frame from r and returns its payload.
func Read(r io.Reader) ([]byte, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		// A clean EOF before any header byte is the end of the stream.
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("grpcframe: short header: %w", err)
	}
	if hdr[0] != 0 {
		return nil, ErrCompressed
	}
	n := binary.BigEndian.Uint32(hdr[1:])
	if n > MaxMessageSize {
		return nil, ErrTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("grpcframe: short payload: %w", err)
	}
	return payload, nil
}

// ReadUnary reads one frame from r and requires the stream to end there,
// which is the body contract for every unary method.
func ReadUnary(r io.Reader) ([]byte, error) {
	payload, err := Read(r)
	if err != nil {
		return nil, err
	}
	var one [1]byte
	if _, err := r.Read(one[:]); err != io.EOF {
		return nil, ErrTrailingData
	}
	return payload, nil
}
