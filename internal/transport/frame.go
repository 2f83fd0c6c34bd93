package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// frameType identifies the message carried by a frame.
type frameType byte

const (
	frameRequest frameType = iota + 1
	frameAccept
	frameReject
	frameDisconnect
)

// frameHeaderSize is one type byte followed by a big-endian uint32 length.
const frameHeaderSize = 5

var ErrFrameTooLarge = errors.New("frame too large")

type frameHeader struct {
	Type   frameType
	Length uint32
}

// writeFrame writes a single frame to w in one call.
func writeFrame(w io.Writer, t frameType, body []byte) error {
	buf := bytes.NewBuffer(make([]byte, 0, frameHeaderSize+len(body)))
	if err := binary.Write(buf, binary.BigEndian, frameHeader{Type: t, Length: uint32(len(body))}); err != nil {
		return err
	}

	buf.Write(body)
	_, err := w.Write(buf.Bytes())

	return err
}

// readFrame reads a single frame from r. Frames longer than maxSize are
// refused without reading their body.
func readFrame(r io.Reader, maxSize int) (frameType, []byte, error) {
	var h frameHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return 0, nil, err
	}

	if int64(h.Length) > int64(maxSize) {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, h.Length)
	}

	body := make([]byte, h.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}

	return h.Type, body, nil
}
