package sqp

import (
	"bytes"
	"encoding/binary"
)

// encoder writes big endian values and strings prefixed with their length
// in a single byte.
type encoder struct{}

func (e encoder) WriteString(resp *bytes.Buffer, s string) error {
	if len(s) > 255 {
		s = s[:255]
	}

	if err := resp.WriteByte(byte(len(s))); err != nil {
		return err
	}

	_, err := resp.WriteString(s)

	return err
}

func (e encoder) Write(resp *bytes.Buffer, v interface{}) error {
	return binary.Write(resp, binary.BigEndian, v)
}
