package a2s

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// UnsupportedQueryError is returned for a packet that is not an A2S_INFO
// request. It holds the packet's header.
type UnsupportedQueryError []byte

func (e UnsupportedQueryError) Error() string {
	return fmt.Sprintf("unsupported query: %x", []byte(e))
}

// encoder writes little endian values and null terminated strings.
type encoder struct{}

func (e encoder) WriteString(resp *bytes.Buffer, s string) error {
	if _, err := resp.WriteString(s); err != nil {
		return err
	}

	return resp.WriteByte(0)
}

func (e encoder) Write(resp *bytes.Buffer, v interface{}) error {
	return binary.Write(resp, binary.LittleEndian, v)
}
