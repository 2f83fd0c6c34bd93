package sqp

import (
	"errors"
	"fmt"
)

// UnsupportedVersionError is returned for a query asking for a protocol
// version other than 1.
type UnsupportedVersionError uint16

var (
	ErrChallengeMismatch   = errors.New("challenge mismatch")
	ErrInvalidPacketLength = errors.New("invalid packet length")
	ErrNoChallenge         = errors.New("no challenge")
	ErrUnsupportedQuery    = errors.New("unsupported query")
)

func (e UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported sqp version: %d", uint16(e))
}
