package admission

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge is returned for a payload over the size cap. The
	// payload is not inspected.
	ErrPayloadTooLarge = errors.New("connection payload too large")

	// ErrMissingPlayerID is returned when a payload carries no player id.
	ErrMissingPlayerID = errors.New("connection payload has no player id")
)

// ConnectionPayload is what a client sends along with its connection request.
type ConnectionPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	IsDebug    bool   `json:"isDebug"`
}

// EncodePayload serializes p for a connection request.
func EncodePayload(p ConnectionPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode connection payload: %w", err)
	}

	return b, nil
}

// DecodePayload parses raw, refusing anything longer than maxSize bytes
// before looking at it.
func DecodePayload(raw []byte, maxSize int) (ConnectionPayload, error) {
	var p ConnectionPayload

	if len(raw) > maxSize {
		return p, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(raw), maxSize)
	}

	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode connection payload: %w", err)
	}

	if p.PlayerID == "" {
		return p, ErrMissingPlayerID
	}

	return p, nil
}
