package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ConnectionStatus is the outcome or reason code for a connection lifecycle
// change. It is published to subscribers and also travels over the wire inside
// disconnect reasons.
type ConnectionStatus int

const (
	// Undefined is the zero value and is never published.
	Undefined ConnectionStatus = iota

	// Success indicates a client connected or a host started.
	Success

	// ServerFull indicates the host has no capacity left.
	ServerFull

	// DuplicateLogin indicates the player is already connected from elsewhere.
	DuplicateLogin

	// UserRequestedDisconnect indicates the local user asked to leave.
	UserRequestedDisconnect

	// GenericDisconnect indicates the connection was lost for an unspecified reason.
	GenericDisconnect

	// Reconnecting indicates the client lost its connection and is trying to get it back.
	Reconnecting

	// IncompatibleBuildType indicates client and host builds cannot play together.
	IncompatibleBuildType

	// HostEndedSession indicates the host ended the session on purpose.
	HostEndedSession

	// StartHostFailed indicates the host could not be started.
	StartHostFailed

	// StartClientFailed indicates the client could not be started.
	StartClientFailed
)

// IsFatal reports whether a disconnect carrying s must never be retried.
func (s ConnectionStatus) IsFatal() bool {
	switch s {
	case UserRequestedDisconnect, HostEndedSession, ServerFull, IncompatibleBuildType, DuplicateLogin:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler
func (s ConnectionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (s *ConnectionStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	parsed, err := ParseConnectionStatus(name)
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// ParseConnectionStatus returns the status with the given name, ignoring case.
func ParseConnectionStatus(name string) (ConnectionStatus, error) {
	for s := Success; s <= StartClientFailed; s++ {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}

	return Undefined, InvalidStatusError(name)
}

// InvalidStatusError is returned when a string does not name a ConnectionStatus.
type InvalidStatusError string

func (e InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid connection status: %q", string(e))
}
