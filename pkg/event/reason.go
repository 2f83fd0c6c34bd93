package event

import (
	"encoding/json"
	"strings"
)

// HostShutdownReason is the reason a transport hands to its remaining peers when
// the host shuts down without giving one of its own.
const HostShutdownReason = "Disconnected due to host shutting down."

type reasonToken struct {
	Status ConnectionStatus `json:"status"`
}

// EncodeReason serializes s into the token sent along with a disconnect.
func EncodeReason(s ConnectionStatus) string {
	b, err := json.Marshal(reasonToken{Status: s})
	if err != nil {
		return ""
	}

	return string(b)
}

// DecodeReason recovers the status embedded in a disconnect reason. It reports
// false for an empty reason, the host shutdown phrase, or anything that is not
// a token produced by EncodeReason.
func DecodeReason(reason string) (ConnectionStatus, bool) {
	if IsHostShutdown(reason) {
		return Undefined, false
	}

	var t reasonToken
	if err := json.Unmarshal([]byte(reason), &t); err != nil {
		return Undefined, false
	}

	if t.Status == Undefined {
		return Undefined, false
	}

	return t.Status, true
}

// IsHostShutdown reports whether reason is empty or the transport's host
// shutdown phrase. Both mean the connection dropped without a decision by the
// host, so a client is free to try again.
func IsHostShutdown(reason string) bool {
	reason = strings.TrimSpace(reason)

	return reason == "" || reason == HostShutdownReason
}
