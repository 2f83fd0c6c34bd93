package session

import "fmt"

// UnknownEventTypeError is returned in the event of an event with an unknown
// type being received from the daemon.
type UnknownEventTypeError EventType

func (e UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type: %q", EventType(e).String())
}

// SubscribeError is a subscription failure reported by the daemon.
type SubscribeError string

func (e SubscribeError) Error() string {
	return fmt.Sprintf("subscribe: %s", string(e))
}

// UnexpectedHTTPStatusError is returned when a request returns an unexpected
// status code.
type UnexpectedHTTPStatusError int

func (e UnexpectedHTTPStatusError) Error() string {
	return fmt.Sprintf("request returned an unexpected status code: %d", int(e))
}
