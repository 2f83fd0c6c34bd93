package connection

import "errors"

var (
	// ErrAlreadyRunning is returned by Run when the loop is already running.
	ErrAlreadyRunning = errors.New("coordinator already running")

	// ErrHostRejected is returned when a host fails its own admission check.
	ErrHostRejected = errors.New("host rejected its own connection")

	// ErrServerStopped is returned when the server stops before it finished starting.
	ErrServerStopped = errors.New("server stopped while starting")

	// ErrTransportFailure is returned when the transport fails while a host is starting.
	ErrTransportFailure = errors.New("transport failed while starting")
)
